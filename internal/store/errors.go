package store

// Kind classifies a business-rule rejection raised inside a transaction.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindInvalidState  Kind = "invalid_state"
	KindQuotaExceeded Kind = "quota_exceeded"
	KindUnauthorized  Kind = "unauthorized"
	KindValidation    Kind = "validation"
)

// RuleViolation is a domain-rule rejection. Infrastructure faults stay as
// plain wrapped errors; callers branch on the distinction with errors.As.
type RuleViolation struct {
	Kind    Kind
	Message string
}

func (e *RuleViolation) Error() string {
	return e.Message
}

func violation(kind Kind, message string) *RuleViolation {
	return &RuleViolation{Kind: kind, Message: message}
}
