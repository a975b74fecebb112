package app

import (
	"fmt"
	"net/http"

	"scopelock/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// fromRuleViolation converts a store-level rule violation into the HTTP-facing
// error shape. Unknown kinds map to a generic conflict.
func fromRuleViolation(v *store.RuleViolation) *DomainError {
	switch v.Kind {
	case store.KindNotFound:
		return domainError(http.StatusNotFound, "NOT_FOUND", v.Message, nil)
	case store.KindInvalidState:
		return domainError(http.StatusConflict, "INVALID_STATE", v.Message, nil)
	case store.KindQuotaExceeded:
		return domainError(http.StatusConflict, "QUOTA_EXCEEDED", v.Message, nil)
	case store.KindUnauthorized:
		return domainError(http.StatusForbidden, "UNAUTHORIZED", v.Message, nil)
	case store.KindValidation:
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", v.Message, nil)
	default:
		return domainError(http.StatusConflict, "INVALID_STATE", v.Message, nil)
	}
}
