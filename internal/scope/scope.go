// Package scope classifies client revision notes against the set of
// request types a project agreed to cover.
package scope

// Status is a note's scope classification.
type Status string

const (
	StatusInScope    Status = "in_scope"
	StatusAdditional Status = "additional_request"
)

// Classify decides whether a note falls inside the agreed revision scope.
// A note the client flagged as a new idea is out of scope regardless of its
// request type.
func Classify(requestType string, clientMarkedNewIdea bool, allowedRequestTypes []string) Status {
	if clientMarkedNewIdea {
		return StatusAdditional
	}
	for _, allowed := range allowedRequestTypes {
		if allowed == requestType {
			return StatusInScope
		}
	}
	return StatusAdditional
}

// Effective returns the status that governs a note: an editor override wins
// over the stored automatic classification.
func Effective(original Status, override *Status) Status {
	if override != nil {
		return *override
	}
	return original
}

// Valid reports whether s is one of the two recognized statuses.
func Valid(s Status) bool {
	return s == StatusInScope || s == StatusAdditional
}
