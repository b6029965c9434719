package orchestrator

import "fmt"

// DuplicateIntentError reports a submit attempt while an intent for the same
// logical action is still active. The rejection is local; no network call
// was made.
type DuplicateIntentError struct {
	ActionKey string
}

func (e *DuplicateIntentError) Error() string {
	return fmt.Sprintf("an intent for %s is already in flight", e.ActionKey)
}

// PreconditionError reports a submit attempt before a required on-chain
// derived value was loaded. Submitting with incomplete or stale inputs is
// never allowed.
type PreconditionError struct {
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot submit: %s not loaded", e.Missing)
}
