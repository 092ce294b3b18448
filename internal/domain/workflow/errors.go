package workflow

import "fmt"

// The engine reports every failure as a typed error value so callers can
// branch on the failure class. Nothing here is retried internally; a caller
// that wants a retry re-fetches the proposal and resubmits.

// NotFoundError reports an unknown workflow, step, transition, or proposal.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// AuthorizationError reports that the acting user's role lacks permission
// for the requested action.
type AuthorizationError struct {
	Action string
	Role   string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q is not permitted to %s", e.Role, e.Action)
}

// PreconditionError reports a failed guard condition, carrying the failing
// condition's description.
type PreconditionError struct {
	Condition string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Condition)
}

// ValidationError reports a malformed workflow configuration.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}
