package service

import "fmt"

// PolicyError is a business-rule rejection: an invalid lifecycle transition,
// an edit on a locked quote, an unsatisfied approval gate. The boundary maps
// it to 409/403 with the reason as the user-facing message. It is never a
// silent no-op and never a fatal error.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

func policyErrorf(format string, args ...interface{}) *PolicyError {
	return &PolicyError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError distinguishes a missing entity from a policy violation so the
// boundary can render 404 instead of 403.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func notFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}
