package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Typed error kinds shared by every concept. Handlers return these and the
// router maps each kind to a fixed status class; concepts never translate
// them into HTTP themselves.

// NotFound signals that a referenced document is absent.
type NotFound struct {
	Collection string
	ID         string
}

func (e *NotFound) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("%s %s not found", e.Collection, e.ID)
	}
	return fmt.Sprintf("%s not found", e.ID)
}

// NotAllowed signals an authorization or session precondition violation.
type NotAllowed struct {
	User     string
	Resource string
	Reason   string
}

func (e *NotAllowed) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("user %s is not allowed to act on %s", e.User, e.Resource)
}

// Validation signals a malformed request shape. Raised before any handler
// logic runs.
type Validation struct {
	Field  string
	Reason string
}

func (e *Validation) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// Upstream signals a collaborator call that failed or returned unparseable
// data.
type Upstream struct {
	Service string
	Err     error
}

func (e *Upstream) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Service, e.Err)
}

func (e *Upstream) Unwrap() error { return e.Err }

// Storage signals that the backing store is unavailable or misbehaving.
type Storage struct {
	Op  string
	Err error
}

func (e *Storage) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Storage) Unwrap() error { return e.Err }

// StatusOf maps an error to its transport status class. Unknown errors map
// to 500.
func StatusOf(err error) int {
	var nf *NotFound
	var na *NotAllowed
	var va *Validation
	var up *Upstream
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &na):
		return http.StatusForbidden
	case errors.As(err, &va):
		return http.StatusBadRequest
	case errors.As(err, &up):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
