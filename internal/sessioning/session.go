package sessioning

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
)

// ContextKey is where the per-request session lives in the gin context.
const ContextKey = "session"

// Session is the per-connection authentication state. It binds at most one
// user; a nil UserID means logged out. Request-scoped: the middleware loads
// it before the handler and persists it after.
type Session struct {
	ID        string             `json:"id"`
	UserID    primitive.ObjectID `json:"user,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`

	// fresh marks sessions created during this request, so the transport
	// knows to issue a cookie.
	fresh bool
}

// Fresh reports whether the session was created for this request.
func (s *Session) Fresh() bool { return s.fresh }

// GetUser returns the bound user, failing with NotAllowed when the session
// is logged out.
func (s *Session) GetUser() (primitive.ObjectID, error) {
	if s.UserID.IsZero() {
		return primitive.NilObjectID, &apperr.NotAllowed{Reason: "must be logged in"}
	}
	return s.UserID, nil
}

// Start binds a user, overwriting any prior binding.
func (s *Session) Start(user primitive.ObjectID) {
	s.UserID = user
	s.UpdatedAt = time.Now().UTC()
}

// End clears the binding. Idempotent.
func (s *Session) End() {
	s.UserID = primitive.NilObjectID
	s.UpdatedAt = time.Now().UTC()
}

// IsLoggedOut fails with NotAllowed when a user is already bound. Gates
// registration-style operations.
func (s *Session) IsLoggedOut() error {
	if !s.UserID.IsZero() {
		return &apperr.NotAllowed{User: s.UserID.Hex(), Reason: "must be logged out"}
	}
	return nil
}
