package sessioning

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service resolves sessions for inbound requests and persists them after the
// handler runs.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service { return &Service{repo: r} }

// Load returns the session with the given id, or a fresh empty one when the
// id is blank or unknown (first contact).
func (s *Service) Load(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		sess, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return sess, nil
		}
	}
	now := time.Now().UTC()
	return &Session{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now, fresh: true}, nil
}

// Save persists the session state reached by the handler.
func (s *Service) Save(ctx context.Context, sess *Session) error {
	return s.repo.Put(ctx, sess)
}

// Destroy removes the session entirely (user deletion).
func (s *Service) Destroy(ctx context.Context, sess *Session) error {
	sess.End()
	return s.repo.Delete(ctx, sess.ID)
}
