package friending

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
	"github.com/stepcanvas/stepcanvas/internal/store"
)

// Request statuses. A friendship is an accepted request; no separate edge
// collection exists, keeping this concept to a single collection.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

type RequestDoc struct {
	store.Base `bson:",inline"`
	From       primitive.ObjectID `bson:"from" json:"from"`
	To         primitive.ObjectID `bson:"to" json:"to"`
	Status     string             `bson:"status" json:"status"`
}

type Service struct {
	requests store.Store[RequestDoc, *RequestDoc]
}

func NewService(requests store.Store[RequestDoc, *RequestDoc]) *Service {
	return &Service{requests: requests}
}

// GetRequests returns every request involving the user, either direction.
func (s *Service) GetRequests(ctx context.Context, user primitive.ObjectID) ([]*RequestDoc, error) {
	sent, err := s.requests.ReadMany(ctx, store.Filter{"from": user})
	if err != nil {
		return nil, err
	}
	received, err := s.requests.ReadMany(ctx, store.Filter{"to": user})
	if err != nil {
		return nil, err
	}
	return append(sent, received...), nil
}

// SendRequest creates a pending request from→to. Fails when the pair is
// already connected or a pending request exists in either direction.
func (s *Service) SendRequest(ctx context.Context, from, to primitive.ObjectID) (*RequestDoc, error) {
	if from == to {
		return nil, &apperr.NotAllowed{User: from.Hex(), Reason: "cannot send a friend request to yourself"}
	}
	for _, status := range []string{StatusPending, StatusAccepted} {
		existing, err := s.between(ctx, from, to, status)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if status == StatusAccepted {
				return nil, &apperr.NotAllowed{User: from.Hex(), Reason: "users are already friends"}
			}
			return nil, &apperr.NotAllowed{User: from.Hex(), Reason: "friend request already exists"}
		}
	}
	doc := &RequestDoc{From: from, To: to, Status: StatusPending}
	if _, err := s.requests.CreateOne(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// AcceptRequest marks the pending from→to request accepted. Only the
// recipient accepts, so `to` is the acting user.
func (s *Service) AcceptRequest(ctx context.Context, from, to primitive.ObjectID) error {
	return s.settle(ctx, from, to, StatusAccepted)
}

func (s *Service) RejectRequest(ctx context.Context, from, to primitive.ObjectID) error {
	return s.settle(ctx, from, to, StatusRejected)
}

// RemoveRequest withdraws the sender's own pending request.
func (s *Service) RemoveRequest(ctx context.Context, from, to primitive.ObjectID) error {
	n, err := s.requests.DeleteOne(ctx, store.Filter{"from": from, "to": to, "status": StatusPending})
	if err != nil {
		return err
	}
	if n == 0 {
		return &apperr.NotFound{Collection: s.requests.Name(), ID: "request from " + from.Hex() + " to " + to.Hex()}
	}
	return nil
}

// RemoveFriend deletes the accepted connection between the two users,
// whichever direction it was requested in.
func (s *Service) RemoveFriend(ctx context.Context, user, friend primitive.ObjectID) error {
	doc, err := s.between(ctx, user, friend, StatusAccepted)
	if err != nil {
		return err
	}
	if doc == nil {
		return &apperr.NotFound{Collection: s.requests.Name(), ID: "friendship with " + friend.Hex()}
	}
	_, err = s.requests.DeleteOne(ctx, store.Filter{"_id": doc.ID})
	return err
}

// GetFriends lists the ids connected to the user by an accepted request.
func (s *Service) GetFriends(ctx context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error) {
	all, err := s.GetRequests(ctx, user)
	if err != nil {
		return nil, err
	}
	friends := []primitive.ObjectID{}
	seen := map[primitive.ObjectID]bool{}
	for _, r := range all {
		if r.Status != StatusAccepted {
			continue
		}
		other := r.From
		if other == user {
			other = r.To
		}
		if !seen[other] {
			seen[other] = true
			friends = append(friends, other)
		}
	}
	return friends, nil
}

func (s *Service) settle(ctx context.Context, from, to primitive.ObjectID, status string) error {
	n, err := s.requests.PartialUpdateOne(ctx,
		store.Filter{"from": from, "to": to, "status": StatusPending},
		store.Filter{"status": status})
	if err != nil {
		return err
	}
	if n == 0 {
		return &apperr.NotFound{Collection: s.requests.Name(), ID: "pending request from " + from.Hex()}
	}
	return nil
}

// between finds a request with the given status in either direction.
func (s *Service) between(ctx context.Context, a, b primitive.ObjectID, status string) (*RequestDoc, error) {
	doc, err := s.requests.ReadOne(ctx, store.Filter{"from": a, "to": b, "status": status})
	if err != nil || doc != nil {
		return doc, err
	}
	return s.requests.ReadOne(ctx, store.Filter{"from": b, "to": a, "status": status})
}
