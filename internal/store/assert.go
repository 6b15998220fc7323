package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
)

// Exists returns the document with the given id or a NotFound error naming
// the collection and id. Callers get the document back so they don't read
// twice before a guarded mutation.
func Exists[T any, P docPtr[T]](ctx context.Context, s Store[T, P], id primitive.ObjectID) (P, error) {
	doc, err := s.ReadOne(ctx, Filter{"_id": id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &apperr.NotFound{Collection: s.Name(), ID: id.Hex()}
	}
	return doc, nil
}

// Owned is implemented by documents carrying an author reference.
type Owned interface {
	Owner() primitive.ObjectID
}

// OwnedBy fails with NotAllowed unless the acting user is the document's
// author. Pure guard: call it before any mutation that depends on ownership.
func OwnedBy(doc Owned, user primitive.ObjectID) error {
	if doc.Owner() == user {
		return nil
	}
	resource := ""
	if d, ok := doc.(Doc); ok {
		resource = d.base().ID.Hex()
	}
	return &apperr.NotAllowed{User: user.Hex(), Resource: resource}
}
