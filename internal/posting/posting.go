package posting

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stepcanvas/stepcanvas/internal/store"
)

// PostDoc is one piece of user content. Options carries free-form display
// settings (the client uses backgroundColor); it is stored opaque.
type PostDoc struct {
	store.Base `bson:",inline"`
	Author     primitive.ObjectID `bson:"author" json:"author"`
	Content    string             `bson:"content" json:"content"`
	Options    map[string]any     `bson:"options,omitempty" json:"options,omitempty"`
}

func (d *PostDoc) Owner() primitive.ObjectID { return d.Author }

type Service struct {
	posts store.Store[PostDoc, *PostDoc]
}

func NewService(posts store.Store[PostDoc, *PostDoc]) *Service {
	return &Service{posts: posts}
}

func (s *Service) Create(ctx context.Context, author primitive.ObjectID, content string, options map[string]any) (*PostDoc, error) {
	doc := &PostDoc{Author: author, Content: content, Options: options}
	id, err := s.posts.CreateOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return s.posts.ReadOne(ctx, store.Filter{"_id": id})
}

// GetPosts returns all posts newest-first.
func (s *Service) GetPosts(ctx context.Context) ([]*PostDoc, error) {
	return s.posts.ReadMany(ctx, store.Filter{}, store.Descending())
}

func (s *Service) GetByAuthor(ctx context.Context, author primitive.ObjectID) ([]*PostDoc, error) {
	return s.posts.ReadMany(ctx, store.Filter{"author": author}, store.Descending())
}

// Update patches content/options on the author's own post. Ownership is
// asserted before the mutation.
func (s *Service) Update(ctx context.Context, id, user primitive.ObjectID, content any, options map[string]any) (*PostDoc, error) {
	doc, err := store.Exists(ctx, s.posts, id)
	if err != nil {
		return nil, err
	}
	if err := store.OwnedBy(doc, user); err != nil {
		return nil, err
	}
	patch := store.Filter{"content": content}
	if options != nil {
		patch["options"] = options
	}
	if _, err := s.posts.PartialUpdateOne(ctx, store.Filter{"_id": id}, patch); err != nil {
		return nil, err
	}
	return s.posts.ReadOne(ctx, store.Filter{"_id": id})
}

func (s *Service) Delete(ctx context.Context, id, user primitive.ObjectID) error {
	doc, err := store.Exists(ctx, s.posts, id)
	if err != nil {
		return err
	}
	if err := store.OwnedBy(doc, user); err != nil {
		return err
	}
	_, err = s.posts.DeleteOne(ctx, store.Filter{"_id": id})
	return err
}
