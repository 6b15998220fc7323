package posting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
	"github.com/stepcanvas/stepcanvas/internal/store"
)

func newService() *Service {
	return NewService(store.NewMemory[PostDoc]("posts"))
}

func TestCreateAndListNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	author := primitive.NewObjectID()

	first, err := svc.Create(ctx, author, "first", nil)
	require.NoError(t, err)
	second, err := svc.Create(ctx, author, "second", map[string]any{"backgroundColor": "teal"})
	require.NoError(t, err)

	all, err := svc.GetPosts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, second.ID, all[0].ID)
	require.Equal(t, first.ID, all[1].ID)
	require.Equal(t, "teal", all[0].Options["backgroundColor"])
}

func TestGetByAuthor(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	_, err := svc.Create(ctx, alice, "mine", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, "theirs", nil)
	require.NoError(t, err)

	posts, err := svc.GetByAuthor(ctx, alice)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, "mine", posts[0].Content)
}

func TestUpdateRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	post, err := svc.Create(ctx, alice, "original", nil)
	require.NoError(t, err)

	_, err = svc.Update(ctx, post.ID, bob, "hijacked", nil)
	var na *apperr.NotAllowed
	require.True(t, errors.As(err, &na))

	updated, err := svc.Update(ctx, post.ID, alice, "edited", nil)
	require.NoError(t, err)
	require.Equal(t, "edited", updated.Content)
}

func TestUpdateNilContentLeavesItUnchanged(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	alice := primitive.NewObjectID()

	post, err := svc.Create(ctx, alice, "keep me", nil)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, post.ID, alice, nil, map[string]any{"backgroundColor": "red"})
	require.NoError(t, err)
	require.Equal(t, "keep me", updated.Content)
	require.Equal(t, "red", updated.Options["backgroundColor"])
}

func TestUpdateMissingPost(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.Update(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "x", nil)
	var nf *apperr.NotFound
	require.True(t, errors.As(err, &nf))
}

func TestDeleteRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	post, err := svc.Create(ctx, alice, "doomed", nil)
	require.NoError(t, err)

	err = svc.Delete(ctx, post.ID, bob)
	var na *apperr.NotAllowed
	require.True(t, errors.As(err, &na))

	require.NoError(t, svc.Delete(ctx, post.ID, alice))

	err = svc.Delete(ctx, post.ID, alice)
	var nf *apperr.NotFound
	require.True(t, errors.As(err, &nf))
}
