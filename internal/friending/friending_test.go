package friending

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
	return NewService(store.NewMemory[RequestDoc]("friendRequests"))
}

func TestSendAcceptBecomeFriends(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	req, err := svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)

	require.NoError(t, svc.AcceptRequest(ctx, alice, bob))

	friendsOfAlice, err := svc.GetFriends(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, []primitive.ObjectID{bob}, friendsOfAlice)

	friendsOfBob, err := svc.GetFriends(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, []primitive.ObjectID{alice}, friendsOfBob)
}

func TestRejectLeavesNoFriendship(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	_, err := svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	require.NoError(t, svc.RejectRequest(ctx, alice, bob))

	friends, err := svc.GetFriends(ctx, alice)
	require.NoError(t, err)
	require.Empty(t, friends)

	// rejected is settled; accepting afterwards finds no pending request
	err = svc.AcceptRequest(ctx, alice, bob)
	var nf *apperr.NotFound
	require.True(t, errors.As(err, &nf))

	// but a new request can be sent after a rejection
	_, err = svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
}

func TestSendRequestGuards(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	_, err := svc.SendRequest(ctx, alice, alice)
	var na *apperr.NotAllowed
	require.True(t, errors.As(err, &na))

	_, err = svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)

	// duplicate pending, in either direction
	_, err = svc.SendRequest(ctx, alice, bob)
	require.True(t, errors.As(err, &na))
	_, err = svc.SendRequest(ctx, bob, alice)
	require.True(t, errors.As(err, &na))

	require.NoError(t, svc.AcceptRequest(ctx, alice, bob))
	_, err = svc.SendRequest(ctx, alice, bob)
	require.True(t, errors.As(err, &na))
	require.Contains(t, na.Reason, "already friends")
}

func TestRemoveRequest(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	_, err := svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveRequest(ctx, alice, bob))

	var nf *apperr.NotFound
	err = svc.RemoveRequest(ctx, alice, bob)
	require.True(t, errors.As(err, &nf))

	// withdrawal reopens the pair
	_, err = svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
}

func TestRemoveFriendEitherDirection(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	_, err := svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	require.NoError(t, svc.AcceptRequest(ctx, alice, bob))

	// bob received the request but can still sever the friendship
	require.NoError(t, svc.RemoveFriend(ctx, bob, alice))

	friends, err := svc.GetFriends(ctx, alice)
	require.NoError(t, err)
	require.Empty(t, friends)

	var nf *apperr.NotFound
	err = svc.RemoveFriend(ctx, bob, alice)
	require.True(t, errors.As(err, &nf))
}

func TestGetRequestsBothDirections(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	carol := primitive.NewObjectID()

	_, err := svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	_, err = svc.SendRequest(ctx, carol, alice)
	require.NoError(t, err)

	reqs, err := svc.GetRequests(ctx, alice)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	reqs, err = svc.GetRequests(ctx, carol)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
}
