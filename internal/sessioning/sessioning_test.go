package sessioning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
)

func TestSessionLoginLogout(t *testing.T) {
	s := &Session{ID: "sid"}

	_, err := s.GetUser()
	var na *apperr.NotAllowed
	require.True(t, errors.As(err, &na))
	require.Equal(t, "must be logged in", na.Reason)
	require.NoError(t, s.IsLoggedOut())

	user := primitive.NewObjectID()
	s.Start(user)
	got, err := s.GetUser()
	require.NoError(t, err)
	require.Equal(t, user, got)
	require.Error(t, s.IsLoggedOut())

	s.End()
	_, err = s.GetUser()
	require.Error(t, err)

	// ending twice is fine
	s.End()
	require.NoError(t, s.IsLoggedOut())
}

func TestServiceLoadFreshAndKnown(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	first, err := svc.Load(ctx, "")
	require.NoError(t, err)
	require.True(t, first.Fresh())
	require.NotEmpty(t, first.ID)

	first.Start(primitive.NewObjectID())
	require.NoError(t, svc.Save(ctx, first))

	again, err := svc.Load(ctx, first.ID)
	require.NoError(t, err)
	require.False(t, again.Fresh())
	require.Equal(t, first.UserID, again.UserID)

	// unknown id falls back to a fresh session with a new id
	other, err := svc.Load(ctx, "no-such-session")
	require.NoError(t, err)
	require.True(t, other.Fresh())
	require.NotEqual(t, first.ID, other.ID)
}

func TestServiceDestroy(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())

	sess, err := svc.Load(ctx, "")
	require.NoError(t, err)
	sess.Start(primitive.NewObjectID())
	require.NoError(t, svc.Save(ctx, sess))

	require.NoError(t, svc.Destroy(ctx, sess))
	require.True(t, sess.UserID.IsZero())

	reloaded, err := svc.Load(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, reloaded.Fresh())
}

func newRedisRepo(t *testing.T) *RedisRepository {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisRepository(client, "session:", time.Hour)
}

func TestRedisRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRedisRepo(t)

	user := primitive.NewObjectID()
	now := time.Now().UTC().Truncate(time.Second)
	sess := &Session{ID: "abc", UserID: user, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Put(ctx, sess))

	got, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, user, got.UserID)
	require.True(t, got.CreatedAt.Equal(now))

	require.NoError(t, repo.Delete(ctx, "abc"))
	gone, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestRedisRepositoryMissIsNilNil(t *testing.T) {
	repo := newRedisRepo(t)
	got, err := repo.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	sess := &Session{ID: "abc"}
	require.NoError(t, repo.Put(ctx, sess))

	first, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	first.UserID = primitive.NewObjectID()

	second, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, second.UserID.IsZero())
}
