package authing

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
	"github.com/stepcanvas/stepcanvas/internal/store"
)

// UserDoc is the persisted user record. Password holds a bcrypt hash and is
// never serialized to clients.
type UserDoc struct {
	store.Base `bson:",inline"`
	Username   string `bson:"username" json:"username"`
	Password   string `bson:"password" json:"-"`
}

// User is the client-visible projection of a UserDoc.
type User struct {
	ID        primitive.ObjectID `json:"_id"`
	Username  string             `json:"username"`
	CreatedAt time.Time          `json:"dateCreated"`
	UpdatedAt time.Time          `json:"dateUpdated"`
}

func redact(d *UserDoc) *User {
	return &User{ID: d.ID, Username: d.Username, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

// Service owns the users collection.
type Service struct {
	users store.Store[UserDoc, *UserDoc]
}

func NewService(users store.Store[UserDoc, *UserDoc]) *Service {
	return &Service{users: users}
}

// Create registers a new user. Usernames are unique; the uniqueness check and
// the insert are not atomic, which this design accepts (spec: no
// multi-document guarantees).
func (s *Service) Create(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, &apperr.Validation{Field: "username", Reason: "username and password must be non-empty"}
	}
	existing, err := s.users.ReadOne(ctx, store.Filter{"username": username})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &apperr.NotAllowed{Resource: username, Reason: "user with username " + username + " already exists"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &apperr.Storage{Op: "users.hash", Err: err}
	}
	doc := &UserDoc{Username: username, Password: string(hash)}
	if _, err := s.users.CreateOne(ctx, doc); err != nil {
		return nil, err
	}
	return redact(doc), nil
}

// Authenticate checks credentials and returns the user's id. A missing user
// or a wrong password both surface as NotAllowed so callers can't probe for
// usernames.
func (s *Service) Authenticate(ctx context.Context, username, password string) (primitive.ObjectID, error) {
	doc, err := s.users.ReadOne(ctx, store.Filter{"username": username})
	if err != nil {
		return primitive.NilObjectID, err
	}
	if doc == nil {
		return primitive.NilObjectID, &apperr.NotAllowed{Resource: username, Reason: "username or password is incorrect"}
	}
	if bcrypt.CompareHashAndPassword([]byte(doc.Password), []byte(password)) != nil {
		return primitive.NilObjectID, &apperr.NotAllowed{User: doc.ID.Hex(), Reason: "username or password is incorrect"}
	}
	return doc.ID, nil
}

func (s *Service) GetUsers(ctx context.Context) ([]*User, error) {
	docs, err := s.users.ReadMany(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]*User, 0, len(docs))
	for _, d := range docs {
		out = append(out, redact(d))
	}
	return out, nil
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	doc, err := s.users.ReadOne(ctx, store.Filter{"username": username})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &apperr.NotFound{Collection: s.users.Name(), ID: username}
	}
	return redact(doc), nil
}

func (s *Service) GetByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	doc, err := store.Exists(ctx, s.users, id)
	if err != nil {
		return nil, err
	}
	return redact(doc), nil
}

// UpdateUsername renames the user, keeping usernames unique.
func (s *Service) UpdateUsername(ctx context.Context, user primitive.ObjectID, username string) (*User, error) {
	if username == "" {
		return nil, &apperr.Validation{Field: "username", Reason: "must not be empty"}
	}
	existing, err := s.users.ReadOne(ctx, store.Filter{"username": username})
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != user {
		return nil, &apperr.NotAllowed{User: user.Hex(), Reason: "user with username " + username + " already exists"}
	}
	n, err := s.users.PartialUpdateOne(ctx, store.Filter{"_id": user}, store.Filter{"username": username})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &apperr.NotFound{Collection: s.users.Name(), ID: user.Hex()}
	}
	return s.GetByID(ctx, user)
}

// UpdatePassword re-hashes after verifying the current password.
func (s *Service) UpdatePassword(ctx context.Context, user primitive.ObjectID, current, next string) error {
	doc, err := store.Exists(ctx, s.users, user)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(doc.Password), []byte(current)) != nil {
		return &apperr.NotAllowed{User: user.Hex(), Reason: "the existing password is incorrect"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return &apperr.Storage{Op: "users.hash", Err: err}
	}
	_, err = s.users.PartialUpdateOne(ctx, store.Filter{"_id": user}, store.Filter{"password": string(hash)})
	return err
}

func (s *Service) Delete(ctx context.Context, user primitive.ObjectID) error {
	_, err := s.users.DeleteOne(ctx, store.Filter{"_id": user})
	return err
}
