package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
)

// Base is the identity+timestamp envelope shared by every persisted document.
// Concept document types embed it; ObjectIDs are assigned at creation and are
// sortable by creation order.
type Base struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"dateCreated" json:"dateCreated"`
	UpdatedAt time.Time          `bson:"dateUpdated" json:"dateUpdated"`
}

func (b *Base) base() *Base { return b }

// Doc is satisfied by any struct embedding Base.
type Doc interface{ base() *Base }

type docPtr[T any] interface {
	*T
	Doc
}

// Filter selects documents by equality on a subset of bson fields. An empty
// filter matches the whole collection.
type Filter = bson.M

// ReadOption adjusts ReadMany behavior.
type ReadOption func(*readOptions)

type readOptions struct {
	descending bool
}

// Descending returns matches newest-first instead of the default
// creation-order ascending.
func Descending() ReadOption {
	return func(o *readOptions) { o.descending = true }
}

// Store is the collection-scoped persistence surface every concept programs
// against. The Mongo-backed Collection is the production implementation;
// Memory backs unit tests.
type Store[T any, P docPtr[T]] interface {
	Name() string
	CreateOne(ctx context.Context, doc P) (primitive.ObjectID, error)
	// ReadOne returns the most-recently-created match, or nil when nothing
	// matches. Zero matches is not an error.
	ReadOne(ctx context.Context, filter Filter) (P, error)
	ReadMany(ctx context.Context, filter Filter, opts ...ReadOption) ([]P, error)
	// PartialUpdateOne merges the non-nil patch fields into the first match
	// and refreshes dateUpdated. Returns the number of matched documents.
	PartialUpdateOne(ctx context.Context, filter Filter, patch Filter) (int64, error)
	DeleteOne(ctx context.Context, filter Filter) (int64, error)
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
}

// Collection is the MongoDB-backed Store.
type Collection[T any, P docPtr[T]] struct {
	col  *mongo.Collection
	name string
}

// NewCollection wraps one Mongo collection. One concept owns exactly one
// collection; nothing here enforces cross-collection references.
func NewCollection[T any, P docPtr[T]](db *mongo.Database, name string) *Collection[T, P] {
	return &Collection[T, P]{col: db.Collection(name), name: name}
}

func (c *Collection[T, P]) Name() string { return c.name }

func (c *Collection[T, P]) CreateOne(ctx context.Context, doc P) (primitive.ObjectID, error) {
	b := doc.base()
	b.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if _, err := c.col.InsertOne(ctx, doc); err != nil {
		return primitive.NilObjectID, &apperr.Storage{Op: c.name + ".createOne", Err: err}
	}
	return b.ID, nil
}

func (c *Collection[T, P]) ReadOne(ctx context.Context, filter Filter) (P, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	var doc T
	if err := c.col.FindOne(ctx, normalize(filter), opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, &apperr.Storage{Op: c.name + ".readOne", Err: err}
	}
	return &doc, nil
}

func (c *Collection[T, P]) ReadMany(ctx context.Context, filter Filter, opts ...ReadOption) ([]P, error) {
	var ro readOptions
	for _, o := range opts {
		o(&ro)
	}
	order := 1
	if ro.descending {
		order = -1
	}
	cur, err := c.col.Find(ctx, normalize(filter), options.Find().SetSort(bson.D{{Key: "_id", Value: order}}))
	if err != nil {
		return nil, &apperr.Storage{Op: c.name + ".readMany", Err: err}
	}
	defer cur.Close(ctx)
	out := []P{}
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			return nil, &apperr.Storage{Op: c.name + ".readMany", Err: err}
		}
		out = append(out, &doc)
	}
	if err := cur.Err(); err != nil {
		return nil, &apperr.Storage{Op: c.name + ".readMany", Err: err}
	}
	return out, nil
}

func (c *Collection[T, P]) PartialUpdateOne(ctx context.Context, filter Filter, patch Filter) (int64, error) {
	set := compact(patch)
	set["dateUpdated"] = time.Now().UTC()
	res, err := c.col.UpdateOne(ctx, normalize(filter), bson.M{"$set": set})
	if err != nil {
		return 0, &apperr.Storage{Op: c.name + ".partialUpdateOne", Err: err}
	}
	return res.MatchedCount, nil
}

func (c *Collection[T, P]) DeleteOne(ctx context.Context, filter Filter) (int64, error) {
	res, err := c.col.DeleteOne(ctx, normalize(filter))
	if err != nil {
		return 0, &apperr.Storage{Op: c.name + ".deleteOne", Err: err}
	}
	return res.DeletedCount, nil
}

func (c *Collection[T, P]) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	res, err := c.col.DeleteMany(ctx, normalize(filter))
	if err != nil {
		return 0, &apperr.Storage{Op: c.name + ".deleteMany", Err: err}
	}
	return res.DeletedCount, nil
}

// normalize copies a filter so callers can reuse theirs, and tolerates nil.
func normalize(f Filter) bson.M {
	out := bson.M{}
	for k, v := range f {
		out[k] = v
	}
	return out
}

// compact drops nil patch entries, giving partialUpdateOne its merge
// semantics: absent fields stay untouched.
func compact(patch Filter) bson.M {
	out := bson.M{}
	for k, v := range patch {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}
