package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
)

// Memory is an in-memory Store used by unit tests. It mirrors the Mongo
// collection semantics (creation-order ids, merge patches, newest-first
// ReadOne) without a running database. Matching goes through the documents'
// bson tags so filters behave the same against both implementations.
type Memory[T any, P docPtr[T]] struct {
	mu   sync.RWMutex
	name string
	docs []P
}

func NewMemory[T any, P docPtr[T]](name string) *Memory[T, P] {
	return &Memory[T, P]{name: name}
}

func (m *Memory[T, P]) Name() string { return m.name }

func (m *Memory[T, P]) CreateOne(ctx context.Context, doc P) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := doc.base()
	b.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	m.docs = append(m.docs, doc)
	return b.ID, nil
}

func (m *Memory[T, P]) ReadOne(ctx context.Context, filter Filter) (P, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.docs) - 1; i >= 0; i-- {
		ok, err := m.matches(m.docs[i], filter)
		if err != nil {
			return nil, err
		}
		if ok {
			return m.docs[i], nil
		}
	}
	return nil, nil
}

func (m *Memory[T, P]) ReadMany(ctx context.Context, filter Filter, opts ...ReadOption) ([]P, error) {
	var ro readOptions
	for _, o := range opts {
		o(&ro)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []P{}
	for _, d := range m.docs {
		ok, err := m.matches(d, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	if ro.descending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (m *Memory[T, P]) PartialUpdateOne(ctx context.Context, filter Filter, patch Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.docs {
		ok, err := m.matches(d, filter)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		raw, err := toMap(d)
		if err != nil {
			return 0, &apperr.Storage{Op: m.name + ".partialUpdateOne", Err: err}
		}
		for k, v := range compact(patch) {
			raw[k] = v
		}
		raw["dateUpdated"] = time.Now().UTC()
		updated, err := fromMap[T, P](raw)
		if err != nil {
			return 0, &apperr.Storage{Op: m.name + ".partialUpdateOne", Err: err}
		}
		m.docs[i] = updated
		return 1, nil
	}
	return 0, nil
}

func (m *Memory[T, P]) DeleteOne(ctx context.Context, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.docs {
		ok, err := m.matches(d, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *Memory[T, P]) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.docs[:0]
	var removed int64
	for _, d := range m.docs {
		ok, err := m.matches(d, filter)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	m.docs = kept
	return removed, nil
}

func (m *Memory[T, P]) matches(doc P, filter Filter) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}
	raw, err := toMap(doc)
	if err != nil {
		return false, &apperr.Storage{Op: m.name + ".match", Err: err}
	}
	for k, want := range filter {
		got, ok := raw[k]
		if !ok {
			return false, nil
		}
		if !equalValue(got, want) {
			return false, nil
		}
	}
	return true, nil
}

func toMap(doc any) (bson.M, error) {
	b, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromMap[T any, P docPtr[T]](m bson.M) (P, error) {
	b, err := bson.Marshal(m)
	if err != nil {
		return nil, err
	}
	var doc T
	if err := bson.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// equalValue compares a stored bson value against a filter value, tolerating
// the representation differences the bson round trip introduces (int32 vs
// int, DateTime vs time.Time).
func equalValue(got, want any) bool {
	if reflect.DeepEqual(got, want) {
		return true
	}
	if t, ok := want.(time.Time); ok {
		if dt, ok2 := got.(primitive.DateTime); ok2 {
			return dt.Time().Equal(t)
		}
	}
	return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", want)
}
