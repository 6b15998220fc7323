package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
)

func named(name string) Handler {
	return func(ctx context.Context, call *Call) (any, error) {
		return name, nil
	}
}

func resolveName(t *testing.T, r *Registry, method, path string) string {
	t.Helper()
	h, _, _, ok := r.Resolve(method, path)
	require.True(t, ok, "expected %s %s to resolve", method, path)
	out, err := h(context.Background(), &Call{})
	require.NoError(t, err)
	return out.(string)
}

func TestResolveLiteralBeatsCapture(t *testing.T) {
	r := NewRegistry()
	r.Register("GET", "/images/:id", named("byId"), nil)
	r.Register("GET", "/images/author/:author", named("byAuthor"), nil)

	// /images/author/* has one more segment than /images/:id, and inside
	// three-segment routes the literal second segment wins
	r.Register("GET", "/images/:id/original", named("original"), nil)

	require.Equal(t, "byId", resolveName(t, r, "GET", "/images/abc"))
	require.Equal(t, "byId", resolveName(t, r, "GET", "/images/author"))
	require.Equal(t, "byAuthor", resolveName(t, r, "GET", "/images/author/abc"))
	require.Equal(t, "original", resolveName(t, r, "GET", "/images/abc/original"))
}

func TestResolvePriorityIgnoresRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("GET", "/images/author/:author", named("byAuthor"), nil)
	r.Register("GET", "/images/:id/original", named("original"), nil)

	require.Equal(t, "byAuthor", resolveName(t, r, "GET", "/images/author/abc"))
	require.Equal(t, "original", resolveName(t, r, "GET", "/images/xyz/original"))
	// both patterns match /images/author/original; "author" is literal at
	// the earlier position, so it wins
	require.Equal(t, "byAuthor", resolveName(t, r, "GET", "/images/author/original"))
}

func TestRegisterReplacesInPlace(t *testing.T) {
	r := NewRegistry()
	r.Register("GET", "/things/:id", named("first"), nil)
	r.Register("GET", "/things/special", named("special"), nil)
	r.Register("GET", "/things/:id", named("second"), nil)

	require.Equal(t, "second", resolveName(t, r, "GET", "/things/abc"))
	require.Equal(t, "special", resolveName(t, r, "GET", "/things/special"))
}

func TestResolveMethodAndLengthMismatch(t *testing.T) {
	r := NewRegistry()
	r.Register("GET", "/posts", named("list"), nil)

	_, _, _, ok := r.Resolve("POST", "/posts")
	require.False(t, ok)
	_, _, _, ok = r.Resolve("GET", "/posts/extra")
	require.False(t, ok)

	// trailing slash and method casing are tolerated
	require.Equal(t, "list", resolveName(t, r, "get", "/posts/"))
}

func TestResolveExtractsCaptures(t *testing.T) {
	r := NewRegistry()
	r.Register("PUT", "/friend/accept/:from", named("accept"), nil)

	_, _, captured, ok := r.Resolve("PUT", "/friend/accept/alice")
	require.True(t, ok)
	require.Equal(t, map[string]string{"from": "alice"}, captured)
}

func TestSchemaValidateRequiredAndNonEmpty(t *testing.T) {
	s := Schema{
		"username": {Kind: String, Required: true, NonEmpty: true},
		"note":     {Kind: String},
	}

	_, err := s.Validate(Params{})
	var verr *apperr.Validation
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "username", verr.Field)

	_, err = s.Validate(Params{"username": ""})
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "username", verr.Field)

	out, err := s.Validate(Params{"username": "alice", "extra": 42})
	require.NoError(t, err)
	require.Equal(t, "alice", out["username"])
	require.Equal(t, 42, out["extra"]) // undeclared fields pass through
	_, present := out["note"]
	require.False(t, present)
}

func TestSchemaCoercesQueryStrings(t *testing.T) {
	s := Schema{
		"limit":  {Kind: Number},
		"active": {Kind: Bool},
	}

	out, err := s.Validate(Params{"limit": "25", "active": "true"})
	require.NoError(t, err)
	require.Equal(t, float64(25), out["limit"])
	require.Equal(t, true, out["active"])

	_, err = s.Validate(Params{"limit": "lots"})
	var verr *apperr.Validation
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "limit", verr.Field)
}

func TestSchemaRejectsWrongShapes(t *testing.T) {
	s := Schema{
		"options": {Kind: Object},
		"name":    {Kind: String},
	}

	_, err := s.Validate(Params{"options": "not an object"})
	var verr *apperr.Validation
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "options", verr.Field)

	_, err = s.Validate(Params{"name": 7})
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "name", verr.Field)

	out, err := s.Validate(Params{"options": map[string]any{"a": 1.0}})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1.0}, out["options"])
}

func TestParamsGetters(t *testing.T) {
	p := Params{"name": "alice", "count": float64(3)}

	require.Equal(t, "alice", p.GetString("name"))
	require.Equal(t, "", p.GetString("missing"))
	require.Equal(t, "", p.GetString("count"))

	require.Equal(t, "alice", p.GetOptionalString("name"))
	require.Nil(t, p.GetOptionalString("missing"))

	_, err := p.GetObjectID("name")
	var verr *apperr.Validation
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "name", verr.Field)
}
