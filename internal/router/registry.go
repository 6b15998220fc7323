package router

import (
	"context"
	"strings"

	"github.com/stepcanvas/stepcanvas/internal/sessioning"
)

// Call carries the validated request state into a handler: the per-request
// session and the merged parameter object.
type Call struct {
	Session *sessioning.Session
	Params  Params
}

// Handler is one registered route target. It returns the response body (JSON
// encoded by the dispatcher) or a typed error the dispatcher maps to a
// status class.
type Handler func(ctx context.Context, call *Call) (any, error)

type route struct {
	method   string
	pattern  string
	segments []string
	handler  Handler
	schema   Schema
}

// Registry is the static dispatch table from (verb, path) to handler. Built
// once during startup, immutable afterwards, safe for unsynchronized
// concurrent reads.
type Registry struct {
	routes []route
}

func NewRegistry() *Registry { return &Registry{} }

// Register adds a route. Patterns support single-segment named captures
// (":id"). Registering the same (method, pattern) twice replaces the earlier
// handler in place, keeping its priority slot.
func (r *Registry) Register(method, pattern string, handler Handler, schema Schema) {
	method = strings.ToUpper(method)
	rt := route{
		method:   method,
		pattern:  pattern,
		segments: splitPath(pattern),
		handler:  handler,
		schema:   schema,
	}
	for i, existing := range r.routes {
		if existing.method == method && existing.pattern == pattern {
			r.routes[i] = rt
			return
		}
	}
	r.routes = append(r.routes, rt)
}

// Resolve matches a request against the table. Literal segments strictly
// outrank captures at the same position, so /images/author/:author is never
// shadowed by /images/:id regardless of registration order. A miss is not an
// error; the dispatcher maps it to a 404.
func (r *Registry) Resolve(method, path string) (Handler, Schema, map[string]string, bool) {
	method = strings.ToUpper(method)
	segs := splitPath(path)
	best := -1
	for i := range r.routes {
		rt := &r.routes[i]
		if rt.method != method || len(rt.segments) != len(segs) {
			continue
		}
		if !matchSegments(rt.segments, segs) {
			continue
		}
		if best < 0 || moreSpecific(rt.segments, r.routes[best].segments) {
			best = i
		}
	}
	if best < 0 {
		return nil, nil, nil, false
	}
	rt := &r.routes[best]
	params := map[string]string{}
	for i, s := range rt.segments {
		if strings.HasPrefix(s, ":") {
			params[s[1:]] = segs[i]
		}
	}
	return rt.handler, rt.schema, params, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, path []string) bool {
	for i, s := range pattern {
		if strings.HasPrefix(s, ":") {
			continue
		}
		if s != path[i] {
			return false
		}
	}
	return true
}

// moreSpecific reports whether a outranks b: at the earliest position where
// they differ in kind, the literal segment wins.
func moreSpecific(a, b []string) bool {
	for i := range a {
		ac := strings.HasPrefix(a[i], ":")
		bc := strings.HasPrefix(b[i], ":")
		if ac != bc {
			return bc
		}
	}
	return false
}
