package router

import (
	"encoding/json"
	"io"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
)

// Params is the single parameter object handed to a handler: path captures,
// query string, and JSON body merged with fixed precedence (path over query,
// query over body).
type Params map[string]any

// GetString returns the named field as a string, or "" when absent. Schema
// validation guarantees the type for declared fields.
func (p Params) GetString(key string) string {
	s, _ := p[key].(string)
	return s
}

// GetOptionalString returns nil when the field is absent, so partial-update
// patches can distinguish "leave unchanged" from "set to empty".
func (p Params) GetOptionalString(key string) any {
	v, ok := p[key]
	if !ok {
		return nil
	}
	if s, ok := v.(string); ok {
		return s
	}
	return nil
}

// GetObjectID parses the named field as a hex document identifier.
func (p Params) GetObjectID(key string) (primitive.ObjectID, error) {
	s, ok := p[key].(string)
	if !ok {
		return primitive.NilObjectID, &apperr.Validation{Field: key, Reason: "expected identifier string"}
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, &apperr.Validation{Field: key, Reason: "malformed identifier"}
	}
	return id, nil
}

// extractParams builds the merged parameter object from a request plus the
// resolved path captures.
func extractParams(req *http.Request, pathParams map[string]string) (Params, error) {
	params := Params{}

	// body first (lowest precedence)
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, &apperr.Validation{Field: "body", Reason: "unreadable body"}
		}
		if len(b) > 0 {
			var body map[string]any
			if err := json.Unmarshal(b, &body); err != nil {
				return nil, &apperr.Validation{Field: "body", Reason: "malformed JSON"}
			}
			for k, v := range body {
				params[k] = v
			}
		}
	}

	// query overrides body
	for k, vs := range req.URL.Query() {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}

	// path captures override everything
	for k, v := range pathParams {
		params[k] = v
	}

	return params, nil
}
