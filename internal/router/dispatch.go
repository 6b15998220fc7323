package router

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
	"github.com/stepcanvas/stepcanvas/internal/sessioning"
	"github.com/stepcanvas/stepcanvas/pkg/metrics"
)

// GinHandler adapts the registry to Gin. It is mounted as the NoRoute
// handler so native Gin routes (/health, /metrics, swagger) keep working;
// everything else flows through Resolve → extract → validate → handler.
func (r *Registry) GinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		handler, schema, pathParams, ok := r.Resolve(c.Request.Method, c.Request.URL.Path)
		if !ok {
			metrics.RequestsTotal.WithLabelValues(c.Request.Method, "no_match", "404").Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
			return
		}

		params, err := extractParams(c.Request, pathParams)
		if err == nil && schema != nil {
			params, err = schema.Validate(params)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		var sess *sessioning.Session
		if v, exists := c.Get(sessioning.ContextKey); exists {
			sess, _ = v.(*sessioning.Session)
		}
		if sess == nil {
			sess = &sessioning.Session{}
		}

		out, err := handler(c.Request.Context(), &Call{Session: sess, Params: params})
		if err != nil {
			respondError(c, err)
			return
		}
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, c.Request.URL.Path, "200").Inc()
		c.JSON(http.StatusOK, out)
	}
}

// respondError maps the error taxonomy to a status class and a structured
// body naming the offending identifier or field. Never a stack trace.
func respondError(c *gin.Context, err error) {
	status := apperr.StatusOf(err)
	metrics.RequestsTotal.WithLabelValues(c.Request.Method, c.Request.URL.Path, strconv.Itoa(status)).Inc()
	c.JSON(status, gin.H{"error": err.Error()})
}
