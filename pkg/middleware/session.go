package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stepcanvas/stepcanvas/internal/sessioning"
	"github.com/stepcanvas/stepcanvas/internal/tokens"
	"github.com/stepcanvas/stepcanvas/pkg/logger"
)

// SessionConfig is what the middleware needs to resolve and issue cookies.
type SessionConfig struct {
	CookieName string
	Secret     string
	TTLSeconds int
	Secure     bool
}

// SessionMiddleware resolves the per-request session before the handler and
// persists it afterwards. A missing, invalid, or expired cookie yields a
// fresh empty session and a new cookie; the session id itself travels inside
// a signed token so it cannot be forged.
func SessionMiddleware(svc *sessioning.Service, cfg SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sid string
		if raw, err := c.Cookie(cfg.CookieName); err == nil && raw != "" {
			if parsed, err := tokens.ParseSessionToken(cfg.Secret, raw); err == nil {
				sid = parsed
			}
		}

		sess, err := svc.Load(c.Request.Context(), sid)
		if err != nil {
			logger.Errorf("session load failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
		c.Set(sessioning.ContextKey, sess)

		c.Next()

		// persist whatever state the handler left behind
		if err := svc.Save(c.Request.Context(), sess); err != nil {
			logger.Errorf("session save failed: %v", err)
		}
		if sess.Fresh() {
			tok, err := tokens.NewSessionToken(cfg.Secret, sess.ID, cookieTTL(cfg))
			if err != nil {
				logger.Errorf("session cookie sign failed: %v", err)
				return
			}
			c.SetCookie(cfg.CookieName, tok, cfg.TTLSeconds, "/", "", cfg.Secure, true)
		}
	}
}

func cookieTTL(cfg SessionConfig) time.Duration {
	if cfg.TTLSeconds <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(cfg.TTLSeconds) * time.Second
}
