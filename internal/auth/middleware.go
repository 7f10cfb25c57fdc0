package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guardline/aegis/internal/auth/domain"
	"github.com/guardline/aegis/internal/auth/session"
)

const (
	// ContextSessionKey holds the authenticated *domain.AdminSession.
	ContextSessionKey = "admin_session"
	// ContextUserIDKey holds the authenticated admin's snowflake.ID.
	ContextUserIDKey = "admin_user_id"
)

// RequireAdmin rejects requests without a valid, unexpired session cookie.
func RequireAdmin(svc domain.Service, sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := sessions.ReadToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		sess, err := svc.Authenticate(c.Request.Context(), token)
		if err != nil {
			sessions.Clear(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(ContextSessionKey, sess)
		c.Set(ContextUserIDKey, sess.AdminUserID)
		c.Next()
	}
}
