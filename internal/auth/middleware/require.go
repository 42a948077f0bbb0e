package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
)

// RequireOp rejects callers whose role has no grant at all for op. Ownership
// checks for Own grants happen in the service once the resource is loaded.
func RequireOp(op auth.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.CurrentPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "No token, authorization denied"})
			return
		}
		if !auth.Can(p, op) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": apperr.Message(auth.Denied(op))})
			return
		}
		c.Next()
	}
}
