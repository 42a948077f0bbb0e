package auth

import (
	"github.com/gin-gonic/gin"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxPrincipal   = "principal"
)

// SetPrincipal attaches p to both the gin context and the request context.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(CtxPrincipal, p)
	c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
}

// CurrentPrincipal returns the caller set by the authentication middleware.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(CtxPrincipal)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// UserFirebaseUID extracts the Firebase UID from the Gin context
// This is set by FirebaseAuthMiddleware
func UserFirebaseUID(c *gin.Context) string {
	return c.GetString(CtxFirebaseUID)
}
