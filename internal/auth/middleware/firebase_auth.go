package middleware

import (
	"context"
	"errors"
	"net/http"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/irma-project/irma-backend/internal/auth"
)

// TokenVerifier is the part of the Firebase auth client the middleware needs.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// PrincipalLookup maps a verified Firebase UID onto a stored user.
type PrincipalLookup func(ctx context.Context, firebaseUID string) (auth.Principal, error)

// ErrUnknownUser is returned by a PrincipalLookup when no user is linked to the UID.
var ErrUnknownUser = errors.New("no user linked to firebase uid")

// FirebaseAuthMiddleware validates Firebase ID tokens and resolves the caller's role
func FirebaseAuthMiddleware(verifier TokenVerifier, lookup PrincipalLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "No token, authorization denied"})
			return
		}

		decodedToken, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "Token is not valid"})
			return
		}

		c.Set(auth.CtxFirebaseUID, decodedToken.UID)

		p, err := lookup(c.Request.Context(), decodedToken.UID)
		if errors.Is(err, ErrUnknownUser) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "User is not registered"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "Server error"})
			return
		}

		auth.SetPrincipal(c, p)
		c.Next()
	}
}
