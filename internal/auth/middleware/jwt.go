package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/irma-project/irma-backend/internal/auth"
)

// Claims carried by access tokens: the user id in sub and the role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware verifies HS256 bearer tokens and attaches {id, role}.
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "No token, authorization denied"})
			return
		}

		p, err := ParseToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "Token is not valid"})
			return
		}

		auth.SetPrincipal(c, p)
		c.Next()
	}
}

// ParseToken validates a signed token and returns the principal it names.
func ParseToken(secret, token string) (auth.Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return auth.Principal{}, err
	}
	if !parsed.Valid {
		return auth.Principal{}, errors.New("token invalid")
	}

	role, err := auth.ParseRole(claims.Role)
	if err != nil {
		return auth.Principal{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return auth.Principal{}, fmt.Errorf("token has no subject")
	}
	return auth.Principal{ID: claims.Subject, Role: role}, nil
}

// extractToken extracts the Bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return bearerToken[7:]
	}
	return ""
}
