package bootstrap

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/irma-project/irma-backend/config"
	"github.com/irma-project/irma-backend/internal/auth"
	"github.com/irma-project/irma-backend/internal/auth/middleware"
	userservice "github.com/irma-project/irma-backend/internal/users/service"
)

// AuthMiddleware picks the authenticator named by AUTH_PROVIDER.
func AuthMiddleware(ctx context.Context, cfg *config.AuthConfig, users *userservice.UserService) (gin.HandlerFunc, error) {
	if cfg.Provider != "firebase" {
		return middleware.JWTAuthMiddleware(cfg.JWTSecret), nil
	}
	client, err := auth.InitializeFirebase(ctx, cfg.FirebaseCredentials)
	if err != nil {
		return nil, err
	}
	return middleware.FirebaseAuthMiddleware(client, users.Lookup), nil
}
