package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irma-project/irma-backend/internal/api/httpx"
	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
	"github.com/irma-project/irma-backend/internal/users/domain"
)

// GetProfile returns the caller with the grants their role carries.
func (h *Handler) GetProfile(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	user, err := h.profiles.Get(c.Request.Context(), actor, actor.ID)
	if err != nil {
		apperr.Write(c, "auth.profile", err)
		return
	}
	c.JSON(http.StatusOK, profileResponse{User: user, Permissions: permissions(actor)})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var body profileRequest
	if !httpx.BindJSON(c, &body) {
		return
	}

	user, err := h.profiles.Update(c.Request.Context(), actor, actor.ID, &domain.UpdateUserRequest{
		FirstName:   body.FirstName,
		LastName:    body.LastName,
		Phone:       body.Phone,
		Preferences: body.Preferences,
	})
	if err != nil {
		apperr.Write(c, "auth.profile", err)
		return
	}
	c.JSON(http.StatusOK, profileResponse{User: user, Permissions: permissions(actor)})
}

func permissions(p auth.Principal) map[string]string {
	out := make(map[string]string)
	for _, op := range auth.Operations() {
		if g := auth.GrantFor(p, op); g != auth.Deny {
			out[string(op)] = g.String()
		}
	}
	return out
}
