package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irma-project/irma-backend/internal/api/httpx"
	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
	"github.com/irma-project/irma-backend/internal/users/domain"
)

func (h *Handler) List(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	filter := domain.ListFilter{Department: c.Query("department")}
	if r := c.Query("role"); r != "" {
		role, err := auth.ParseRole(r)
		if err != nil {
			apperr.Write(c, "users.list", apperr.Invalid(apperr.FieldError{Field: "role", Msg: "Role is invalid"}))
			return
		}
		filter.Role = role
	}

	users, err := h.userService.List(c.Request.Context(), actor, filter)
	if err != nil {
		apperr.Write(c, "users.list", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) Get(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	user, err := h.userService.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apperr.Write(c, "users.get", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var body createUserRequest
	if !httpx.BindJSON(c, &body) {
		return
	}

	user, err := h.userService.Create(c.Request.Context(), actor, &domain.CreateUserRequest{
		FirebaseUID: body.FirebaseUID,
		FirstName:   body.FirstName,
		LastName:    body.LastName,
		Email:       body.Email,
		Role:        auth.Role(body.Role),
		Department:  body.Department,
		Phone:       body.Phone,
		HourlyRate:  body.HourlyRate,
	})
	if err != nil {
		apperr.Write(c, "users.create", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) Update(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var body updateUserRequest
	if !httpx.BindJSON(c, &body) {
		return
	}

	req := &domain.UpdateUserRequest{
		FirstName:   body.FirstName,
		LastName:    body.LastName,
		Email:       body.Email,
		Phone:       body.Phone,
		Department:  body.Department,
		HourlyRate:  body.HourlyRate,
		Preferences: body.Preferences,
	}
	if body.Role != nil {
		role := auth.Role(*body.Role)
		req.Role = &role
	}

	user, err := h.userService.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		apperr.Write(c, "users.update", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) Delete(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	if err := h.userService.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		apperr.Write(c, "users.delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "User removed"})
}
