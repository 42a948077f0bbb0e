package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irma-project/irma-backend/internal/api/httpx"
	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/clients/domain"
)

func (h *Handler) List(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	filter := domain.ListFilter{
		IncludeInactive: c.Query("includeInactive") == "true",
		Search:          c.Query("search"),
	}
	clients, err := h.clientService.List(c.Request.Context(), actor, filter)
	if err != nil {
		apperr.Write(c, "clients.list", err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (h *Handler) Get(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	client, err := h.clientService.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apperr.Write(c, "clients.get", err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var body clientRequest
	if !httpx.BindJSON(c, &body) {
		return
	}

	client, err := h.clientService.Create(c.Request.Context(), actor, body.input())
	if err != nil {
		apperr.Write(c, "clients.create", err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *Handler) Update(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var body clientRequest
	if !httpx.BindJSON(c, &body) {
		return
	}

	client, err := h.clientService.Update(c.Request.Context(), actor, c.Param("id"), body.input())
	if err != nil {
		apperr.Write(c, "clients.update", err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) Delete(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	if _, err := h.clientService.Deactivate(c.Request.Context(), actor, c.Param("id")); err != nil {
		apperr.Write(c, "clients.delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Client deactivated"})
}
