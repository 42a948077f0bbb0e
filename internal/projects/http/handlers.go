package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irma-project/irma-backend/internal/api/httpx"
	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/projects/domain"
)

func (h *Handler) create(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req projectReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		apperr.Write(c, "projects.create", err)
		return
	}

	p, err := h.svc.Create(c.Request.Context(), actor, in)
	if err != nil {
		apperr.Write(c, "projects.create", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) createFromTemplate(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req projectReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		apperr.Write(c, "projects.template", err)
		return
	}

	p, err := h.svc.CreateFromTemplate(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		apperr.Write(c, "projects.template", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) list(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	filter := domain.ListFilter{
		ClientID:         c.Query("clientId"),
		Status:           domain.Status(c.Query("status")),
		IncludeTemplates: c.Query("templates") == "true",
	}
	items, err := h.svc.List(c.Request.Context(), actor, filter)
	if err != nil {
		apperr.Write(c, "projects.list", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) get(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apperr.Write(c, "projects.get", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) update(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req projectReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		apperr.Write(c, "projects.update", err)
		return
	}

	p, err := h.svc.Update(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		apperr.Write(c, "projects.update", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) delete(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	if _, err := h.svc.Cancel(c.Request.Context(), actor, c.Param("id")); err != nil {
		apperr.Write(c, "projects.delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Project cancelled"})
}
