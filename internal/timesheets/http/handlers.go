package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/irma-project/irma-backend/internal/api/httpx"
	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/timesheets/domain"
)

func (h *Handler) create(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req createReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		apperr.Write(c, "timesheets.create", err)
		return
	}

	t, err := h.svc.Create(c.Request.Context(), actor, in)
	if err != nil {
		apperr.Write(c, "timesheets.create", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) list(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	from, to, err := httpx.QueryDateRange(c)
	if err != nil {
		apperr.Write(c, "timesheets.list", err)
		return
	}
	filter := domain.ListFilter{UserID: c.Query("userId"), From: from, To: to}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, domain.Status(strings.TrimSpace(s)))
		}
	}

	items, err := h.svc.List(c.Request.Context(), actor, filter)
	if err != nil {
		apperr.Write(c, "timesheets.list", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) get(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	t, err := h.svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apperr.Write(c, "timesheets.get", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) update(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req updateReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		apperr.Write(c, "timesheets.update", err)
		return
	}

	t, err := h.svc.Update(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		apperr.Write(c, "timesheets.update", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) submit(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	t, err := h.svc.Submit(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apperr.Write(c, "timesheets.submit", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) approve(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	t, err := h.svc.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apperr.Write(c, "timesheets.approve", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) reject(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	// An empty body is a missing reason, not a malformed request.
	var req rejectReq
	if c.Request.ContentLength != 0 && !httpx.BindJSON(c, &req) {
		return
	}

	t, err := h.svc.Reject(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		apperr.Write(c, "timesheets.reject", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) addEntry(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req entryReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		apperr.Write(c, "timesheets.addEntry", err)
		return
	}

	t, err := h.svc.AddEntry(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		apperr.Write(c, "timesheets.addEntry", err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) updateEntry(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req entryPatchReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	patch, err := req.patch()
	if err != nil {
		apperr.Write(c, "timesheets.updateEntry", err)
		return
	}

	t, err := h.svc.UpdateEntry(c.Request.Context(), actor, c.Param("id"), c.Param("entryId"), patch)
	if err != nil {
		apperr.Write(c, "timesheets.updateEntry", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) removeEntry(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	t, err := h.svc.RemoveEntry(c.Request.Context(), actor, c.Param("id"), c.Param("entryId"))
	if err != nil {
		apperr.Write(c, "timesheets.removeEntry", err)
		return
	}
	c.JSON(http.StatusOK, t)
}
