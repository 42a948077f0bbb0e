package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irma-project/irma-backend/internal/api/httpx"
	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/approvals/domain"
)

func (h *Handler) batch(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req batchReq
	if !httpx.BindJSON(c, &req) {
		return
	}

	res, err := h.svc.Batch(c.Request.Context(), actor, req.request())
	if err != nil {
		apperr.Write(c, "approvals.batch", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) pending(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	items, err := h.svc.Pending(c.Request.Context(), actor)
	if err != nil {
		apperr.Write(c, "approvals.pending", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) history(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	from, to, err := httpx.QueryDateRange(c)
	if err != nil {
		apperr.Write(c, "approvals.history", err)
		return
	}
	items, err := h.svc.History(c.Request.Context(), actor, domain.HistoryFilter{
		Status: c.Query("status"),
		UserID: c.Query("userId"),
		From:   from,
		To:     to,
	})
	if err != nil {
		apperr.Write(c, "approvals.history", err)
		return
	}
	c.JSON(http.StatusOK, items)
}
