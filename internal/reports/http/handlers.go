package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irma-project/irma-backend/internal/api/httpx"
	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/reports/domain"
	"github.com/irma-project/irma-backend/internal/reports/service"
)

type Handler struct {
	svc *service.ReportService
}

func New(svc *service.ReportService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) budget(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	r, err := h.svc.Budget(c.Request.Context(), actor, domain.Filter{ClientID: c.Query("clientId")})
	if err != nil {
		apperr.Write(c, "reports.budget", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) unbilled(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	r, err := h.svc.Unbilled(c.Request.Context(), actor, domain.Filter{ClientID: c.Query("clientId")})
	if err != nil {
		apperr.Write(c, "reports.unbilled", err)
		return
	}
	c.JSON(http.StatusOK, r)
}
