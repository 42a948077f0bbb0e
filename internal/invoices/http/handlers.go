package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irma-project/irma-backend/internal/api/httpx"
	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/invoices/domain"
	"github.com/irma-project/irma-backend/internal/invoices/pdf"
)

func (h *Handler) list(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	from, to, err := httpx.QueryDateRange(c)
	if err != nil {
		apperr.Write(c, "invoices.list", err)
		return
	}
	filter := domain.ListFilter{
		ClientID: c.Query("clientId"),
		Status:   domain.Status(c.Query("status")),
		From:     from,
		To:       to,
	}

	items, err := h.svc.List(c.Request.Context(), actor, filter)
	if err != nil {
		apperr.Write(c, "invoices.list", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) get(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	inv, err := h.svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apperr.Write(c, "invoices.get", err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) generate(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req generateReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		apperr.Write(c, "invoices.generate", err)
		return
	}

	inv, err := h.svc.Generate(c.Request.Context(), actor, in)
	if err != nil {
		apperr.Write(c, "invoices.generate", err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) create(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req invoiceReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		apperr.Write(c, "invoices.create", err)
		return
	}

	inv, err := h.svc.Create(c.Request.Context(), actor, in)
	if err != nil {
		apperr.Write(c, "invoices.create", err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *Handler) update(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req invoiceReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		apperr.Write(c, "invoices.update", err)
		return
	}

	inv, err := h.svc.Update(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		apperr.Write(c, "invoices.update", err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) send(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	inv, err := h.svc.Send(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apperr.Write(c, "invoices.send", err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) pay(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	var req payReq
	if !httpx.BindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		apperr.Write(c, "invoices.pay", err)
		return
	}

	inv, err := h.svc.Pay(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		apperr.Write(c, "invoices.pay", err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) cancel(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	inv, err := h.svc.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apperr.Write(c, "invoices.cancel", err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) document(c *gin.Context) {
	actor, ok := httpx.Principal(c)
	if !ok {
		return
	}

	inv, client, err := h.svc.Document(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		apperr.Write(c, "invoices.pdf", err)
		return
	}
	out, err := pdf.Render(inv, client)
	if err != nil {
		apperr.Write(c, "invoices.pdf", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+pdf.Filename(inv)+`"`)
	c.Data(http.StatusOK, "application/pdf", out)
}
