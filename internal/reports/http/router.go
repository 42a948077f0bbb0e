package http

import "github.com/gin-gonic/gin"

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/budget", h.budget)
	rg.GET("/unbilled", h.unbilled)
}
