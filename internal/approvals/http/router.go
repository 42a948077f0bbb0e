package http

import "github.com/gin-gonic/gin"

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/pending", h.pending)
	rg.GET("/history", h.history)
	rg.POST("/batch", h.batch)
}
