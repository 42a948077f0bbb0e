package http

import "github.com/gin-gonic/gin"

// Register attaches invoice routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.POST("", h.create)
	rg.POST("/generate", h.generate)

	rg.GET("/:id", h.get)
	rg.PUT("/:id", h.update)
	rg.GET("/:id/pdf", h.document)

	rg.POST("/:id/send", h.send)
	rg.POST("/:id/pay", h.pay)
	rg.POST("/:id/cancel", h.cancel)
}
