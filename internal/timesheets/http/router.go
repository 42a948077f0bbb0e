package http

import "github.com/gin-gonic/gin"

// Register attaches timesheet routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.PUT("/:id", h.update)

	rg.POST("/:id/submit", h.submit)
	rg.POST("/:id/approve", h.approve)
	rg.POST("/:id/reject", h.reject)

	rg.POST("/:id/entries", h.addEntry)
	rg.PUT("/:id/entries/:entryId", h.updateEntry)
	rg.DELETE("/:id/entries/:entryId", h.removeEntry)
}
