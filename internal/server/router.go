package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the digitization endpoints.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	menus := v1.Group("/menus")
	{
		menus.POST("/digitize", h.DigitizeSync)
		menus.POST("/digitize/jobs", h.SubmitJob)
		menus.GET("/digitize/jobs/:job_id", h.JobProgress)
	}

	return r
}
