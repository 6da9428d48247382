package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/cronfleet/internal/transport/http/handler"
	"github.com/ErlanBelekov/cronfleet/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, jobHandler *handler.JobHandler) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(sloggin.New(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	jobs := r.Group("/jobs")
	{
		jobs.POST("", jobHandler.Create)
		jobs.GET("", jobHandler.List)
		jobs.GET("/:id", jobHandler.GetByID)
		jobs.PATCH("/:id/active", jobHandler.SetActive)
		jobs.GET("/:id/runs", jobHandler.ListRuns)
	}

	return r
}
