package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	"zqa-pipeline/internal/api/handler"
	"zqa-pipeline/pkg/router"
)

// RegisterRoutes wires the QA-run API onto the router. Specific wildcard
// routes are registered alongside the generic /runs/* routes; the router
// prefers exact matches, and wildcard segments only match one path
// segment each, so /runs/{id}/grids never collides with /runs/{id}.
func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	r.GET("/api/v1/runs/*", h.GetRun)
	r.DELETE("/api/v1/runs/*", h.DeleteRun)

	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/*/grids", h.GetRunGrids)
	r.GET("/api/v1/runs/*/sample", h.GetRunSample)
	r.GET("/api/v1/runs/*/logs", h.GetRunLogs)
	r.GET("/api/v1/runs/*/metrics", h.GetRunMetrics)
	r.GET("/api/v1/runs/*/progress", h.GetRunProgress)
	r.GET("/api/v1/runs/*/summary", h.GetRunSummary)

	r.POST("/api/v1/runs/*/retry", h.RetryRun)
	r.PATCH("/api/v1/runs/*/cancel", h.CancelRun)

	r.GET("/api/v1/download/*/*", h.DownloadFile)
	r.GET("/api/v1/files/*", h.GetFileInfo)

	r.Mount("/swagger/", httpSwagger.WrapHandler)
}
