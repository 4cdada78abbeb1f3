package api

import (
	"hospital-kpi-pipeline/internal/api/handler"
	"hospital-kpi-pipeline/pkg/router"
)

func RegisterRoutes(r *router.Router, h *handler.RunHandler) {
	r.GET("/api/v1/endpoints", h.ListEndpoints)
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/cards", h.GetRunCards)
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/*/overrides", h.GetRunOverrides)
	// Generic run route last
	r.GET("/api/v1/runs/*", h.GetRun)
}
