package main

import (
	"hospital-kpi-pipeline/internal/api"
	"hospital-kpi-pipeline/internal/api/handler"
	"hospital-kpi-pipeline/internal/auth"
	"hospital-kpi-pipeline/internal/config"
	"hospital-kpi-pipeline/internal/endpoint"
	"hospital-kpi-pipeline/internal/pipeline"
	"hospital-kpi-pipeline/internal/store"
	"hospital-kpi-pipeline/pkg/router"

	_ "hospital-kpi-pipeline/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Hospital KPI Pipeline API
// @version 1.0
// @description Ingestion and aggregation pipeline for the hospital operations KPI dashboard
// @BasePath /api/v1
func main() {
	cfg := config.Load()

	// Init DB
	if err := store.InitDB(cfg.DBPath); err != nil {
		panic(err)
	}

	// Wire the pipeline: token provider -> endpoint client -> orchestrator
	provider := auth.NewProvider(cfg.AuthURL, cfg.AuthUsername, cfg.AuthPassword)
	client := endpoint.NewClient(cfg.BaseURL, provider, cfg.BaseTimeout)
	pipe := pipeline.New(client)

	// Create router
	r := router.New()

	// Register API routes
	api.RegisterRoutes(r, handler.NewRunHandler(pipe))
	r.Mount("/swagger/", httpSwagger.WrapHandler)

	// Start server
	r.Start(":" + cfg.Port)
}
