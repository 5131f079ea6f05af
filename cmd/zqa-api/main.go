package main

import (
	"zqa-pipeline/internal/api"
	"zqa-pipeline/internal/api/handler"
	"zqa-pipeline/internal/store"
	"zqa-pipeline/pkg/router"
	"zqa-pipeline/pkg/utils"

	_ "zqa-pipeline/docs" // swagger spec
)

// @title Redshift QA Pipeline API
// @version 1.0
// @description API for running and inspecting redshift template-set QA comparisons
// @host localhost:8080
// @BasePath /api/v1
func main() {
	// Init DB
	if err := store.InitDB("zqa.db"); err != nil {
		panic(err)
	}

	om := utils.NewOutputManager("output")
	if err := om.EnsureOutputDirExists(); err != nil {
		panic(err)
	}

	// Create router
	r := router.New()

	// Register API routes
	api.RegisterRoutes(r, handler.New(om))

	// Start server
	r.Start(":8080")
}
