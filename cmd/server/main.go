// main.go
//
// The runtime forms data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-formsdb.
// jam-build-formsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-formsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-formsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/jam-build-formsdb/internal/config"
	"github.com/localnerve/jam-build-formsdb/internal/database"
	"github.com/localnerve/jam-build-formsdb/internal/handlers"
	"github.com/localnerve/jam-build-formsdb/internal/jobs"
	"github.com/localnerve/jam-build-formsdb/internal/metrics"
	"github.com/localnerve/jam-build-formsdb/internal/middleware"
	"github.com/localnerve/jam-build-formsdb/internal/services"
	"github.com/localnerve/jam-build-formsdb/internal/types"
	"github.com/redis/go-redis/v9"

	_ "github.com/localnerve/jam-build-formsdb/docs/api" // Swagger docs
)

// @title FormsDB API
// @version 1.0.0
// @description Go Fiber runtime forms data service
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/formsdb
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Background reindex queue (no-op without redis)
	jobs.InitClient(cfg.RedisAddr)
	defer jobs.CloseClient()

	// Metrics client with the configured cache backend
	var metricsCache metrics.Cache = metrics.NewMemoryCache()
	if cfg.MetricsCacheBackend == "redis" {
		metricsCache = metrics.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}
	metricsClient := metrics.NewClient(cfg.MetricsURL, metricsCache)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("formsdb")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		result := services.HealthCheck(cfg, db)
		status := fiber.StatusOK
		if result.Status != "healthy" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(result)
	})

	// API routes under /api, all authenticated
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())
	api.Use(middleware.Auth(cfg))

	formsHandler := &handlers.FormsHandler{DB: db}
	entriesHandler := &handlers.EntriesHandler{DB: db}
	aclHandler := &handlers.AclHandler{DB: db}
	linkedHandler := &handlers.LinkedHandler{DB: db}
	metricsHandler := &handlers.MetricsHandler{Client: metricsClient}

	// Form definitions
	api.Get("/forms", formsHandler.ListForms)
	api.Post("/forms", formsHandler.CreateForm)
	api.Get("/forms/:formId", formsHandler.GetForm)
	api.Put("/forms/:formId", formsHandler.UpdateForm)
	api.Delete("/forms/:formId", formsHandler.DeleteForm)
	api.Post("/forms/:formId/publish", formsHandler.PublishForm)
	api.Get("/forms/:formId/schema", formsHandler.GetFormSchema)

	// Draft fields
	api.Post("/forms/:formId/fields/reorder", formsHandler.ReorderFields)
	api.Post("/forms/:formId/fields", formsHandler.AddField)
	api.Put("/forms/:formId/fields/:fieldId", formsHandler.UpdateField)
	api.Delete("/forms/:formId/fields/:fieldId", formsHandler.DeleteField)

	// Entries
	api.Get("/forms/:formId/entries", entriesHandler.ListEntries)
	api.Post("/forms/:formId/entries", entriesHandler.CreateEntry)
	api.Get("/forms/:formId/entries/:entryId", entriesHandler.GetEntry)
	api.Put("/forms/:formId/entries/:entryId", entriesHandler.UpdateEntry)
	api.Delete("/forms/:formId/entries/:entryId", entriesHandler.DeleteEntry)
	api.Get("/forms/:formId/entries/:entryId/history", entriesHandler.ListEntryHistory)

	// Access control
	api.Get("/forms/:formId/acl", aclHandler.ListAcl)
	api.Post("/forms/:formId/acl", aclHandler.GrantAcl)
	api.Put("/forms/:formId/acl/:aclId", aclHandler.UpdateAcl)
	api.Delete("/forms/:formId/acl/:aclId", aclHandler.RevokeAcl)

	// Linked-entity discovery
	api.Get("/linked/:entityKind/:entityId", linkedHandler.FindLinkedForms)

	// Metrics panels
	api.Get("/metrics/catalog", metricsHandler.GetCatalog)
	api.Post("/metrics/query", metricsHandler.Query)
	api.Post("/metrics/current", metricsHandler.CurrentValue)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	log.Printf("Authorizer will be initialized on first authenticated request")

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	var customErr *types.CustomError
	if errors.As(err, &customErr) {
		code = customErr.Code
		message = customErr.Message
		errorType = customErr.Type
	} else if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
