package main

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/autolink/internal/config"
	"github.com/example/autolink/internal/database"
	"github.com/example/autolink/internal/metrics"
	"github.com/example/autolink/internal/routes"
	"github.com/example/autolink/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	db := database.Connect(cfg.DatabaseURL)

	app := fiber.New(fiber.Config{
		AppName: "Auto-Link Backend",
	})

	app.Use(recover.New())
	app.Use(fiberlog.New())

	routes.Register(app, db, cfg, log)

	// Ops listener: metrics scrape endpoint, separate from the API port.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		log.WithField("port", cfg.MetricsPort).Info("metrics listener starting")
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			log.WithError(err).Error("metrics listener failed")
		}
	}()

	log.WithField("port", cfg.AppPort).Info("server starting")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.WithError(err).Fatal("fiber.Listen error")
	}
}
