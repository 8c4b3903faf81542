package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"hubebony/config"
	controller "hubebony/controllers"
	"hubebony/leadsource"
	"hubebony/middleware"
	"hubebony/routes"
	"hubebony/tracking"
	"hubebony/worker"
)

func main() {
	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	config.SetupLogging()
	logger := logrus.StandardLogger()

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.WithError(err).Warn("Sentry initialization failed")
		}
		defer sentry.Flush(2 * time.Second)
	}

	var rdb *redis.Client
	if config.AppConfig.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     config.AppConfig.Redis.Address,
			Password: config.AppConfig.Redis.Password,
			DB:       config.AppConfig.Redis.DB,
		})
		defer rdb.Close()
	}

	sinks := []tracking.EventSink{tracking.NewLogSink(logger.WithField("component", "tracking"))}
	if rdb != nil {
		sinks = append(sinks, tracking.NewRedisSink(rdb, config.AppConfig.EventsKey, config.AppConfig.EventsMaxLen, logger))
	}
	sink := tracking.NewMulti(sinks...)

	var (
		source         leadsource.Source
		leadController *controller.LeadController
	)
	switch config.AppConfig.LeadSource.Kind {
	case config.LeadSourceHTTP:
		source = leadsource.NewHTTPSource(
			config.AppConfig.LeadSource.URL,
			config.AppConfig.LeadSource.Token,
			config.AppConfig.LeadSource.Timeout,
			logger.WithField("component", "lead_source"),
		)
	default:
		// Initialize database connection
		if err := config.ConnectDB(); err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		store := leadsource.NewGormStore(config.DB, logger.WithField("component", "lead_store"))
		source = store
		leadController = controller.NewLeadController(store, sink, logger.WithField("controller", "lead"))
	}

	repeatLeadController := controller.NewRepeatLeadController(source, sink, logger.WithField("controller", "repeat_leads"))

	// Create Fiber app
	app := fiber.New()
	app.Use(recover.New())
	app.Use(middleware.CORS(config.AppConfig.AllowedOrigins))

	routes.SetupRoutes(app, routes.Deps{
		RepeatLeads:  repeatLeadController,
		Leads:        leadController,
		Redis:        rdb,
		RateLimitMax: config.AppConfig.RateLimitMax,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.AppConfig.Digest.Enabled {
		digestWorker := worker.NewDigestWorker(
			source,
			sink,
			config.AppConfig.Digest.Interval,
			config.AppConfig.Digest.WindowDays,
			logger,
		)
		go digestWorker.Start(ctx)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down server...")
		cancel()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Error("Server shutdown failed")
		}
	}()

	// Start server
	logger.Infof("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
