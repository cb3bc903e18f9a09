package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gdg-garage/fitclass-api/internal/auth"
	"github.com/gdg-garage/fitclass-api/internal/broker"
	"github.com/gdg-garage/fitclass-api/internal/config"
	"github.com/gdg-garage/fitclass-api/internal/database"
	"github.com/gdg-garage/fitclass-api/internal/events"
	"github.com/gdg-garage/fitclass-api/internal/handlers"
	"github.com/gdg-garage/fitclass-api/internal/ratelimit"
	"github.com/gdg-garage/fitclass-api/internal/recurrence"
	"github.com/gdg-garage/fitclass-api/internal/registrations"
	"github.com/gdg-garage/fitclass-api/internal/wellness"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// run wires the service and serves until a signal arrives or the listener fails.
// The deferred closes run on both paths.
func run() error {
	// Load Configuration
	cfg := config.LoadConfig()

	// Connect to Database
	db := database.Connect(cfg)

	// Activity publisher
	var publisher broker.Publisher = broker.Nop{}
	if cfg.AMQPURL != "" {
		amqpPublisher := broker.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	} else {
		log.Printf("AMQP_URL is not set, activity messages are discarded")
	}

	// Services
	eventService := events.NewService(db, recurrence.Engine{DailyFallback: cfg.RecurrenceDailyFallback}, cfg.Location())
	if cfg.OccurrenceBatchSize > 0 {
		eventService.BatchSize = cfg.OccurrenceBatchSize
	}
	registrationService := registrations.NewService(db, publisher)
	wellnessService := wellness.NewService(db, publisher)

	// Initialize Handlers
	authHandler := auth.NewAuthHandler(cfg, db)
	h := &handlers.Handlers{
		Auth:          authHandler,
		Categories:    handlers.NewCategoryHandler(db, authHandler),
		Events:        handlers.NewEventHandler(eventService, authHandler),
		Registrations: handlers.NewRegistrationHandler(registrationService, authHandler),
		Attendance:    handlers.NewAttendanceHandler(wellnessService, authHandler),
		Wellness:      handlers.NewWellnessHandler(wellnessService, authHandler),
		APIKeys:       handlers.NewAPIKeyHandler(db, authHandler),
	}

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(authHandler.RefreshMiddleware)

	rdb := ratelimit.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
	}
	r.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        cfg.RateLimitEnabled,
		Capacity:       cfg.RateLimitCapacity,
		RefillInterval: cfg.RateLimitRefillInterval,
		Methods:        cfg.RateLimitMethods,
		Prefix:         "fitclass",
	}, rdb, authHandler.SubjectHint))

	// Register Routes
	handlers.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	return serve(srv, stop, cfg.ShutdownTimeout)
}

// serve returns the listener error if the server fails to start, otherwise it shuts
// down gracefully once stop fires.
func serve(srv *http.Server, stop <-chan os.Signal, timeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-stop:
	}

	log.Printf("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
	return nil
}
