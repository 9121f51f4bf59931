package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"flowforge/api/pkg/db"
	"flowforge/api/pkg/llm"
	"flowforge/api/pkg/notify"
	"flowforge/api/services/history"
	"flowforge/api/services/preferences"
	"flowforge/api/services/workflow"
)

func main() {
	ctx := context.Background()
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(logHandler))

	dbURL, ok := os.LookupEnv("DATABASE_URL")
	if !ok {
		slog.Error("DATABASE_URL is not set")
		return
	}

	modelURL := envOr("MODEL_URL", "http://localhost:11434")
	modelName := envOr("MODEL_NAME", "llama3.2")
	listenAddr := envOr("LISTEN_ADDR", ":8080")

	stepTimeout := workflow.DefaultStepTimeout
	if raw := os.Getenv("STEP_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			slog.Warn("Invalid STEP_TIMEOUT, using default", "value", raw, "default", stepTimeout)
		} else {
			stepTimeout = d
		}
	}

	pool, err := db.Connect(ctx, dbURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return
	}
	defer pool.Close()

	// Initialize database schemas and seed data
	if err := workflow.InitDB(ctx, pool); err != nil {
		slog.Error("Failed to initialize workflow schema", "error", err)
		return
	}
	if err := history.NewRepository(pool).InitSchema(ctx); err != nil {
		slog.Error("Failed to initialize history schema", "error", err)
		return
	}
	if err := preferences.NewRepository(pool).InitSchema(ctx); err != nil {
		slog.Error("Failed to initialize preferences schema", "error", err)
		return
	}

	// Progress surfaces: WebSocket hub always, Redis publisher when configured
	hub := notify.NewHub()
	sinks := notify.MultiSink{notify.NewHubSink(hub)}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		publisher, err := notify.NewRedisPublisher(redisAddr, os.Getenv("REDIS_PASSWORD"), "")
		if err != nil {
			slog.Error("Failed to connect to Redis, progress publishing disabled", "error", err)
		} else {
			defer publisher.Close()
			sinks = append(sinks, publisher)
		}
	}

	modelClient := llm.NewOllamaClient(modelURL, modelName)

	// setup router
	mainRouter := mux.NewRouter()

	apiRouter := mainRouter.PathPrefix("/api/v1").Subrouter()
	apiRouter.Handle("/progress", hub).Methods("GET")

	workflowService := workflow.NewService(pool, modelClient, sinks, stepTimeout)
	workflowService.LoadRoutes(apiRouter)

	historyService := history.NewService(pool)
	historyService.LoadRoutes(apiRouter)

	preferencesService := preferences.NewService(pool)
	preferencesService.LoadRoutes(apiRouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{envOr("FRONTEND_ORIGIN", "http://localhost:3003")}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)(mainRouter)

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: corsHandler,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "addr", listenAddr, "model", modelName)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("Server error", "error", err)

	case sig := <-shutdown:
		slog.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Could not stop server gracefully", "error", err)
			srv.Close()
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
