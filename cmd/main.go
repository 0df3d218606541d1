package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"imbackend/config"
	"imbackend/db"
	"imbackend/handlers"
	"imbackend/middleware"
	"imbackend/services/communications"
	"imbackend/services/integrations"
	"imbackend/services/ratelimit"
	syncsvc "imbackend/services/sync"
	"imbackend/services/txmanager"
	"imbackend/services/users"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	// Initialize repositories with shared connection
	integrationsRepo := db.NewPostgresIntegrationsRepository(dbConn, cfg.DatabaseSchema)
	recordsRepo := db.NewPostgresRecordsRepository(dbConn, cfg.DatabaseSchema)
	syncRunsRepo := db.NewPostgresSyncRunsRepository(dbConn, cfg.DatabaseSchema)
	usersRepo := db.NewPostgresUsersRepository(dbConn, cfg.DatabaseSchema)

	usersService := users.NewUsersService(usersRepo)
	syncEngine := syncsvc.NewEngine(recordsRepo)
	integrationsService := integrations.NewIntegrationsService(
		integrationsRepo,
		recordsRepo,
		syncRunsRepo,
		syncEngine,
		txmanager.NewTransactionManager(dbConn),
		integrations.NewCRMClient,
		integrations.NewCommunicationClient,
	)
	communicationsService := communications.NewCommunicationsService(
		integrationsRepo,
		integrations.NewCommunicationClient,
	)

	integrationsHandler := handlers.NewIntegrationsHTTPHandler(integrationsService)
	communicationsHandler := handlers.NewCommunicationsHTTPHandler(communicationsService)
	authMiddleware := middleware.NewClerkAuthMiddleware(usersService, cfg.ClerkConfig.SecretKey)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(
		ratelimit.NewFixedWindowLimiter(cfg.RateLimitConfig.RequestsPerMinute, time.Minute),
	)

	// Create a new router
	router := mux.NewRouter()
	integrationsHandler.SetupEndpoints(router, authMiddleware, rateLimitMiddleware)
	communicationsHandler.SetupEndpoints(router, authMiddleware, rateLimitMiddleware)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			log.Printf("❌ Failed to write health check response: %v", err)
		}
	}).Methods("GET")

	// Setup CORS middleware
	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	// Setup and handle graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.WithRequestID(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server)
}

func handleGracefulShutdown(server *http.Server) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Server error: %v", err)
		}
	}()

	<-stop
	log.Printf("🛑 Shutdown signal received, cleaning up...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	log.Printf("✅ Server shut down cleanly")
	return nil
}
