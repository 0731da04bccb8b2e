/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the sick-pay engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load the statutory parameter set (file or shipped defaults)
  3. Initialize SQLite revision store
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: sickpay.db)
           Use ":memory:" for in-memory database
  -policy  Path to a statutory parameter JSON file
           (default: shipped parameter set)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/sickpay.db"

  # Run with in-memory database and a custom parameter set
  ./server -db=":memory:" -policy="./config/policy.json"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/sickpay-engine/api"
	"github.com/warp/sickpay-engine/factory"
	"github.com/warp/sickpay-engine/pipeline"
	"github.com/warp/sickpay-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "sickpay.db", "SQLite database path")
	policyPath := flag.String("policy", "", "statutory parameter JSON file")
	flag.Parse()

	// Load the statutory parameter set
	policyJSON := factory.DefaultPolicyJSON()
	if *policyPath != "" {
		raw, err := os.ReadFile(*policyPath)
		if err != nil {
			log.Fatalf("Failed to read policy file: %v", err)
		}
		policyJSON = string(raw)
	}
	pol, err := factory.ParsePolicy(policyJSON)
	if err != nil {
		log.Fatalf("Failed to parse policy: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if err := store.SavePolicy(context.Background(), "active", policyJSON); err != nil {
		log.Printf("Warning: Failed to persist policy: %v", err)
	}

	// Initialize handler
	handler := api.NewHandler(store, pipeline.New(pol), policyJSON)

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Sick-pay engine starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
