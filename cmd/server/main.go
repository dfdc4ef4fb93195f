/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance reconciliation server: HTTP API,
  real-time scan watcher, periodic correction cycle and, when brokers are
  configured, Kafka scan ingestion.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (defaults -> YAML file -> environment)
  3. Open SQLite store and change notifications
  4. Wire engine components and HTTP router
  5. Run until SIGINT/SIGTERM, then shut down gracefully

COMMAND-LINE FLAGS:
  -config  YAML configuration file (default: config.yaml, optional)
  -port    HTTP server port, overrides config
  -db      SQLite database path, overrides config
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop scheduler, watcher and ingestion
  4. Close database and transports

ENVIRONMENT:
  See config/config.go. Environment wins over the file.

SEE ALSO:
  - bootstrap/runtime.go: Component wiring
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	_ "time/tzdata"

	"github.com/warp/attendance-engine/bootstrap"
	"github.com/warp/attendance-engine/config"
)

func main() {
	// Flags
	configPath := flag.String("config", "config.yaml", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		config.Exitf("load config: %v", err)
	}
	if *port != 0 {
		cfg.HTTPPort = *port
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	ctx := context.Background()
	rt, err := bootstrap.NewRuntime(ctx, cfg)
	if err != nil {
		config.Exitf("initialize runtime: %v", err)
	}

	if err := rt.RunServer(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}
