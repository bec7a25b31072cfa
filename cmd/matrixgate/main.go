// Command matrixgate serves the HTTP control plane for a video routing
// matrix, bridging authenticated API calls onto the device's TCP
// control protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openav/matrix-gate/internal/api"
	"github.com/openav/matrix-gate/internal/audit"
	"github.com/openav/matrix-gate/internal/auth"
	"github.com/openav/matrix-gate/internal/infrastructure/config"
	"github.com/openav/matrix-gate/internal/infrastructure/database"
	"github.com/openav/matrix-gate/internal/infrastructure/logging"
	"github.com/openav/matrix-gate/internal/infrastructure/mqtt"
	"github.com/openav/matrix-gate/internal/matrix"
)

// version is set at build time via -ldflags.
var version = "dev"

// shutdownTimeout bounds how long in-flight requests may drain.
const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "matrixgate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("matrixgate starting",
		"version", version,
		"device", cfg.DeviceAddress(),
		"auth", cfg.Security.EnableAuth,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	auditRepo := audit.NewRepository(db)

	authSvc, err := auth.NewService(cfg.Security, logger)
	if err != nil {
		return fmt.Errorf("initialising auth: %w", err)
	}
	defer authSvc.Close()

	var events matrix.Publisher
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			// The broker is a convenience, not a dependency. Run without it.
			logger.Warn("mqtt unavailable, events disabled", "error", err)
		} else {
			defer mqttClient.Close()
			events = mqttClient
			logger.Info("mqtt connected",
				"broker", cfg.MQTT.Broker.Host,
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	}

	link := matrix.NewLink(cfg.Matrix, logger)
	defer link.Close()

	cache := matrix.NewStatusCache(cfg.GetStatusCacheTTL())
	gateway := matrix.NewGateway(authSvc, link, cache, auditRepo, events, logger)

	// The device link comes up lazily on the first command; a dial
	// failure at boot is logged, not fatal.
	if err := link.Connect(); err != nil {
		logger.Warn("matrix device not reachable at startup", "error", err)
	}

	server := api.New(api.Deps{
		Config:  cfg,
		Logger:  logger,
		Auth:    authSvc,
		Gateway: gateway,
		Audit:   auditRepo,
		DB:      db,
		Version: version,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown", "error", err)
	}

	logger.Info("matrixgate stopped")
	return nil
}
