package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/USA-RedDragon/rpc-tester/internal/config"
	dbpkg "github.com/USA-RedDragon/rpc-tester/internal/db"
	"github.com/USA-RedDragon/rpc-tester/internal/events"
	"github.com/USA-RedDragon/rpc-tester/internal/metrics"
	"github.com/USA-RedDragon/rpc-tester/internal/scripts"
	"github.com/USA-RedDragon/rpc-tester/internal/server"
	"github.com/USA-RedDragon/rpc-tester/internal/storage"
	"github.com/USA-RedDragon/rpc-tester/internal/tester"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
	"golang.org/x/sync/errgroup"
)

func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rpc-tester",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(cmd)
	cmd.AddCommand(newCallCommand())
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	slog.Info("rpc-tester", "version", cmd.Annotations["version"], "commit", cmd.Annotations["commit"])

	config, err := config.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	db, err := dbpkg.MakeDB(config)
	if err != nil {
		return fmt.Errorf("failed to make database: %w", err)
	}
	slog.Info("Database connection established", "driver", config.Persistence.Database.Driver)

	store, err := storage.NewStorage(cmd.Context(), config)
	if err != nil {
		return fmt.Errorf("failed to open script storage: %w", err)
	}
	library := scripts.NewLibrary(store)

	metrics := metrics.NewMetrics()
	bus := events.NewEventBus()

	var forwarder *events.NATSForwarder
	if config.Events.NATS.Enabled {
		forwarder, err = events.NewNATSForwarder(config.Events.NATS.URL, config.Events.NATS.Subject)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		bus.AddForwarder(forwarder)
		slog.Info("Forwarding events to NATS", "url", config.Events.NATS.URL, "subject", config.Events.NATS.Subject)
	}

	tester, err := tester.New(config, metrics, bus, dbpkg.NewHistoryRecorder(db))
	if err != nil {
		return fmt.Errorf("failed to create tester: %w", err)
	}
	slog.Info("Tester ready", "defaultEndpoint", tester.DefaultEndpoint(), "sandbox", tester.SandboxEnabled())

	slog.Info("Starting HTTP server")
	server := server.NewServer(config, tester, metrics, bus, db, library)
	err = server.Start()
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	stop := func(_ os.Signal) {
		slog.Info("Shutting down")

		errGrp := errgroup.Group{}

		errGrp.Go(func() error {
			return server.Stop()
		})

		err := errGrp.Wait()
		if err != nil {
			slog.Error("Shutdown error", "error", err.Error())
		}
		if forwarder != nil {
			if failed := bus.ForwardErrors(); failed > 0 {
				slog.Warn("Events failed to forward to NATS", "count", failed)
			}
			if err := forwarder.Close(); err != nil {
				slog.Error("Failed to drain NATS connection", "error", err)
			}
		}
		if err := library.Close(); err != nil {
			slog.Error("Failed to close script storage", "error", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				slog.Error("Failed to close database", "error", err)
			}
		}
		if dropped := bus.Dropped(); dropped > 0 {
			slog.Warn("Events dropped for slow subscribers", "count", dropped)
		}
		slog.Info("Shutdown complete")
	}

	if cmd.Annotations["version"] == "testing" {
		doneChannel := make(chan struct{})
		go func() {
			slog.Info("Sleeping for 5 seconds")
			time.Sleep(5 * time.Second)
			slog.Info("Sending SIGTERM")
			stop(syscall.SIGTERM)
			doneChannel <- struct{}{}
		}()
		<-doneChannel
	} else {
		shutdown.AddWithParam(stop)
		shutdown.Listen(syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGQUIT)
	}

	return nil
}
