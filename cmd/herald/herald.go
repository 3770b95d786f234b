package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getherald/herald/internal/bus"
	"github.com/getherald/herald/internal/deliver"
	"github.com/getherald/herald/internal/httpapi"
	"github.com/getherald/herald/internal/jobs"
	"github.com/getherald/herald/internal/log"
	"github.com/getherald/herald/internal/model"
	"github.com/getherald/herald/internal/runner"
	"github.com/getherald/herald/internal/secrets"
	"github.com/getherald/herald/internal/transform"

	"github.com/spf13/cobra"
)

// Herald is the assembled daemon: stores, runner, retention sweeper,
// lifecycle publisher, and the HTTP server.
type Herald struct {
	config   model.Config
	db       *sql.DB // nil with the memory driver
	registry *jobs.Registry
	secrets  secrets.Store
	runner   *runner.Runner
	sweeper  *jobs.Sweeper
	events   *bus.Publisher
	server   *http.Server
}

func doServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attrs := slog.Group("herald",
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	h, err := newHerald(ctx, config)
	if err != nil {
		return err
	}
	return h.Do(ctx)
}

func newHerald(ctx context.Context, cfg model.Config) (*Herald, error) {
	var (
		db          *sql.DB
		backing     jobs.Backing
		secretStore secrets.Store
		err         error
	)
	switch cfg.Store.Driver {
	case model.StoreDriverSQLite:
		db, err = jobs.OpenDB(ctx, cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening store %s: %w", cfg.Store.Path, err)
		}
		backing, err = jobs.NewSQLite(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("preparing job store: %w", err)
		}
		secretStore, err = secrets.NewSQLite(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("preparing secret store: %w", err)
		}
	default:
		backing = jobs.NewMemory()
		secretStore = secrets.NewMemory()
	}

	registry := jobs.NewRegistry(backing)

	sweeper, err := jobs.NewSweeper(ctx, registry, cfg.Retention)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("configuring retention: %w", err)
	}

	timeout, err := model.ParseCueDuration(cfg.Callback.Timeout)
	if err != nil {
		_ = sweeper.Shutdown()
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("parsing callback timeout: %w", err)
	}

	var events *bus.Publisher
	if cfg.Events != nil {
		events, err = bus.Connect(cfg.Events.URL, cfg.Events.Subject)
		if err != nil {
			_ = sweeper.Shutdown()
			if db != nil {
				_ = db.Close()
			}
			return nil, fmt.Errorf("connecting event bus %s: %w", cfg.Events.URL, err)
		}
	}

	transforms := transform.FromConfig(cfg.Transforms)
	run := runner.New(registry, transforms, secretStore, deliver.New(secretStore, timeout), events)
	api := httpapi.NewServer(cfg.Plugin.Name, run, registry, secretStore, transforms)

	return &Herald{
		config:   cfg,
		db:       db,
		registry: registry,
		secrets:  secretStore,
		runner:   run,
		sweeper:  sweeper,
		events:   events,
		server: &http.Server{
			Addr:              cfg.Serve.Listen,
			Handler:           api.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Do serves until the context is canceled, then shuts down in order:
// stop accepting requests, drain in-flight jobs, stop the sweeper.
func (h *Herald) Do(ctx context.Context) error {
	defer h.close()
	h.sweeper.Start()

	slog.InfoContext(ctx, "herald listening",
		"addr", h.server.Addr,
		"store", h.config.Store.Driver,
		"events", h.config.Events != nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving %s: %w", h.server.Addr, err)
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := h.server.Shutdown(shutdownCtx); err != nil {
		slog.WarnContext(ctx, "stopping http server", "error", err)
	}

	// In-flight jobs finish and deliver their callbacks.
	h.runner.Wait()
	return nil
}

func (h *Herald) close() {
	if err := h.sweeper.Shutdown(); err != nil {
		slog.Warn("stopping sweeper", "error", err)
	}
	h.events.Close()
	if h.db != nil {
		_ = h.db.Close()
	}
}
