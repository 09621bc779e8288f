// Package app wires the offer wizard's dependencies together and runs the
// configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/alanyoungcy/p2poffer/internal/config"
)

type modeFunc func(a *App, ctx context.Context, deps *Dependencies) error

var modes = map[string]modeFunc{
	"server":  (*App).ServerMode,
	"archive": (*App).ArchiveMode,
}

// App owns the configuration and the resources opened by Wire.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
	once    sync.Once
}

// New creates an App for cfg.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the backends the mode needs and blocks in the mode until it
// returns or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	run, ok := modes[mode]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.cleanup = cleanup

	a.logger.InfoContext(ctx, "dependencies wired",
		slog.String("mode", mode),
		slog.Any("backends", slices.Sorted(maps.Keys(deps.Pingers))),
		slog.Bool("notifications", deps.Notifier != nil && deps.Notifier.Enabled()),
	)
	return run(a, ctx, deps)
}

// Close releases everything Wire opened. Only the first call has an effect.
func (a *App) Close() {
	a.once.Do(func() {
		if a.cleanup != nil {
			a.logger.Info("releasing resources")
			a.cleanup()
		}
	})
}
