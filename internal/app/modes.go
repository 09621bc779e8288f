package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/p2poffer/internal/archive"
	"github.com/alanyoungcy/p2poffer/internal/marketprice"
	"github.com/alanyoungcy/p2poffer/internal/server"
	"github.com/alanyoungcy/p2poffer/internal/server/handler"
	"github.com/alanyoungcy/p2poffer/internal/server/ws"
	"github.com/alanyoungcy/p2poffer/internal/service"
)

// ServerMode serves the wizard API, the WebSocket push channel and the
// session expiry loop until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)

	settings := a.cfg.Wizard.PlatformSettings()

	var sourceOpts []marketprice.Option
	if deps.PriceCache != nil {
		sourceOpts = append(sourceOpts, marketprice.WithCache(deps.PriceCache))
	}
	if deps.SignalBus != nil {
		sourceOpts = append(sourceOpts, marketprice.WithBus(deps.SignalBus))
	}
	source := marketprice.NewSource(deps.Exchange, settings.PricePollInterval, a.logger, sourceOpts...)

	wizards := service.NewWizardService(deps.Exchange, source, service.WizardConfig{
		Settings:      settings,
		SessionTTL:    a.cfg.Wizard.SessionTTL.Duration,
		SubmitLockTTL: a.cfg.Wizard.SubmitLockTTL.Duration,
	}, a.logger)
	if deps.LockManager != nil {
		wizards.SetLocks(deps.LockManager)
	}
	if deps.AuditStore != nil {
		wizards.SetAudit(deps.AuditStore)
	}
	if deps.OfferStore != nil {
		wizards.SetOffers(deps.OfferStore)
	}
	if deps.SignalBus != nil {
		wizards.SetBus(deps.SignalBus)
	}
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		wizards.SetNotifier(deps.Notifier)
	}
	g.Go(func() error { return wizards.Run(ctx) })

	prices := service.NewPriceService(deps.Exchange, deps.PriceCache, deps.SignalBus,
		a.cfg.Wizard.PriceMaxAge.Duration, a.logger)
	methods := service.NewPaymentMethodService(deps.Exchange, deps.AuditStore, a.logger)

	handlers := server.Handlers{
		Health:         handler.NewHealthHandler(deps.Pingers, wizards, a.logger),
		Wizard:         handler.NewWizardHandler(wizards, a.logger),
		PaymentMethods: handler.NewPaymentMethodHandler(methods, a.logger),
		Market:         handler.NewMarketHandler(prices, a.logger),
	}
	if deps.OfferStore != nil {
		handlers.Offers = handler.NewOfferHandler(wizards, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger)
		g.Go(func() error { return hub.Run(ctx) })
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// ArchiveMode copies aged audit rows to object storage. Without a cron
// schedule it runs once and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	runner := archive.NewRunner(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)

	if a.cfg.Archive.Cron == "" {
		n, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "archive mode finished", slog.Int64("archived", n))
		return nil
	}
	return runner.RunCron(ctx, a.cfg.Archive.Cron)
}
