// Package main boots the POS session service HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/fairyhunter13/pos-session-service/internal/config"
	httpapi "github.com/fairyhunter13/pos-session-service/internal/http"
	"github.com/fairyhunter13/pos-session-service/internal/obs"
	"github.com/fairyhunter13/pos-session-service/internal/payment"
	"github.com/fairyhunter13/pos-session-service/internal/queue"
	"github.com/fairyhunter13/pos-session-service/internal/quote"
	"github.com/fairyhunter13/pos-session-service/internal/session"
	"github.com/fairyhunter13/pos-session-service/internal/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
)

func main() {
	cfg := config.Load()
	obs.InitLogger()
	obs.Logger.Info("service_starting", "store_backend", cfg.StoreBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := obs.InitTracing(ctx, cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		obs.Logger.Error("tracing_init_failed", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		obs.Logger.Error("store_open_failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	q := queue.New(128)
	mgr := queue.NewManager(cfg, q, store.NewSequenced(st))
	mgr.Start(ctx)

	proc := payment.Processor{Delay: cfg.PaymentDelay, PayBaseURL: cfg.QRISPayBaseURL}
	sessions, err := session.NewRegistry(cfg.SessionCacheSize, st, mgr, proc)
	if err != nil {
		obs.Logger.Error("registry_init_failed", "error", err)
		os.Exit(1)
	}
	quotes := quote.NewService(quote.NewClient(cfg.QuoteAPIURL, cfg.TranslateAPIURL, cfg.QuoteTimeout), cfg.QuoteMaxID)

	app := httpapi.NewApp(cfg, sessions, mgr, quotes, st)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	// Steps run in order: stop intake, flush saves, stop serving, then
	// release sessions, writers and the backend.
	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"pos-service": func(sctx context.Context) error {
			app.StartShutdown()
			obs.Logger.Info("shutdown_drain_begin", "backlog_size", mgr.BacklogSize(), "worker_count", mgr.WorkerCount())
			if mgr.DrainUntil(sctx) {
				obs.Logger.Info("shutdown_drain_complete")
			} else {
				obs.Logger.Warn("shutdown_drain_timeout", "stats", mgr.Stats())
			}
			if err := srv.Shutdown(sctx); err != nil {
				obs.Logger.Error("http_shutdown_error", "error", err)
			}
			sessions.CloseAll()
			mgr.Stop()
			cancel()
			var errs []error
			if err := st.Close(); err != nil {
				errs = append(errs, err)
			}
			if err := shutdownTracing(context.WithoutCancel(sctx)); err != nil {
				errs = append(errs, err)
			}
			obs.Logger.Info("service_stopped")
			return errors.Join(errs...)
		},
	})
	os.Exit(<-wait)
}
