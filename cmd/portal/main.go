package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campuspantry/portal-sync/internal/activity"
	"github.com/campuspantry/portal-sync/internal/api"
	"github.com/campuspantry/portal-sync/internal/config"
	"github.com/campuspantry/portal-sync/internal/identity"
	"github.com/campuspantry/portal-sync/internal/metrics"
	"github.com/campuspantry/portal-sync/internal/model"
	"github.com/campuspantry/portal-sync/internal/notify"
	"github.com/campuspantry/portal-sync/internal/orders"
	"github.com/campuspantry/portal-sync/internal/push"
	"github.com/campuspantry/portal-sync/internal/storage"
	"github.com/campuspantry/portal-sync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/portal.example.yaml", "path to config file")
	studentID := flag.String("student-id", "", "portal record id of the signed-in student")
	studentAuthID := flag.String("student-auth-id", "", "auth provider subject id")
	studentEmail := flag.String("student-email", "", "student email, last-resort matching key")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting portal sync",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ident := identity.Resolve(model.ID(*studentID), model.ID(*studentAuthID), *studentEmail)
	if ident.IsZero() {
		logger.Error("no identity given, need -student-id, -student-auth-id or -student-email")
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"api_url", cfg.API.BaseURL,
		"push_url", cfg.Push.URL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	mreg := metrics.NewRegistry()

	// Open local persistence
	kv, err := storage.OpenPebble(cfg.Storage.Dir, storage.PebbleOptions{
		MaxValueBytes: cfg.Storage.MaxValueBytes,
	})
	if err != nil {
		logger.Error("failed to open local storage", "dir", cfg.Storage.Dir, "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	// REST client
	apiClient := api.NewClient(
		cfg.API.BaseURL,
		api.WithToken(cfg.API.Token),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithLogger(logger),
	)

	acceptUnmatched := !cfg.Identity.StrictMatching

	// State stores
	orderStore := orders.NewStore(orders.Config{
		SettleDelay:      cfg.Orders.SettleDelay,
		DebounceInterval: cfg.Orders.DebounceInterval,
		RetryDelay:       cfg.Orders.RetryDelay,
		ConfirmWindow:    cfg.Orders.ConfirmWindow,
		PageLimit:        cfg.Orders.PageLimit,
		AcceptUnmatched:  acceptUnmatched,
	}, apiClient, logger, mreg)
	defer orderStore.Stop()

	activityStore := activity.NewStore(activity.Config{
		Cap:             cfg.Activity.Cap,
		EmergencyCap:    cfg.Activity.EmergencyCap,
		AcceptUnmatched: acceptUnmatched,
	}, kv, logger, mreg)

	notifyStore := notify.NewStore(notify.Config{
		Cap: cfg.Notifications.Cap,
	}, apiClient, kv, logger, mreg)

	orderStore.SetClaimSink(activityStore)

	// Push connection
	mgrCfg := push.DefaultManagerConfig()
	mgrCfg.URL = cfg.Push.URL
	mgrCfg.Token = cfg.API.Token
	mgrCfg.RetryAttempts = cfg.Push.RetryAttempts
	mgrCfg.RetryWait = cfg.Push.RetryWait
	mgrCfg.PingTimeout = cfg.Push.PingTimeout
	mgrCfg.BufferSize = cfg.Push.BufferSize
	mgr := push.NewManager(mgrCfg, logger, mreg)
	defer mgr.Disconnect()

	mgr.On(push.EventOrderUpdated, orderStore.HandlePushUpdate)
	mgr.On(push.EventOrderClaimed, activityStore.HandleClaimEvent)
	mgr.On(push.EventRestocked, notifyStore.HandleRestockEvent)

	// Install the identity: loads persisted state and kicks off the initial
	// order fetch.
	activityStore.SetIdentity(ident)
	notifyStore.SetIdentity(ident)
	orderStore.SetIdentity(ctx, ident)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := activityStore.SyncFromServer(gctx, apiClient); err != nil {
			logger.Warn("activity backfill failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := notifyStore.Refresh(gctx); err != nil {
			logger.Warn("notification refresh failed", "error", err)
		}
		return nil
	})

	if err := mgr.Connect(ctx, ident); err != nil {
		// The manager keeps retrying in the background; log and carry on.
		logger.Warn("initial push connect failed", "error", err)
	}

	// Metrics and health server
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, mreg.Handler())
	mux.HandleFunc("/healthz", healthHandler(mgr, orderStore))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	g.Go(func() error {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("portal sync running",
		"health_url", fmt.Sprintf("http://localhost:%d/healthz", cfg.Metrics.Port),
	)

	if err := g.Wait(); err != nil {
		logger.Error("portal sync exited", "error", err)
		os.Exit(1)
	}
	logger.Info("portal sync stopped")
}

// healthHandler reports push connectivity and order store health.
func healthHandler(mgr *push.Manager, orderStore *orders.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		pushStatus := mgr.Status()
		health.Components["push"] = string(pushStatus)
		if pushStatus != push.StatusConnected {
			health.Status = "degraded"
		}

		ordersHealth := map[string]any{
			"loaded": orderStore.Loaded(),
			"count":  len(orderStore.Orders()),
		}
		if err := orderStore.LastErr(); err != nil {
			health.Status = "degraded"
			ordersHealth["error"] = err.Error()
		}
		health.Components["orders"] = ordersHealth

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}
