// pushprobe connects to the portal push channel and prints every event to the
// console. Useful for checking what the backend actually emits.
//
// Usage: go run ./cmd/pushprobe --config configs/portal.example.yaml --student-id 123
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campuspantry/portal-sync/internal/config"
	"github.com/campuspantry/portal-sync/internal/identity"
	"github.com/campuspantry/portal-sync/internal/model"
	"github.com/campuspantry/portal-sync/internal/push"
)

func main() {
	configPath := flag.String("config", "configs/portal.example.yaml", "path to config file")
	studentID := flag.String("student-id", "", "portal record id to identify as")
	studentEmail := flag.String("student-email", "", "student email to identify as")
	verbose := flag.Bool("verbose", false, "print full payload JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ident := identity.Resolve(model.ID(*studentID), "", *studentEmail)
	if ident.IsZero() {
		logger.Error("no identity given, need -student-id or -student-email")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	mgrCfg := push.DefaultManagerConfig()
	mgrCfg.URL = cfg.Push.URL
	mgrCfg.Token = cfg.API.Token
	mgrCfg.RetryAttempts = cfg.Push.RetryAttempts
	mgrCfg.RetryWait = cfg.Push.RetryWait
	mgr := push.NewManager(mgrCfg, logger, nil)
	defer mgr.Disconnect()

	print := func(event string) push.Handler {
		return func(data json.RawMessage) {
			if *verbose {
				fmt.Printf("%s %s %s\n", time.Now().Format(time.RFC3339), event, data)
				return
			}
			fmt.Printf("%s %s (%d bytes)\n", time.Now().Format(time.RFC3339), event, len(data))
		}
	}
	mgr.On(push.EventOrderUpdated, print(push.EventOrderUpdated))
	mgr.On(push.EventOrderClaimed, print(push.EventOrderClaimed))
	mgr.On(push.EventRestocked, print(push.EventRestocked))

	logger.Info("connecting", "url", cfg.Push.URL)
	if err := mgr.Connect(ctx, ident); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected, streaming events (ctrl-c to stop)")

	<-ctx.Done()
	logger.Info("pushprobe stopped")
}
