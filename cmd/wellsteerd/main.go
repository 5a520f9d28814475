// Command wellsteerd is the directional-drilling telemetry daemon. It keeps a
// resilient WITS link to the rig, aggregates surveys, derives steering values
// and serves them to presentation clients over REST and WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wellsteer/wellsteer/internal/alerts"
	"github.com/wellsteer/wellsteer/internal/api"
	"github.com/wellsteer/wellsteer/internal/config"
	"github.com/wellsteer/wellsteer/internal/override"
	"github.com/wellsteer/wellsteer/internal/steering"
	"github.com/wellsteer/wellsteer/internal/survey"
	"github.com/wellsteer/wellsteer/internal/wits"
	wsHub "github.com/wellsteer/wellsteer/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("wellsteerd starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"protocol", cfg.Connection.Protocol,
		"wits_level", cfg.Connection.WITSLevel,
		"http_port", cfg.Server.HTTPPort,
		"alert_rules", len(cfg.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	link := wits.NewLink(cfg.Connection, wits.NewParser(cfg.Connection.WITSLevel, cfg.Channels.Definitions))
	agg := survey.NewAggregator(cfg.Drilling.MinDistance, cfg.Drilling.MovingAverageCount,
		cfg.Drilling.Fallbacks.BuildRate, cfg.Drilling.Fallbacks.TurnRate)
	ovr := override.NewStore(cfg.Limits)
	alertEngine := alerts.New(cfg.Alerts)

	coord := steering.New(link, agg, ovr, cfg)
	coord.OnState(func(st wits.State) {
		alertEngine.Evaluate(coord.Snapshot(), st)
	})
	coord.Start(ctx)

	// Evaluate alert rules on every published snapshot.
	go func() {
		snaps, cancelSub := coord.Subscribe()
		defer cancelSub()
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snaps:
				alertEngine.Evaluate(snap, link.State())
			}
		}
	}()

	// Hot reload: drilling/channel/alert/clamp settings apply immediately,
	// connection settings on the next connect.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			link.UpdateConfig(next.Connection)
			coord.ApplyConfig(next)
			alertEngine.UpdateConfig(next.Alerts)
		})
		if err != nil {
			slog.Error("config watcher failed", "err", err)
		}
	}()

	if cfg.Connection.AutoConnect {
		if err := link.Connect(); err != nil {
			slog.Error("initial connect failed", "err", err)
		}
	}

	// WebSocket hub broadcasting the snapshot to UI clients.
	hub := wsHub.New(coord, link, cfg.Server.BroadcastInterval.Std())
	go hub.Run(ctx)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(link, coord, agg, ovr, alertEngine))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("wellsteerd shutting down")
	link.Disconnect()
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
