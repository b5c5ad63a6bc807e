package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"glucose-bridge/internal/alert"
	"glucose-bridge/internal/config"
	"glucose-bridge/internal/httpapi"
	"glucose-bridge/internal/mqtt"
	"glucose-bridge/internal/relay"
	"glucose-bridge/internal/source"
	"glucose-bridge/internal/store"
	"glucose-bridge/internal/trend"
	"glucose-bridge/internal/watch"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if strings.TrimSpace(cfg.MQTTBrokerURL) == "" {
		slog.Error("missing required env", "key", "MQTT_BROKER_URL")
		os.Exit(1)
	}
	for key, val := range map[string]string{
		"POSTGRES_USER": cfg.Postgres.User,
		"POSTGRES_DB":   cfg.Postgres.DBName,
		"POSTGRES_HOST": cfg.Postgres.Host,
		"POSTGRES_PORT": cfg.Postgres.Port,
	} {
		if strings.TrimSpace(val) == "" {
			slog.Error("missing required env", "key", key)
			os.Exit(1)
		}
	}

	db, err := store.OpenPostgres(cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.SSLMode)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	repo, err := store.New(db)
	if err != nil {
		slog.Error("db migrate failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		slog.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	lastSent := store.NewLastSentCache(rdb)

	mq, err := mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID)
	if err != nil {
		slog.Error("mqtt connect failed", "error", err)
		os.Exit(1)
	}
	defer mq.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := alert.New(cfg.HighThreshold, cfg.LowThreshold, alert.NewMQTTNotifier(mq, cfg.AlertTopic))
	repo.Subscribe(engine.HandleReading)

	bridge := watch.New(mq, cfg.WatchProviderID)
	if err := bridge.Start(ctx); err != nil {
		slog.Error("watch bridge start failed", "error", err)
		os.Exit(1)
	}
	rly := relay.New(repo, lastSent, bridge, cfg.HighThreshold, cfg.LowThreshold, cfg.WatchSendTimeout)
	go rly.Run(ctx, bridge.Events())

	thresholds := trend.Thresholds{
		SteepRise: cfg.SteepRate,
		MildRise:  cfg.MildRate,
		MildFall:  cfg.MildRate,
		SteepFall: cfg.SteepRate,
	}
	reader := source.NewLibreLinkReader(cfg.LibreLinkDBPath)
	adapter := source.New(reader, repo, thresholds, cfg.SampleInterval, cfg.SyncInterval)
	if err := adapter.Start(ctx); err != nil {
		slog.Error("sync adapter start failed", "error", err)
		os.Exit(1)
	}

	srv := httpapi.New(repo, rly, thresholds, cfg.SampleInterval)
	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("glucose-bridge listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	adapter.Stop()
	cancel()
	slog.Info("glucose-bridge stopped")
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}
