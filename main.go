package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"danmakuflow/internal/app"
	"danmakuflow/internal/config"
	"danmakuflow/internal/dandanplay"
	"danmakuflow/internal/engine"
	"danmakuflow/internal/mpv"
)

const (
	defaultConfigPath = "danmaku.yaml"
	shutdownTimeout   = 5 * time.Second
)

func newLogger(cfg config.LogConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Log, *debug)
	slog.SetDefault(logger)
	slog.Info("starting danmaku overlay", "config", *configPath, "socket", cfg.MPV.Socket)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	player, err := mpv.Dial(ctx, cfg.MPV.Socket,
		mpv.WithLogger(logger),
		mpv.WithScriptName(cfg.MPV.ClientName),
		mpv.WithOptionsFile(cfg.ScriptOpts),
	)
	if err != nil {
		slog.Error("failed to connect to mpv", "error", err)
		os.Exit(1)
	}
	defer player.Close()

	backend := dandanplay.NewClient(
		dandanplay.WithBaseURL(cfg.API.BaseURL),
		dandanplay.WithSearchURL(cfg.API.SearchURL),
		dandanplay.WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
	)

	eng := engine.New(player, backend, engine.WithLogger(logger))
	opts, err := player.ReadConfig()
	if err != nil {
		slog.Warn("failed to read script options, using defaults", "error", err)
		opts = map[string]string{}
	}
	eng.Configure(opts, player.ReadFile)

	srv := app.NewServer(eng, app.WithLogger(logger))
	eng.AddObserver(srv)
	go srv.Run(ctx)

	httpSrv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		slog.Info("overlay server listening", "addr", cfg.Listen, "session", srv.Session())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	if err := eng.Run(ctx, player); err != nil {
		slog.Error("engine stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	slog.Info("danmaku overlay stopped")
}
