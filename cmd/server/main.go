package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "github.com/yenkj/vod/internal/api/http"
	"github.com/yenkj/vod/internal/app"
	"github.com/yenkj/vod/internal/cache"
	"github.com/yenkj/vod/internal/catalog"
	"github.com/yenkj/vod/internal/media/probe"
	"github.com/yenkj/vod/internal/metrics"
	"github.com/yenkj/vod/internal/resolve"
	"github.com/yenkj/vod/internal/telemetry"
	"github.com/yenkj/vod/internal/upstream"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "vod-gateway")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "vod-gateway"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("playAPI", cfg.PlayAPIBaseURL),
		slog.String("vodAPI", cfg.VodAPIBaseURL),
		slog.String("publicBaseURL", cfg.PublicBaseURL),
		slog.String("deliveryMode", string(cfg.DeliveryPolicy)),
		slog.String("episodeLinkMode", string(cfg.EpisodeLinkMode)),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolutionCache := cache.New(cfg.CacheTTL, cfg.CacheSweepEvery, cfg.CacheMaxEntries, logger)
	resolutionCache.Start(rootCtx)

	upstreamClient := upstream.NewClient(upstream.Config{
		PlayBaseURL:    cfg.PlayAPIBaseURL,
		VodBaseURL:     cfg.VodAPIBaseURL,
		UserAgent:      cfg.UserAgent,
		Client:         &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Logger:         logger,
		ResolveTimeout: cfg.ResolveTimeout,
		DetailTimeout:  cfg.DetailTimeout,
		SearchTimeout:  cfg.SearchTimeout,
	})

	episodeResolver := resolve.New(upstreamClient, cfg.EpisodeTimeout, cfg.BatchTimeout, logger)
	transformer := catalog.NewTransformer(upstreamClient, episodeResolver, cfg.PublicBaseURL, cfg.EpisodeLinkMode, logger)
	prober := probe.New(cfg.FFprobePath)

	handler := apihttp.NewServer(upstreamClient,
		apihttp.WithLogger(logger),
		apihttp.WithStreams(upstreamClient),
		apihttp.WithCatalog(upstreamClient, transformer),
		apihttp.WithProber(prober),
		apihttp.WithCache(resolutionCache),
		apihttp.WithPublicBaseURL(cfg.PublicBaseURL),
		apihttp.WithDeliveryPolicy(cfg.DeliveryPolicy),
		apihttp.WithFFmpegPath(cfg.FFmpegPath),
		apihttp.WithAllowedOrigins(splitOrigins(cfg.AllowedOrigins)),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Streaming responses run as long as playback does.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	resolutionCache.Close()

	logger.Info("server stopped")
}

func splitOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
