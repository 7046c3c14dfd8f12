package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yenkj/vod/internal/app"
	"github.com/yenkj/vod/internal/domain"
	"github.com/yenkj/vod/internal/media/probe"
)

// LinkResolver resolves an opaque identifier to its real media URL.
type LinkResolver interface {
	ResolvePlay(ctx context.Context, id string, withSubs bool) (domain.PlayInfo, error)
}

// StreamOpener issues the upstream media GET for the byte proxy.
type StreamOpener interface {
	OpenStream(ctx context.Context, mediaURL, rangeHeader string) (*http.Response, error)
}

// CatalogAPI forwards search/detail queries to the catalog endpoint.
type CatalogAPI interface {
	CatalogRaw(ctx context.Context, query url.Values) ([]byte, error)
}

// PageTransformer rebuilds a catalog page's play manifests.
type PageTransformer interface {
	TransformPage(ctx context.Context, page domain.CatalogPage) domain.CatalogPage
}

// MediaProber probes a source's streams.
type MediaProber interface {
	Probe(ctx context.Context, sourceURL string) (probe.Result, error)
}

// ResolutionCache is the cache surface the resolve path uses.
type ResolutionCache interface {
	Get(id string, now time.Time) (string, bool)
	Put(id, url string, now time.Time)
	Len() int
}

type Server struct {
	resolver       LinkResolver
	streams        StreamOpener
	catalogAPI     CatalogAPI
	transformer    PageTransformer
	prober         MediaProber
	cache          ResolutionCache
	publicBaseURL  string
	deliveryPolicy app.DeliveryPolicy
	ffmpegPath     string
	allowedOrigins []string
	logger         *slog.Logger
	handler        http.Handler
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func WithStreams(streams StreamOpener) ServerOption {
	return func(s *Server) { s.streams = streams }
}

func WithCatalog(api CatalogAPI, transformer PageTransformer) ServerOption {
	return func(s *Server) {
		s.catalogAPI = api
		s.transformer = transformer
	}
}

func WithProber(prober MediaProber) ServerOption {
	return func(s *Server) { s.prober = prober }
}

func WithCache(cache ResolutionCache) ServerOption {
	return func(s *Server) { s.cache = cache }
}

func WithPublicBaseURL(base string) ServerOption {
	return func(s *Server) { s.publicBaseURL = strings.TrimRight(base, "/") }
}

func WithDeliveryPolicy(policy app.DeliveryPolicy) ServerOption {
	return func(s *Server) { s.deliveryPolicy = policy }
}

func WithFFmpegPath(path string) ServerOption {
	return func(s *Server) { s.ffmpegPath = path }
}

func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

func NewServer(resolver LinkResolver, opts ...ServerOption) *Server {
	s := &Server{
		resolver:       resolver,
		deliveryPolicy: app.DeliveryAuto,
		ffmpegPath:     "ffmpeg",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/r/", s.handleResolve)
	mux.HandleFunc("/t/", s.handleTranscode)
	mux.HandleFunc("/s/", s.handleSubtitle)
	mux.HandleFunc("/api/image-proxy", s.handleImageProxy)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", s.handleCatalog)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "vod-gateway",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced)))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
