package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DeliveryPolicy controls how /r/ responses hand compatible containers
// to the client when the container itself needs no transcode.
type DeliveryPolicy string

const (
	// DeliveryAuto proxies for browser clients and redirects the rest.
	DeliveryAuto DeliveryPolicy = "auto"
	// DeliveryProxy always streams through the gateway.
	DeliveryProxy DeliveryPolicy = "proxy"
	// DeliveryRedirect always answers with a 302 to the real URL.
	DeliveryRedirect DeliveryPolicy = "redirect"
)

// EpisodeLinkMode controls what the catalog transform emits per episode.
type EpisodeLinkMode string

const (
	// LinkRewrite emits gateway short links without resolving upstream.
	LinkRewrite EpisodeLinkMode = "rewrite"
	// LinkResolve resolves every episode's real URL concurrently.
	LinkResolve EpisodeLinkMode = "resolve"
)

type Config struct {
	HTTPAddr       string
	PlayAPIBaseURL string
	VodAPIBaseURL  string
	PublicBaseURL  string
	LogLevel       string
	LogFormat      string
	UserAgent      string
	AllowedOrigins string

	CacheTTL        time.Duration
	CacheSweepEvery time.Duration
	CacheMaxEntries int

	ResolveTimeout time.Duration
	DetailTimeout  time.Duration
	SearchTimeout  time.Duration
	EpisodeTimeout time.Duration
	BatchTimeout   time.Duration

	DeliveryPolicy  DeliveryPolicy
	EpisodeLinkMode EpisodeLinkMode

	FFmpegPath  string
	FFprobePath string
}

func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":3000"),
		PlayAPIBaseURL: strings.TrimRight(getEnv("PLAY_API_BASE_URL", "http://127.0.0.1:4567"), "/"),
		VodAPIBaseURL:  strings.TrimRight(getEnv("VOD_API_BASE_URL", "http://127.0.0.1:4567"), "/"),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://127.0.0.1:3000"), "/"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:      getEnv("UPSTREAM_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),

		CacheTTL:        time.Duration(getEnvInt("CACHE_TTL_MINUTES", 10)) * time.Minute,
		CacheSweepEvery: time.Duration(getEnvInt("CACHE_SWEEP_MINUTES", 5)) * time.Minute,
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 1000),

		ResolveTimeout: time.Duration(getEnvInt("RESOLVE_TIMEOUT_SECONDS", 10)) * time.Second,
		DetailTimeout:  time.Duration(getEnvInt("DETAIL_TIMEOUT_SECONDS", 8)) * time.Second,
		SearchTimeout:  time.Duration(getEnvInt("SEARCH_TIMEOUT_SECONDS", 60)) * time.Second,
		EpisodeTimeout: time.Duration(getEnvInt("EPISODE_TIMEOUT_SECONDS", 20)) * time.Second,
		BatchTimeout:   time.Duration(getEnvInt("BATCH_TIMEOUT_SECONDS", 55)) * time.Second,

		DeliveryPolicy:  parseDeliveryPolicy(getEnv("DELIVERY_MODE", "auto")),
		EpisodeLinkMode: parseEpisodeLinkMode(getEnv("EPISODE_LINK_MODE", "rewrite")),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
	}
}

func parseDeliveryPolicy(raw string) DeliveryPolicy {
	switch DeliveryPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case DeliveryProxy:
		return DeliveryProxy
	case DeliveryRedirect:
		return DeliveryRedirect
	default:
		return DeliveryAuto
	}
}

func parseEpisodeLinkMode(raw string) EpisodeLinkMode {
	switch EpisodeLinkMode(strings.ToLower(strings.TrimSpace(raw))) {
	case LinkResolve:
		return LinkResolve
	default:
		return LinkRewrite
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
