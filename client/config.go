package client

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/famomatic/ytfetch/internal/config"
	"github.com/famomatic/ytfetch/internal/playerjs"
	"github.com/famomatic/ytfetch/internal/transfer"
)

// Config holds configuration for the client.
type Config struct {
	// HTTPClient is the client used for all requests. If nil, one is
	// built from the remaining fields.
	HTTPClient *http.Client

	// BrowserTLS enables a Chrome TLS fingerprint on the built client.
	// Ignored when HTTPClient is set.
	BrowserTLS bool

	// CookieFile points to a Netscape cookies.txt export. Ignored when
	// HTTPClient is set.
	CookieFile string

	// ProxyURL routes requests through an http, https or socks5 proxy.
	// Ignored when HTTPClient is set.
	ProxyURL string

	// RequestTimeout bounds individual page and media requests.
	RequestTimeout time.Duration

	// BaseURL overrides the watch-page host.
	BaseURL string

	// UserAgent overrides the page-fetch User-Agent. If empty, the
	// package fallback is used.
	UserAgent string

	// Headers are additional headers for page and script fetches.
	Headers http.Header

	// PreferredLocale controls the canonical locale for the player
	// script fetch path, which keeps the analysis cache warm across
	// pages served in different languages. Default is "en_US".
	PreferredLocale string

	// ScriptCacheTTL bounds how long a script analysis is reused.
	// Zero keeps entries until the process exits.
	ScriptCacheTTL time.Duration

	// ChunkSize is the transfer request size in bytes. Zero uses the
	// engine default.
	ChunkSize int64

	// MaxRetriesPerChunk bounds transient-failure retries per chunk.
	MaxRetriesPerChunk int

	// MetricsRegistry, when set, receives the transfer collectors.
	MetricsRegistry prometheus.Registerer

	Logger *slog.Logger
}

// FromEnv builds a Config from YTFETCH_* environment variables, leaving
// unset fields at their defaults.
func FromEnv() Config {
	return Config{
		BrowserTLS:         config.GetEnvBool("YTFETCH_BROWSER_TLS", false),
		CookieFile:         config.GetEnv("YTFETCH_COOKIE_FILE", ""),
		ProxyURL:           config.GetEnv("YTFETCH_PROXY", ""),
		RequestTimeout:     config.GetEnvDuration("YTFETCH_REQUEST_TIMEOUT", 0),
		BaseURL:            config.GetEnv("YTFETCH_BASE_URL", ""),
		UserAgent:          config.GetEnv("YTFETCH_USER_AGENT", ""),
		PreferredLocale:    config.GetEnv("YTFETCH_LOCALE", ""),
		ScriptCacheTTL:     config.GetEnvDuration("YTFETCH_SCRIPT_CACHE_TTL", 0),
		ChunkSize:          config.GetEnvInt64("YTFETCH_CHUNK_SIZE", 0),
		MaxRetriesPerChunk: config.GetEnvInt("YTFETCH_MAX_RETRIES", 3),
	}
}

func (c Config) transferOptions() transfer.Options {
	// Media requests carry the same identity as page and script fetches.
	headers := make(http.Header, len(c.Headers)+1)
	for k, values := range c.Headers {
		for _, v := range values {
			headers.Add(k, v)
		}
	}
	ua := c.UserAgent
	if ua == "" {
		ua = playerjs.DefaultUserAgent
	}
	headers.Set("User-Agent", ua)

	return transfer.Options{
		ChunkSize: c.ChunkSize,
		Headers:   headers,
		Retry: transfer.RetryConfig{
			MaxRetriesPerChunk: c.MaxRetriesPerChunk,
		},
	}
}
