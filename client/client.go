// Package client is the high-level entry point: it resolves a video to its
// stream catalog and moves stream payloads to a writer or file.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/famomatic/ytfetch/internal/catalog"
	"github.com/famomatic/ytfetch/internal/cookies"
	"github.com/famomatic/ytfetch/internal/httpclient"
	"github.com/famomatic/ytfetch/internal/logging"
	"github.com/famomatic/ytfetch/internal/player"
	"github.com/famomatic/ytfetch/internal/playerjs"
	"github.com/famomatic/ytfetch/internal/transfer"
)

// Client resolves videos to stream catalogs and transfers their payloads.
// Safe for concurrent use.
type Client struct {
	config   Config
	http     *http.Client
	resolver playerjs.Resolver
	cache    playerjs.Cache
	engine   *transfer.Engine
	log      *slog.Logger
}

// Video is the subset of metadata callers commonly need.
type Video struct {
	ID          string
	Title       string
	Author      string
	ChannelID   string
	Description string
	DurationSec int64
	Live        bool
}

// New builds a client. The zero Config is usable.
func New(cfg Config) (*Client, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		var jar http.CookieJar
		if cfg.CookieFile != "" {
			var err error
			jar, err = cookies.LoadJar(cfg.CookieFile)
			if err != nil {
				return nil, err
			}
		}
		httpClient = httpclient.New(httpclient.Config{
			Timeout:    cfg.RequestTimeout,
			BrowserTLS: cfg.BrowserTLS,
			Jar:        jar,
			ProxyURL:   cfg.ProxyURL,
			Logger:     log,
		})
	}

	resolver := playerjs.NewResolver(httpClient, playerjs.ResolverConfig{
		BaseURL:         cfg.BaseURL,
		UserAgent:       cfg.UserAgent,
		Headers:         cfg.Headers,
		PreferredLocale: cfg.PreferredLocale,
		Logger:          log,
	})

	var metrics *transfer.Metrics
	if cfg.MetricsRegistry != nil {
		metrics = transfer.NewMetrics(cfg.MetricsRegistry)
	}

	return &Client{
		config:   cfg,
		http:     httpClient,
		resolver: resolver,
		cache:    playerjs.NewMemoryCache(cfg.ScriptCacheTTL),
		engine:   transfer.NewEngine(httpClient, log, metrics),
		log:      log,
	}, nil
}

// Streams resolves the input (ID or URL) to video metadata and the catalog
// of fetchable renditions. Renditions whose URL could not be resolved are
// reported in the catalog's Errors rather than failing the call, as long as
// at least one rendition survives.
func (c *Client) Streams(ctx context.Context, input string) (*Video, *catalog.Catalog, error) {
	videoID, err := ExtractVideoID(input)
	if err != nil {
		return nil, nil, err
	}

	page, err := c.resolver.GetWatchPage(ctx, videoID)
	if err != nil {
		return nil, nil, err
	}

	resp, err := player.Parse(page.PlayerResponse)
	if err != nil {
		return nil, nil, err
	}
	if err := mapPlayability(resp.PlayabilityStatus); err != nil {
		return nil, nil, err
	}

	video := videoFromDetails(resp.VideoDetails)

	descriptors := catalog.ParseDescriptors(resp)
	if len(descriptors) == 0 {
		return video, nil, ErrNoStreams
	}

	analysis := c.analysisFor(ctx, page.PlayerPath, descriptors)

	cat := catalog.Build(descriptors, analysis)
	for _, serr := range cat.Errors {
		c.log.Warn("stream not resolved", "video", videoID, "itag", serr.Itag, "err", serr.Err)
	}
	if len(cat.Streams) == 0 {
		if len(cat.Errors) > 0 {
			return video, cat, fmt.Errorf("%w: %v", ErrNoStreams, cat.Errors[0])
		}
		return video, cat, ErrNoStreams
	}
	return video, cat, nil
}

// analysisFor returns the cached script analysis, fetching and analyzing
// the player script on a cache miss. A fetch or analysis failure is not
// fatal here: the catalog builder reports it per rendition, and renditions
// that need no descrambling still resolve.
func (c *Client) analysisFor(ctx context.Context, playerPath string, descriptors []catalog.StreamDescriptor) *playerjs.Analysis {
	needed := false
	for i := range descriptors {
		if descriptors[i].NeedsDescramble {
			needed = true
			break
		}
	}
	if !needed || playerPath == "" {
		return nil
	}

	scriptID := playerjs.ScriptIDFromURL(playerPath)
	if a, ok := c.cache.Get(scriptID); ok {
		return a
	}

	script, err := c.resolver.GetPlayerScript(ctx, playerPath)
	if err != nil {
		c.log.Warn("player script fetch failed", "path", playerPath, "err", err)
		return &playerjs.Analysis{SignatureErr: err, ThrottleErr: err}
	}

	a := playerjs.AnalyzeAll(script)
	if a.SignatureErr != nil {
		c.log.Warn("signature analysis failed", "script", script.ID, "err", a.SignatureErr)
	}
	if a.ThrottleErr != nil {
		c.log.Warn("throttle analysis failed", "script", script.ID, "err", a.ThrottleErr)
	}
	c.cache.Set(script.ID, a)
	return a
}

func mapPlayability(status player.PlayabilityStatus) error {
	switch status.Status {
	case "", "OK":
		return nil
	case "LOGIN_REQUIRED":
		return ErrLoginRequired
	default:
		if status.Reason != "" {
			return fmt.Errorf("%w: %s", ErrUnavailable, status.Reason)
		}
		return fmt.Errorf("%w: status %s", ErrUnavailable, status.Status)
	}
}

func videoFromDetails(details player.VideoDetails) *Video {
	duration, _ := strconv.ParseInt(details.LengthSeconds, 10, 64)
	return &Video{
		ID:          details.VideoID,
		Title:       details.Title,
		Author:      details.Author,
		ChannelID:   details.ChannelID,
		Description: details.ShortDescription,
		DurationSec: duration,
		Live:        details.IsLiveContent,
	}
}
