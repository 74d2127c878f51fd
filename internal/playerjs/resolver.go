package playerjs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/famomatic/ytfetch/internal/logging"
)

// Resolver is the page/player I/O boundary: it fetches the watch page, pulls
// the player script path and the embedded player response out of it, and
// fetches the script itself. Everything downstream of it is pure.
type Resolver interface {
	GetWatchPage(ctx context.Context, videoID string) (*WatchPage, error)
	GetPlayerScript(ctx context.Context, playerPath string) (*Script, error)
}

// WatchPage is the extracted interesting parts of one watch page: the
// player script path and the raw JSON of the embedded player response.
type WatchPage struct {
	VideoID        string
	PlayerPath     string
	PlayerResponse []byte
}

// ResolverConfig contains externally tunable settings for page fetches.
type ResolverConfig struct {
	BaseURL         string
	UserAgent       string
	Headers         http.Header
	PreferredLocale string
	Logger          *slog.Logger
}

type defaultResolver struct {
	client *http.Client
	config ResolverConfig
	log    *slog.Logger
}

// DefaultUserAgent is sent on page, script and media requests when the
// caller does not supply one. Keeping every request on the same browser
// identity matters: mixed identities within a session are a throttle signal.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
const defaultBaseURL = "https://www.youtube.com"
const defaultLocale = "en_US"

var playerPathPattern = regexp.MustCompile(`(/s/player/[A-Za-z0-9_-]+/[A-Za-z0-9._/-]*/base\.js)`)
var localePathPattern = regexp.MustCompile(`(?i)(player(?:_[a-z0-9]+)?\.vflset)/[a-z]{2,3}_[a-z]{2,3}/base\.js$`)

const playerResponseMarker = "ytInitialPlayerResponse"

func NewResolver(client *http.Client, cfg ...ResolverConfig) Resolver {
	config := ResolverConfig{}
	if len(cfg) > 0 {
		config = cfg[0]
	}
	log := config.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &defaultResolver{
		client: client,
		config: config,
		log:    log,
	}
}

func (r *defaultResolver) GetWatchPage(ctx context.Context, videoID string) (*WatchPage, error) {
	base := r.config.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/watch")
	if err != nil {
		return nil, fmt.Errorf("build watch url: %w", err)
	}
	q := u.Query()
	q.Set("v", videoID)
	u.RawQuery = q.Encode()

	body, err := r.fetch(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}

	page := &WatchPage{VideoID: videoID}
	if m := playerPathPattern.FindString(body); m != "" {
		page.PlayerPath = m
	} else {
		return nil, fmt.Errorf("player script path not found in watch page")
	}

	resp, err := extractPlayerResponse(body)
	if err != nil {
		return nil, err
	}
	page.PlayerResponse = resp

	r.log.Debug("watch page resolved",
		"videoID", videoID,
		"playerPath", page.PlayerPath,
		"playerResponseBytes", len(page.PlayerResponse))
	return page, nil
}

func (r *defaultResolver) GetPlayerScript(ctx context.Context, playerPath string) (*Script, error) {
	normalized := r.normalizePlayerPath(playerPath)

	candidates := []string{normalized}
	if playerPath != normalized {
		candidates = append(candidates, playerPath)
	}

	var lastErr error
	for _, candidate := range candidates {
		target := candidate
		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			base := r.config.BaseURL
			if base == "" {
				base = defaultBaseURL
			}
			target = strings.TrimRight(base, "/") + candidate
		}
		body, err := r.fetch(ctx, target)
		if err != nil {
			lastErr = err
			continue
		}
		script := &Script{ID: ScriptIDFromURL(candidate), Body: body}
		r.log.Debug("player script fetched", "scriptID", script.ID, "bytes", len(body))
		return script, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("failed to fetch player script")
}

func (r *defaultResolver) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	ua := r.config.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	for k, values := range r.config.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// normalizePlayerPath rewrites localized player paths to a stable locale so
// one cached analysis covers all of them.
func (r *defaultResolver) normalizePlayerPath(playerPath string) string {
	u, err := url.Parse(playerPath)
	if err == nil && u.Path != "" {
		playerPath = u.Path
	}
	locale := r.config.PreferredLocale
	if locale == "" {
		locale = defaultLocale
	}
	if localePathPattern.MatchString(playerPath) {
		return localePathPattern.ReplaceAllString(playerPath, "${1}/"+locale+"/base.js")
	}
	return playerPath
}

// extractPlayerResponse cuts the ytInitialPlayerResponse JSON object out of
// the page by brace matching from the assignment. The page is not otherwise
// parsed here; the JSON goes to the catalog layer as-is.
func extractPlayerResponse(page string) ([]byte, error) {
	idx := strings.Index(page, playerResponseMarker)
	if idx < 0 {
		return nil, fmt.Errorf("%s not found in watch page", playerResponseMarker)
	}
	open := strings.IndexByte(page[idx:], '{')
	if open < 0 {
		return nil, fmt.Errorf("%s assignment has no object", playerResponseMarker)
	}
	start := idx + open

	depth := 0
	inString := false
	escaped := false
	for pos := start; pos < len(page); pos++ {
		c := page[pos]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(page[start : pos+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("%s object is unterminated", playerResponseMarker)
}
