package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Muxed returns the renditions carrying both tracks, best first.
func (c *Catalog) Muxed() []ResolvedStream {
	return c.filter(func(s *ResolvedStream) bool { return s.IsMuxed() })
}

// AudioOnly returns the audio-only renditions, best first.
func (c *Catalog) AudioOnly() []ResolvedStream {
	return c.filter(func(s *ResolvedStream) bool { return s.HasAudio && !s.HasVideo })
}

// VideoOnly returns the video-only renditions, best first.
func (c *Catalog) VideoOnly() []ResolvedStream {
	return c.filter(func(s *ResolvedStream) bool { return s.HasVideo && !s.HasAudio })
}

// ByItag returns the rendition with the given itag, or nil.
func (c *Catalog) ByItag(itag int) *ResolvedStream {
	for i := range c.Streams {
		if c.Streams[i].Itag == itag {
			return &c.Streams[i]
		}
	}
	return nil
}

// Best returns the preferred rendition: muxed over separate tracks, then by
// higher bitrate. Nil when the catalog is empty.
func (c *Catalog) Best() *ResolvedStream {
	ranked := c.filter(func(*ResolvedStream) bool { return true })
	if len(ranked) == 0 {
		return nil
	}
	return &ranked[0]
}

// Select resolves a selector expression against the catalog. Supported
// expressions: "best", "bestaudio", "bestvideo", "muxed" and "itag:N".
func (c *Catalog) Select(expr string) (*ResolvedStream, error) {
	expr = strings.TrimSpace(strings.ToLower(expr))
	switch {
	case expr == "" || expr == "best":
		if s := c.Best(); s != nil {
			return s, nil
		}
	case expr == "bestaudio":
		if audio := c.AudioOnly(); len(audio) > 0 {
			return &audio[0], nil
		}
	case expr == "bestvideo":
		if video := c.VideoOnly(); len(video) > 0 {
			return &video[0], nil
		}
	case expr == "muxed":
		if muxed := c.Muxed(); len(muxed) > 0 {
			return &muxed[0], nil
		}
	case strings.HasPrefix(expr, "itag:"):
		itag, err := strconv.Atoi(strings.TrimPrefix(expr, "itag:"))
		if err != nil {
			return nil, fmt.Errorf("bad itag selector %q: %w", expr, err)
		}
		if s := c.ByItag(itag); s != nil {
			return s, nil
		}
		return nil, fmt.Errorf("no rendition with itag %d", itag)
	default:
		return nil, fmt.Errorf("unknown selector %q", expr)
	}
	return nil, fmt.Errorf("no rendition matches %q", expr)
}

// filter copies matching streams and sorts them muxed-first, then by
// effective bitrate descending, then by itag for a stable order.
func (c *Catalog) filter(keep func(*ResolvedStream) bool) []ResolvedStream {
	var out []ResolvedStream
	for i := range c.Streams {
		if keep(&c.Streams[i]) {
			out = append(out, c.Streams[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.IsMuxed() != b.IsMuxed() {
			return a.IsMuxed()
		}
		if a.EffectiveBitrate() != b.EffectiveBitrate() {
			return a.EffectiveBitrate() > b.EffectiveBitrate()
		}
		return a.Itag < b.Itag
	})
	return out
}
