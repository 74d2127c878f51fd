// Package catalog turns the platform's stream metadata into fetchable,
// descrambled stream URLs and exposes selection over the result.
package catalog

import (
	"mime"
	"strconv"
	"strings"

	"github.com/famomatic/ytfetch/internal/player"
)

// StreamDescriptor is one rendition before URL resolution. Immutable after
// construction.
type StreamDescriptor struct {
	Itag            int
	RawURL          string
	SignatureCipher string
	MimeType        string
	Container       string
	Codecs          []string
	Bitrate         int
	AverageBitrate  int
	Width           int
	Height          int
	FPS             int
	ContentLength   int64
	Quality         string
	QualityLabel    string
	AudioQuality    string
	AudioChannels   int
	HasAudio        bool
	HasVideo        bool
	OTF             bool
	// NeedsDescramble is set when the rendition cannot be fetched with the
	// metadata as handed out: its signature is scrambled, or its URL
	// carries a throttle parameter that must be transformed.
	NeedsDescramble bool
}

// IsMuxed reports whether the rendition carries both tracks in one stream.
func (d *StreamDescriptor) IsMuxed() bool {
	return d.HasAudio && d.HasVideo
}

// EffectiveBitrate prefers the averaged figure over the declared peak.
func (d *StreamDescriptor) EffectiveBitrate() int {
	if d.AverageBitrate > 0 {
		return d.AverageBitrate
	}
	return d.Bitrate
}

// ParseDescriptors maps a player response's muxed and adaptive format lists
// to descriptors. Formats with neither a URL nor a cipher blob are dropped:
// there is nothing to fetch.
func ParseDescriptors(resp *player.Response) []StreamDescriptor {
	raw := make([]player.Format, 0,
		len(resp.StreamingData.Formats)+len(resp.StreamingData.AdaptiveFormats))
	raw = append(raw, resp.StreamingData.Formats...)
	raw = append(raw, resp.StreamingData.AdaptiveFormats...)

	descriptors := make([]StreamDescriptor, 0, len(raw))
	for _, f := range raw {
		cipher := f.SignatureCipher
		if cipher == "" {
			cipher = f.Cipher
		}
		if f.URL == "" && cipher == "" {
			continue
		}

		d := StreamDescriptor{
			Itag:            f.Itag,
			RawURL:          f.URL,
			SignatureCipher: cipher,
			MimeType:        f.MimeType,
			Bitrate:         f.Bitrate,
			AverageBitrate:  f.AverageBitrate,
			Width:           f.Width,
			Height:          f.Height,
			FPS:             f.FPS,
			Quality:         f.Quality,
			QualityLabel:    f.QualityLabel,
			AudioQuality:    f.AudioQuality,
			AudioChannels:   f.AudioChannels,
			OTF:             f.IsOTF(),
		}
		if f.ContentLength != "" {
			d.ContentLength, _ = strconv.ParseInt(f.ContentLength, 10, 64)
		}

		d.Container, d.Codecs = parseMimeType(f.MimeType)
		d.HasAudio, d.HasVideo = trackFlags(f.MimeType, d.Codecs)
		d.NeedsDescramble = cipher != "" || urlHasThrottleParam(f.URL)

		descriptors = append(descriptors, d)
	}
	return descriptors
}

// parseMimeType splits `video/mp4; codecs="avc1.4d401f, mp4a.40.2"` into a
// container subtype and the codec list.
func parseMimeType(mimeType string) (container string, codecs []string) {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", nil
	}
	if idx := strings.IndexByte(mediaType, '/'); idx >= 0 {
		container = mediaType[idx+1:]
	}
	for _, c := range strings.Split(params["codecs"], ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			codecs = append(codecs, c)
		}
	}
	return container, codecs
}

// trackFlags mirrors the platform's convention: a muxed rendition lists one
// codec per track, while adaptive renditions carry a single track whose kind
// matches the top-level mime type.
func trackFlags(mimeType string, codecs []string) (hasAudio, hasVideo bool) {
	muxed := len(codecs) >= 2
	hasVideo = muxed || strings.HasPrefix(mimeType, "video/")
	hasAudio = muxed || strings.HasPrefix(mimeType, "audio/")
	return hasAudio, hasVideo
}
