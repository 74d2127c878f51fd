// Package player models the structured player response embedded in the
// watch page. Only the parts the stream catalog needs are mapped; the rest
// of the document is ignored.
package player

import (
	"encoding/json"
	"fmt"
)

// Response is the top-level player response object.
type Response struct {
	PlayabilityStatus PlayabilityStatus `json:"playabilityStatus"`
	StreamingData     StreamingData     `json:"streamingData"`
	VideoDetails      VideoDetails      `json:"videoDetails"`
}

type PlayabilityStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (p *PlayabilityStatus) IsOK() bool {
	return p.Status == "OK"
}

type StreamingData struct {
	ExpiresInSeconds string   `json:"expiresInSeconds"`
	Formats          []Format `json:"formats"`
	AdaptiveFormats  []Format `json:"adaptiveFormats"`
}

// Format is one rendition as the platform describes it. URL and
// SignatureCipher are mutually exclusive in practice: a format carries
// either a ready URL or a cipher blob that still needs descrambling.
type Format struct {
	Itag             int    `json:"itag"`
	URL              string `json:"url"`
	MimeType         string `json:"mimeType"`
	Bitrate          int    `json:"bitrate"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	FPS              int    `json:"fps"`
	LastModified     string `json:"lastModified"`
	ContentLength    string `json:"contentLength"`
	Quality          string `json:"quality"`
	QualityLabel     string `json:"qualityLabel"`
	AverageBitrate   int    `json:"averageBitrate"`
	AudioQuality     string `json:"audioQuality"`
	ApproxDurationMs string `json:"approxDurationMs"`
	AudioSampleRate  string `json:"audioSampleRate"`
	AudioChannels    int    `json:"audioChannels"`
	SignatureCipher  string `json:"signatureCipher"`
	Cipher           string `json:"cipher"` // legacy field name
	Type             string `json:"type"`
}

// IsOTF reports whether the format is delivered as an on-the-fly segmented
// stream, which cannot be fetched with plain byte ranges.
func (f *Format) IsOTF() bool {
	return f.Type == "FORMAT_STREAM_TYPE_OTF"
}

type VideoDetails struct {
	VideoID          string   `json:"videoId"`
	Title            string   `json:"title"`
	Author           string   `json:"author"`
	LengthSeconds    string   `json:"lengthSeconds"`
	ChannelID        string   `json:"channelId"`
	ShortDescription string   `json:"shortDescription"`
	Keywords         []string `json:"keywords"`
	IsLiveContent    bool     `json:"isLiveContent"`
}

// Parse decodes a raw player response document.
func Parse(raw []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse player response: %w", err)
	}
	return &resp, nil
}
