package catalog

import (
	"errors"
	"net/url"
	"testing"

	"github.com/famomatic/ytfetch/internal/player"
	"github.com/famomatic/ytfetch/internal/playerjs"
)

func testAnalysis() *playerjs.Analysis {
	return &playerjs.Analysis{
		Signature: &playerjs.OperationSet{
			Entry: "Dx",
			Ops:   []playerjs.Op{{Kind: playerjs.OpReverse}},
		},
		Throttle: &playerjs.ThrottleOperationSet{
			Entry: "Nqa",
			Ops:   []playerjs.Op{{Kind: playerjs.OpRotate, Arg: 1}},
		},
	}
}

func TestParseDescriptors(t *testing.T) {
	resp := &player.Response{
		StreamingData: player.StreamingData{
			Formats: []player.Format{
				{
					Itag:          18,
					URL:           "https://media.example.com/videoplayback?itag=18&n=abc",
					MimeType:      `video/mp4; codecs="avc1.42001E, mp4a.40.2"`,
					Bitrate:       500000,
					ContentLength: "1048576",
					Quality:       "medium",
				},
			},
			AdaptiveFormats: []player.Format{
				{
					Itag:            137,
					SignatureCipher: "s=ZYX&sp=sig&url=" + url.QueryEscape("https://media.example.com/videoplayback?itag=137"),
					MimeType:        `video/mp4; codecs="avc1.640028"`,
					Bitrate:         4000000,
					QualityLabel:    "1080p",
				},
				{
					Itag:           140,
					URL:            "https://media.example.com/videoplayback?itag=140",
					MimeType:       `audio/mp4; codecs="mp4a.40.2"`,
					Bitrate:        130000,
					AverageBitrate: 128000,
					AudioChannels:  2,
				},
				{
					// No URL and no cipher blob: nothing to fetch.
					Itag:     9999,
					MimeType: `video/mp4; codecs="avc1.640028"`,
				},
			},
		},
	}

	descriptors := ParseDescriptors(resp)
	if len(descriptors) != 3 {
		t.Fatalf("got %d descriptors, want 3", len(descriptors))
	}

	muxed := descriptors[0]
	if !muxed.HasAudio || !muxed.HasVideo || !muxed.IsMuxed() {
		t.Errorf("itag 18 track flags = audio %v video %v, want both", muxed.HasAudio, muxed.HasVideo)
	}
	if muxed.Container != "mp4" || len(muxed.Codecs) != 2 {
		t.Errorf("itag 18 container/codecs = %q/%v", muxed.Container, muxed.Codecs)
	}
	if muxed.ContentLength != 1048576 {
		t.Errorf("itag 18 ContentLength = %d, want 1048576", muxed.ContentLength)
	}
	if !muxed.NeedsDescramble {
		t.Error("itag 18 carries a throttle parameter, want NeedsDescramble")
	}

	video := descriptors[1]
	if video.HasAudio || !video.HasVideo {
		t.Errorf("itag 137 track flags = audio %v video %v, want video only", video.HasAudio, video.HasVideo)
	}
	if !video.NeedsDescramble {
		t.Error("itag 137 has a cipher blob, want NeedsDescramble")
	}

	audio := descriptors[2]
	if !audio.HasAudio || audio.HasVideo {
		t.Errorf("itag 140 track flags = audio %v video %v, want audio only", audio.HasAudio, audio.HasVideo)
	}
	if audio.NeedsDescramble {
		t.Error("itag 140 is plain, want NeedsDescramble false")
	}
	if audio.EffectiveBitrate() != 128000 {
		t.Errorf("itag 140 EffectiveBitrate = %d, want averaged 128000", audio.EffectiveBitrate())
	}
}

func TestBuild_SignatureAndThrottle(t *testing.T) {
	embedded := "https://media.example.com/videoplayback?itag=137&n=wxyz"
	descriptors := []StreamDescriptor{
		{
			Itag:            137,
			SignatureCipher: "s=ZYXW&sp=sig&url=" + url.QueryEscape(embedded),
			NeedsDescramble: true,
		},
	}

	c := Build(descriptors, testAnalysis())
	if len(c.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", c.Errors)
	}
	if len(c.Streams) != 1 {
		t.Fatalf("got %d streams, want 1", len(c.Streams))
	}

	u, err := url.Parse(c.Streams[0].URL)
	if err != nil {
		t.Fatalf("resolved URL does not parse: %v", err)
	}
	q := u.Query()
	if got := q.Get("sig"); got != "WXYZ" {
		t.Errorf("sig = %q, want reversed %q", got, "WXYZ")
	}
	// Rotate right by one.
	if got := q.Get("n"); got != "zwxy" {
		t.Errorf("n = %q, want %q", got, "zwxy")
	}
	if got := q.Get("itag"); got != "137" {
		t.Errorf("itag param = %q, want preserved", got)
	}
}

func TestBuild_PassthroughWithoutDescramble(t *testing.T) {
	raw := "https://media.example.com/videoplayback?itag=140"
	c := Build([]StreamDescriptor{{Itag: 140, RawURL: raw}}, nil)
	if len(c.Errors) != 0 || len(c.Streams) != 1 {
		t.Fatalf("streams %d errors %d, want 1/0", len(c.Streams), len(c.Errors))
	}
	if c.Streams[0].URL != raw {
		t.Errorf("URL = %q, want untouched %q", c.Streams[0].URL, raw)
	}
}

func TestBuild_MixedDescriptors(t *testing.T) {
	descriptors := []StreamDescriptor{
		{
			Itag:            137,
			SignatureCipher: "s=ZYXW&sp=sig&url=" + url.QueryEscape("https://media.example.com/videoplayback?itag=137"),
			NeedsDescramble: true,
		},
		{
			Itag:   140,
			RawURL: "https://media.example.com/videoplayback?itag=140",
		},
	}

	c := Build(descriptors, testAnalysis())
	if len(c.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", c.Errors)
	}
	if len(c.Streams) != 2 {
		t.Fatalf("got %d streams, want 2", len(c.Streams))
	}
	if c.Streams[0].URL == c.Streams[1].URL {
		t.Errorf("both renditions resolved to %q", c.Streams[0].URL)
	}
}

func TestBuild_PartialCatalog(t *testing.T) {
	analysis := &playerjs.Analysis{
		// Signature extraction failed upstream; throttle survived.
		SignatureErr: errors.New("entry function not found"),
		Throttle: &playerjs.ThrottleOperationSet{
			Entry: "Nqa",
			Ops:   []playerjs.Op{{Kind: playerjs.OpReverse}},
		},
	}
	descriptors := []StreamDescriptor{
		{
			Itag:            137,
			SignatureCipher: "s=ZYXW&sp=sig&url=" + url.QueryEscape("https://media.example.com/videoplayback?itag=137"),
		},
		{
			Itag:   251,
			RawURL: "https://media.example.com/videoplayback?itag=251&n=abcd",
		},
	}

	c := Build(descriptors, analysis)
	if len(c.Streams) != 1 || c.Streams[0].Itag != 251 {
		t.Fatalf("streams = %+v, want only itag 251", c.Streams)
	}
	if len(c.Errors) != 1 {
		t.Fatalf("errors = %v, want 1", c.Errors)
	}
	if c.Errors[0].Itag != 137 || c.Errors[0].Kind != MissingRequiredTransform {
		t.Errorf("error = %v, want itag 137 missing transform", c.Errors[0])
	}
}

func TestBuild_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		desc StreamDescriptor
		want ResolutionKind
	}{
		{
			name: "cipher blob without encoded signature",
			desc: StreamDescriptor{
				Itag:            1,
				SignatureCipher: "sp=sig&url=" + url.QueryEscape("https://media.example.com/v"),
			},
			want: ParameterNotFound,
		},
		{
			name: "cipher blob without target URL",
			desc: StreamDescriptor{
				Itag:            2,
				SignatureCipher: "s=ZYX&sp=sig",
			},
			want: ParameterNotFound,
		},
		{
			name: "throttle needed but transform missing",
			desc: StreamDescriptor{
				Itag:   3,
				RawURL: "https://media.example.com/v?n=abcd",
			},
			want: MissingRequiredTransform,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Build([]StreamDescriptor{tt.desc}, &playerjs.Analysis{
				Signature: &playerjs.OperationSet{Ops: []playerjs.Op{{Kind: playerjs.OpReverse}}},
			})
			if len(c.Errors) != 1 {
				t.Fatalf("errors = %v, want 1", c.Errors)
			}
			if c.Errors[0].Kind != tt.want {
				t.Errorf("kind = %v, want %v", c.Errors[0].Kind, tt.want)
			}
		})
	}
}

func selectionCatalog() *Catalog {
	return &Catalog{Streams: []ResolvedStream{
		{StreamDescriptor: StreamDescriptor{Itag: 140, Bitrate: 130000, HasAudio: true}, URL: "u140"},
		{StreamDescriptor: StreamDescriptor{Itag: 18, Bitrate: 500000, HasAudio: true, HasVideo: true}, URL: "u18"},
		{StreamDescriptor: StreamDescriptor{Itag: 137, Bitrate: 4000000, HasVideo: true}, URL: "u137"},
		{StreamDescriptor: StreamDescriptor{Itag: 22, Bitrate: 2000000, HasAudio: true, HasVideo: true}, URL: "u22"},
	}}
}

func TestSelection(t *testing.T) {
	c := selectionCatalog()

	if got := c.Best(); got == nil || got.Itag != 22 {
		t.Errorf("Best = %+v, want muxed itag 22", got)
	}

	muxed := c.Muxed()
	if len(muxed) != 2 || muxed[0].Itag != 22 || muxed[1].Itag != 18 {
		t.Errorf("Muxed = %+v, want [22 18]", muxed)
	}

	if audio := c.AudioOnly(); len(audio) != 1 || audio[0].Itag != 140 {
		t.Errorf("AudioOnly = %+v, want [140]", audio)
	}
	if video := c.VideoOnly(); len(video) != 1 || video[0].Itag != 137 {
		t.Errorf("VideoOnly = %+v, want [137]", video)
	}
	if got := c.ByItag(137); got == nil || got.URL != "u137" {
		t.Errorf("ByItag(137) = %+v", got)
	}
	if got := c.ByItag(999); got != nil {
		t.Errorf("ByItag(999) = %+v, want nil", got)
	}
}

func TestSelect_Expressions(t *testing.T) {
	c := selectionCatalog()

	tests := []struct {
		expr     string
		wantItag int
	}{
		{"best", 22},
		{"", 22},
		{"bestaudio", 140},
		{"bestvideo", 137},
		{"muxed", 22},
		{"itag:18", 18},
		{"ITAG:18", 18},
	}
	for _, tt := range tests {
		got, err := c.Select(tt.expr)
		if err != nil {
			t.Errorf("Select(%q): %v", tt.expr, err)
			continue
		}
		if got.Itag != tt.wantItag {
			t.Errorf("Select(%q) = itag %d, want %d", tt.expr, got.Itag, tt.wantItag)
		}
	}

	for _, expr := range []string{"itag:xyz", "worst", "itag:999"} {
		if _, err := c.Select(expr); err == nil {
			t.Errorf("Select(%q) = nil error, want failure", expr)
		}
	}
}
