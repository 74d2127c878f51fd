package catalog

import (
	"fmt"
	"net/url"

	"github.com/famomatic/ytfetch/internal/playerjs"
)

// throttleParam is the query parameter the platform uses to rate-limit
// fetches whose value was not transformed by the player script.
const throttleParam = "n"

// ResolutionKind classifies why a single rendition could not be resolved.
type ResolutionKind int

const (
	// MissingRequiredTransform means the rendition needs a signature or
	// throttle transform whose extraction from the player script failed.
	MissingRequiredTransform ResolutionKind = iota
	// ParameterNotFound means the cipher blob or URL was missing a field
	// the transform needs (the encoded signature, the target URL).
	ParameterNotFound
)

func (k ResolutionKind) String() string {
	switch k {
	case MissingRequiredTransform:
		return "missing required transform"
	case ParameterNotFound:
		return "parameter not found"
	default:
		return "unknown"
	}
}

// StreamError reports a per-rendition resolution failure. Build keeps going
// past these so one broken rendition never hides the rest.
type StreamError struct {
	Itag int
	Kind ResolutionKind
	Err  error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("itag %d: %s: %v", e.Itag, e.Kind, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// ResolvedStream is a rendition whose URL is ready to fetch.
type ResolvedStream struct {
	StreamDescriptor
	URL string
}

// Catalog holds every rendition that resolved plus the per-rendition errors
// for those that did not.
type Catalog struct {
	Streams []ResolvedStream
	Errors  []*StreamError
}

// Build resolves each descriptor against the script analysis. Renditions
// that need no descrambling pass through unchanged; the rest get their
// signature descrambled and their throttle parameter transformed. Failures
// are collected per rendition, never returned wholesale.
func Build(descriptors []StreamDescriptor, analysis *playerjs.Analysis) *Catalog {
	c := &Catalog{
		Streams: make([]ResolvedStream, 0, len(descriptors)),
	}
	for i := range descriptors {
		d := &descriptors[i]
		resolved, err := resolveOne(d, analysis)
		if err != nil {
			c.Errors = append(c.Errors, err)
			continue
		}
		c.Streams = append(c.Streams, ResolvedStream{StreamDescriptor: *d, URL: resolved})
	}
	return c
}

func resolveOne(d *StreamDescriptor, analysis *playerjs.Analysis) (string, *StreamError) {
	target := d.RawURL

	if d.SignatureCipher != "" {
		var serr *StreamError
		target, serr = applySignature(d, analysis)
		if serr != nil {
			return "", serr
		}
	}

	if target == "" {
		return "", &StreamError{
			Itag: d.Itag,
			Kind: ParameterNotFound,
			Err:  fmt.Errorf("rendition has no fetchable URL"),
		}
	}

	return applyThrottle(d, target, analysis)
}

// applySignature unpacks the cipher blob, descrambles the "s" value and
// appends it to the embedded URL under the blob's chosen parameter name.
func applySignature(d *StreamDescriptor, analysis *playerjs.Analysis) (string, *StreamError) {
	values, err := url.ParseQuery(d.SignatureCipher)
	if err != nil {
		return "", &StreamError{Itag: d.Itag, Kind: ParameterNotFound,
			Err: fmt.Errorf("malformed cipher blob: %w", err)}
	}

	scrambled := values.Get("s")
	if scrambled == "" {
		return "", &StreamError{Itag: d.Itag, Kind: ParameterNotFound,
			Err: fmt.Errorf("cipher blob carries no encoded signature")}
	}
	target := values.Get("url")
	if target == "" {
		return "", &StreamError{Itag: d.Itag, Kind: ParameterNotFound,
			Err: fmt.Errorf("cipher blob carries no target URL")}
	}

	if analysis == nil || analysis.Signature == nil {
		return "", &StreamError{Itag: d.Itag, Kind: MissingRequiredTransform,
			Err: signatureUnavailable(analysis)}
	}

	plain, err := analysis.Signature.Apply(scrambled)
	if err != nil {
		return "", &StreamError{Itag: d.Itag, Kind: MissingRequiredTransform,
			Err: fmt.Errorf("descramble signature: %w", err)}
	}

	param := values.Get("sp")
	if param == "" {
		param = "signature"
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", &StreamError{Itag: d.Itag, Kind: ParameterNotFound,
			Err: fmt.Errorf("malformed stream URL: %w", err)}
	}
	q := u.Query()
	q.Set(param, plain)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// applyThrottle rewrites the throttle parameter in place when present. URLs
// without one pass through untouched.
func applyThrottle(d *StreamDescriptor, target string, analysis *playerjs.Analysis) (string, *StreamError) {
	u, err := url.Parse(target)
	if err != nil {
		return "", &StreamError{Itag: d.Itag, Kind: ParameterNotFound,
			Err: fmt.Errorf("malformed stream URL: %w", err)}
	}
	q := u.Query()
	scrambled := q.Get(throttleParam)
	if scrambled == "" {
		return target, nil
	}

	if analysis == nil || analysis.Throttle == nil {
		return "", &StreamError{Itag: d.Itag, Kind: MissingRequiredTransform,
			Err: throttleUnavailable(analysis)}
	}

	plain, err := analysis.Throttle.Apply(scrambled)
	if err != nil {
		return "", &StreamError{Itag: d.Itag, Kind: MissingRequiredTransform,
			Err: fmt.Errorf("transform throttle parameter: %w", err)}
	}
	q.Set(throttleParam, plain)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func signatureUnavailable(analysis *playerjs.Analysis) error {
	if analysis != nil && analysis.SignatureErr != nil {
		return fmt.Errorf("signature transform unavailable: %w", analysis.SignatureErr)
	}
	return fmt.Errorf("signature transform unavailable")
}

func throttleUnavailable(analysis *playerjs.Analysis) error {
	if analysis != nil && analysis.ThrottleErr != nil {
		return fmt.Errorf("throttle transform unavailable: %w", analysis.ThrottleErr)
	}
	return fmt.Errorf("throttle transform unavailable")
}

func urlHasThrottleParam(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Query().Get(throttleParam) != ""
}
