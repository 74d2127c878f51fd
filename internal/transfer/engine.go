// Package transfer moves stream payloads over ranged HTTP requests, one
// chunk at a time, with per-chunk retries and resumable progress.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/famomatic/ytfetch/internal/logging"
)

// defaultChunkSize matches the request size the platform's own web player
// issues, which keeps ranged requests from being flagged.
const defaultChunkSize = 9 * 1024 * 1024

// Options tunes one transfer. The zero value is usable.
type Options struct {
	// ChunkSize is the ranged request size in bytes.
	ChunkSize int64
	// Retry controls per-chunk retry behavior.
	Retry RetryConfig
	// ResumeFromOffset restarts a transfer at a byte offset. The caller
	// is responsible for positioning its writer to match.
	ResumeFromOffset int64
	// KnownTotal pre-seeds the total size when the caller already knows
	// it (stream metadata carries it for most renditions). Zero means
	// probe, then fall back to reading until the stream ends.
	KnownTotal int64
	// Headers are sent with every request.
	Headers http.Header
	// Progress, when set, is invoked after every written chunk.
	Progress func(Progress)
	// SequencedFallback switches to segment-numbered requests when the
	// origin rejects ranged requests outright. Segmented renditions need
	// this.
	SequencedFallback bool
}

// Engine issues chunked transfers. One engine serves any number of
// concurrent sessions.
type Engine struct {
	client  *http.Client
	log     *slog.Logger
	metrics *Metrics
}

// NewEngine wires an engine over the given client. A nil client falls back
// to http.DefaultClient; nil metrics disables collection.
func NewEngine(client *http.Client, logger *slog.Logger, metrics *Metrics) *Engine {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{client: client, log: logger, metrics: metrics}
}

// Transfer fetches rawURL chunk by chunk and writes the payload to w in
// order. It blocks until the session reaches a terminal state and returns
// the session alongside the failure cause, if any. Cancellation is observed
// at chunk boundaries only: a chunk is either fully written or not written
// at all, so w always holds a contiguous prefix of the stream.
func (e *Engine) Transfer(ctx context.Context, rawURL string, w io.Writer, opts Options) (*Session, error) {
	session := newSession()
	e.metrics.sessionStarted()
	defer e.metrics.sessionEnded()

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	retryCfg := normalizeRetryConfig(opts.Retry)

	offset := opts.ResumeFromOffset
	if offset < 0 {
		offset = 0
	}
	if offset > 0 {
		session.addBytes(offset)
	}

	log := e.log.With("session", session.ID.String())

	total := opts.KnownTotal
	if total <= 0 {
		session.setState(StateRequesting)
		probed, err := e.probeTotalSize(ctx, rawURL, opts.Headers)
		if err != nil {
			log.Debug("size probe failed, reading until end of stream", "err", err)
			total = 0
		} else {
			total = probed
		}
	}
	session.setTotal(total)

	for {
		if total > 0 && offset >= total {
			session.finish(StateCompleted, nil)
			log.Info("transfer complete", "bytes", offset)
			return session, nil
		}

		end := offset + chunkSize - 1
		if total > 0 && end >= total {
			end = total - 1
		}

		session.setState(StateRequesting)
		chunk, err := e.fetchChunk(ctx, rawURL, offset, end, opts.Headers, retryCfg, session, log)
		if err != nil {
			var statusErr *httpStatusError
			switch {
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				session.finish(StateCancelled, err)
				log.Info("transfer cancelled", "bytes", offset)
				return session, err
			case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
				// The origin has no bytes past offset: the stream ended
				// exactly on a chunk boundary.
				session.finish(StateCompleted, nil)
				return session, nil
			case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound && opts.SequencedFallback && offset == 0:
				log.Debug("origin rejects ranged requests, switching to sequenced mode")
				return e.transferSequenced(ctx, rawURL, w, opts, retryCfg, session, log)
			default:
				session.finish(StateFailed, err)
				log.Error("transfer failed", "offset", offset, "err", err)
				return session, err
			}
		}

		if len(chunk) == 0 {
			session.finish(StateCompleted, nil)
			return session, nil
		}

		session.setState(StateWriting)
		if _, err := w.Write(chunk); err != nil {
			err = fmt.Errorf("write chunk at offset %d: %w", offset, err)
			session.finish(StateFailed, err)
			return session, err
		}
		written := int64(len(chunk))
		offset += written
		session.addBytes(written)
		e.metrics.chunkWritten(written)
		if opts.Progress != nil {
			opts.Progress(session.Progress())
		}

		// Chunk boundary: the only place cancellation takes effect.
		if err := ctx.Err(); err != nil {
			session.finish(StateCancelled, err)
			log.Info("transfer cancelled", "bytes", offset)
			return session, err
		}

		// A short chunk means the stream ended before the requested range.
		if total <= 0 && written < chunkSize {
			session.finish(StateCompleted, nil)
			return session, nil
		}
	}
}

// fetchChunk requests one byte range, buffering the body fully so a chunk
// is never half-consumed. Retries transient failures with backoff.
func (e *Engine) fetchChunk(
	ctx context.Context,
	rawURL string,
	start, end int64,
	headers http.Header,
	cfg effectiveRetryConfig,
	session *Session,
	log *slog.Logger,
) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetriesPerChunk; attempt++ {
		if attempt > 0 {
			session.setState(StateRetrying)
			e.metrics.chunkRetried()
			backoff := cfg.backoffFor(attempt - 1)
			var statusErr *httpStatusError
			if errors.As(lastErr, &statusErr) && statusErr.RetryAfter > backoff {
				backoff = statusErr.RetryAfter
			}
			log.Debug("retrying chunk", "offset", start, "attempt", attempt, "backoff", backoff)
			if err := waitBackoff(ctx, backoff); err != nil {
				return nil, err
			}
			session.setState(StateRequesting)
		}

		chunk, err := e.doRangeRequest(ctx, rawURL, start, end, headers)
		if err == nil {
			return chunk, nil
		}
		lastErr = err
		if !isRetryableError(lastErr, cfg) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (e *Engine) doRangeRequest(ctx context.Context, rawURL string, start, end int64, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	applyHeaders(req, headers)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return io.ReadAll(resp.Body)
	case http.StatusOK:
		// Origin ignored the range header. Acceptable only from the top,
		// and never for more than the requested range: a short read ends
		// the transfer, so the caller treats the capped chunk as final.
		if start != 0 {
			return nil, fmt.Errorf("origin ignored range request at offset %d", start)
		}
		return io.ReadAll(io.LimitReader(resp.Body, end-start+1))
	default:
		return nil, &httpStatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
}

// transferSequenced walks segment-numbered requests until the origin runs
// out of segments. Segmented renditions report no total size, so progress
// carries bytes only.
func (e *Engine) transferSequenced(
	ctx context.Context,
	rawURL string,
	w io.Writer,
	opts Options,
	cfg effectiveRetryConfig,
	session *Session,
	log *slog.Logger,
) (*Session, error) {
	session.setTotal(0)
	// Segment 0 reports the segment count; until it arrives we probe with
	// requests until a miss.
	segmentCount := -1
	for seq := 0; segmentCount < 0 || seq < segmentCount; seq++ {
		segURL, err := withSequenceParam(rawURL, seq)
		if err != nil {
			session.finish(StateFailed, err)
			return session, err
		}

		session.setState(StateRequesting)
		segment, count, err := e.fetchSegment(ctx, segURL, opts.Headers, cfg, session, log)
		if seq == 0 && count > 0 {
			segmentCount = count
		}
		if err != nil {
			var statusErr *httpStatusError
			switch {
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				session.finish(StateCancelled, err)
				return session, err
			case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound && seq > 0:
				// Past the last segment.
				session.finish(StateCompleted, nil)
				log.Info("sequenced transfer complete", "segments", seq)
				return session, nil
			default:
				session.finish(StateFailed, err)
				return session, err
			}
		}
		if len(segment) == 0 {
			session.finish(StateCompleted, nil)
			return session, nil
		}

		session.setState(StateWriting)
		if _, err := w.Write(segment); err != nil {
			err = fmt.Errorf("write segment %d: %w", seq, err)
			session.finish(StateFailed, err)
			return session, err
		}
		session.addBytes(int64(len(segment)))
		e.metrics.chunkWritten(int64(len(segment)))
		if opts.Progress != nil {
			opts.Progress(session.Progress())
		}

		if err := ctx.Err(); err != nil {
			session.finish(StateCancelled, err)
			return session, err
		}
	}
	session.finish(StateCompleted, nil)
	log.Info("sequenced transfer complete", "segments", segmentCount)
	return session, nil
}

func (e *Engine) fetchSegment(
	ctx context.Context,
	segURL string,
	headers http.Header,
	cfg effectiveRetryConfig,
	session *Session,
	log *slog.Logger,
) ([]byte, int, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetriesPerChunk; attempt++ {
		if attempt > 0 {
			session.setState(StateRetrying)
			e.metrics.chunkRetried()
			backoff := cfg.backoffFor(attempt - 1)
			var statusErr *httpStatusError
			if errors.As(lastErr, &statusErr) && statusErr.RetryAfter > backoff {
				backoff = statusErr.RetryAfter
			}
			log.Debug("retrying segment", "attempt", attempt, "backoff", backoff)
			if err := waitBackoff(ctx, backoff); err != nil {
				return nil, 0, err
			}
			session.setState(StateRequesting)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, segURL, nil)
		if err != nil {
			return nil, 0, err
		}
		applyHeaders(req, headers)
		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, count, readErr := func() ([]byte, int, error) {
				defer resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return nil, 0, &httpStatusError{
						StatusCode: resp.StatusCode,
						RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
					}
				}
				count, _ := strconv.Atoi(resp.Header.Get("Segment-Count"))
				body, err := io.ReadAll(resp.Body)
				return body, count, err
			}()
			if readErr == nil {
				return body, count, nil
			}
			lastErr = readErr
		}
		if !isRetryableError(lastErr, cfg) {
			return nil, 0, lastErr
		}
	}
	return nil, 0, lastErr
}

// probeTotalSize asks the origin for the stream's size: HEAD first, then a
// one-byte ranged GET for origins that strip Content-Length from HEAD.
func (e *Engine) probeTotalSize(ctx context.Context, rawURL string, headers http.Header) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, err
	}
	applyHeaders(req, headers)
	resp, err := e.client.Do(req)
	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK && resp.ContentLength > 0 {
			return resp.ContentLength, nil
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	applyHeaders(req, headers)
	req.Header.Set("Range", "bytes=0-0")
	resp, err = e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusPartialContent {
		return 0, &httpStatusError{StatusCode: resp.StatusCode}
	}
	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

// parseContentRangeTotal extracts the total from `bytes 0-0/12345`.
func parseContentRangeTotal(raw string) (int64, error) {
	idx := strings.LastIndexByte(raw, '/')
	if idx < 0 || idx == len(raw)-1 {
		return 0, fmt.Errorf("malformed Content-Range %q", raw)
	}
	totalPart := raw[idx+1:]
	if totalPart == "*" {
		return 0, fmt.Errorf("origin does not report a total size")
	}
	total, err := strconv.ParseInt(totalPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed Content-Range %q: %w", raw, err)
	}
	return total, nil
}

func withSequenceParam(rawURL string, seq int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("sq", strconv.Itoa(seq))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func applyHeaders(req *http.Request, headers http.Header) {
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
}
