package client

import "errors"

var (
	// ErrInvalidInput indicates malformed input (not a video ID/url).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable indicates the video cannot be played.
	ErrUnavailable = errors.New("video unavailable")
	// ErrLoginRequired indicates an authenticated session is required.
	ErrLoginRequired = errors.New("login required")
	// ErrNoStreams indicates the player response listed no fetchable
	// renditions.
	ErrNoStreams = errors.New("no fetchable streams")
)
