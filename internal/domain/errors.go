package domain

import "errors"

var (
	// ErrNotFound means the upstream resolution returned no playable URL
	// for the identifier, or the catalog has no such item.
	ErrNotFound = errors.New("not found")

	// ErrUpstream covers transport-level failures talking to the
	// playback or catalog API (timeouts, connection errors, 5xx).
	ErrUpstream = errors.New("upstream unavailable")

	// ErrProbe means the media probe could not reach or parse the
	// source. Callers treat it as "assume transcode needed".
	ErrProbe = errors.New("probe failed")

	// ErrProcess means the external transcoder failed to start or died
	// before producing output.
	ErrProcess = errors.New("transcoder process failed")
)
