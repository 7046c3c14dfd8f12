package apihttp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yenkj/vod/internal/app"
	"github.com/yenkj/vod/internal/media"
	"github.com/yenkj/vod/internal/metrics"
)

// handleResolve serves GET /r/{id}[.ext]: resolve the identifier, then
// redirect, byte-proxy or transcode depending on the delivery mode.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	id, ext := splitMediaID(strings.TrimPrefix(r.URL.Path, "/r/"))
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing file id")
		return
	}

	mediaURL, err := s.resolveURL(r.Context(), id)
	if err != nil {
		if requestAborted(r, err) {
			return
		}
		s.logger.Warn("resolution failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	switch s.deliveryMode(ext, r.UserAgent()) {
	case media.ModeTranscode:
		s.serveTranscode(w, r, mediaURL, 0)
	case media.ModeRedirect:
		http.Redirect(w, r, mediaURL, http.StatusFound)
	default:
		s.proxyStream(w, r, id, mediaURL, ext)
	}
}

// resolveURL checks the cache first and falls back to the upstream
// resolver, storing fresh answers.
func (s *Server) resolveURL(ctx context.Context, id string) (string, error) {
	now := time.Now()
	if s.cache != nil {
		if cached, ok := s.cache.Get(id, now); ok {
			metrics.CacheHitsTotal.Inc()
			s.logger.Debug("cache hit", slog.String("id", id))
			return cached, nil
		}
		metrics.CacheMissesTotal.Inc()
	}

	info, err := s.resolver.ResolvePlay(ctx, id, false)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		s.cache.Put(id, info.URL, time.Now())
		metrics.CacheEntries.Set(float64(s.cache.Len()))
	}
	return info.URL, nil
}

func (s *Server) deliveryMode(ext, userAgent string) media.DeliveryMode {
	mode := media.DeliveryModeFor(ext, media.IsBrowserClient(userAgent))
	if mode == media.ModeTranscode {
		return mode
	}
	switch s.deliveryPolicy {
	case app.DeliveryProxy:
		return media.ModeProxy
	case app.DeliveryRedirect:
		return media.ModeRedirect
	default:
		return mode
	}
}

// proxyStream relays upstream media bytes to the client. The client's
// Range header travels upstream (default bytes=0-), the byte-accounting
// headers travel back verbatim, and the copy loop gives backpressure
// for free: a stalled client stalls the upstream read. The request
// context is the cancellation token — a disconnect aborts the upstream
// transfer and is never reported as an error.
func (s *Server) proxyStream(w http.ResponseWriter, r *http.Request, id, mediaURL, ext string) {
	resp, err := s.streams.OpenStream(r.Context(), mediaURL, r.Header.Get("Range"))
	if err != nil {
		if requestAborted(r, err) {
			return
		}
		s.logger.Error("upstream stream failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("upstream stream status",
			slog.String("id", id),
			slog.Int("status", resp.StatusCode),
		)
		writeError(w, resp.StatusCode, "upstream_error", "video fetch failed")
		return
	}

	header := w.Header()
	contentType := resp.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" {
		contentType = fallbackContentType(ext)
	}
	header.Set("Content-Type", contentType)
	if v := resp.Header.Get("Content-Length"); v != "" {
		header.Set("Content-Length", v)
	}
	if v := resp.Header.Get("Content-Range"); v != "" {
		header.Set("Content-Range", v)
	}
	header.Set("Accept-Ranges", "bytes")
	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return
	}

	metrics.ActiveProxySessions.Inc()
	defer metrics.ActiveProxySessions.Dec()

	written, copyErr := io.Copy(w, resp.Body)
	metrics.ProxyBytesTotal.Add(float64(written))

	if copyErr != nil {
		if requestAborted(r, copyErr) {
			s.logger.Debug("client disconnected mid-stream",
				slog.String("id", id),
				slog.Int64("bytes", written),
			)
			return
		}
		// Headers are out; all we can do is drop the connection.
		s.logger.Debug("proxy stream interrupted",
			slog.String("id", id),
			slog.Int64("bytes", written),
			slog.String("error", copyErr.Error()),
		)
	}
}

// requestAborted reports whether an error is just the client leaving.
func requestAborted(r *http.Request, err error) bool {
	if r.Context().Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}
