package apihttp

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yenkj/vod/internal/media"
	"github.com/yenkj/vod/internal/metrics"
	"github.com/yenkj/vod/internal/transcode"
)

// handleTranscode serves GET /t/{id}.{ext}?audio={n}: resolve, probe,
// and relay a live transcode of the source.
func (s *Server) handleTranscode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	id, _ := splitMediaID(strings.TrimPrefix(r.URL.Path, "/t/"))
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing file id")
		return
	}

	mediaURL, err := s.resolveURL(r.Context(), id)
	if err != nil {
		if requestAborted(r, err) {
			return
		}
		writeDomainError(w, err)
		return
	}

	s.serveTranscode(w, r, mediaURL, parseAudioTrack(r.URL.Query().Get("audio")))
}

// serveTranscode supervises one ffmpeg run whose stdout is the response
// body. The status line is held back until the first chunk arrives so a
// process that dies before producing output still gets a clean 500.
func (s *Server) serveTranscode(w http.ResponseWriter, r *http.Request, mediaURL string, audioTrack int) {
	decision := s.probeDecision(r, mediaURL)

	args := transcode.BuildStreamArgs(transcode.ArgConfig{
		Input:      mediaURL,
		AudioTrack: audioTrack,
		Decision:   decision,
	})
	proc := transcode.NewProcess(r.Context(), s.ffmpegPath, args)

	if err := proc.Start(); err != nil {
		s.logger.Error("transcoder spawn failed", slog.String("error", err.Error()))
		metrics.TranscodeFailuresTotal.Inc()
		writeError(w, http.StatusInternalServerError, "process_error", "transcoder failed to start")
		return
	}
	defer proc.Stop()

	metrics.TranscodeStartsTotal.Inc()
	metrics.ActiveTranscodeSessions.Inc()
	defer metrics.ActiveTranscodeSessions.Dec()

	s.logger.Info("transcode started",
		slog.String("url", truncate(mediaURL, 100)),
		slog.Int("audioTrack", audioTrack),
		slog.Bool("videoCopy", !decision.NeedsVideoTranscode),
		slog.Bool("audioCopy", !decision.NeedsAudioTranscode),
	)

	header := w.Header()
	header.Set("Content-Type", "application/vnd.apple.mpegurl")
	header.Set("Cache-Control", "no-cache")

	s.relayProcessOutput(w, r, proc, "transcode")
}

// handleSubtitle serves GET /s/{id}.{index}.{ext}: extract one embedded
// subtitle stream as text.
func (s *Server) handleSubtitle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	id, index, ext, err := splitSubtitleID(strings.TrimPrefix(r.URL.Path, "/s/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	mediaURL, err := s.resolveURL(r.Context(), id)
	if err != nil {
		if requestAborted(r, err) {
			return
		}
		writeDomainError(w, err)
		return
	}

	args := transcode.BuildSubtitleArgs(mediaURL, index, media.SubtitleFormat(ext))
	proc := transcode.NewProcess(r.Context(), s.ffmpegPath, args)

	if err := proc.Start(); err != nil {
		s.logger.Error("subtitle extraction spawn failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "process_error", "subtitle extraction failed")
		return
	}
	defer proc.Stop()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	s.relayProcessOutput(w, r, proc, "subtitle")
}

// probeDecision probes the source; a failed probe means "re-encode
// everything" rather than an error the client sees.
func (s *Server) probeDecision(r *http.Request, mediaURL string) media.CodecDecision {
	if s.prober == nil {
		return media.AssumeIncompatible()
	}
	result, err := s.prober.Probe(r.Context(), mediaURL)
	if err != nil {
		if !requestAborted(r, err) {
			s.logger.Debug("probe failed, assuming incompatible",
				slog.String("url", truncate(mediaURL, 100)),
				slog.String("error", err.Error()),
			)
		}
		return media.AssumeIncompatible()
	}
	return media.Decide(result)
}

// relayProcessOutput pumps a supervised process's stdout into the
// response. The first read decides between a 500 (process died before
// any output) and a streamed 200; afterwards errors can only end the
// connection. Client disconnects cancel the request context, which
// kills the process via its own context — and are logged at debug, not
// as failures.
func (s *Server) relayProcessOutput(w http.ResponseWriter, r *http.Request, proc *transcode.Process, kind string) {
	stdout := proc.Stdout()
	buf := make([]byte, 64<<10)

	var n int
	var readErr error
	for {
		n, readErr = stdout.Read(buf)
		if n > 0 || readErr != nil {
			break
		}
	}
	if n == 0 {
		proc.Stop()
		waitErr := proc.Wait()
		if requestAborted(r, readErr) {
			s.logger.Debug("client disconnected before output", slog.String("kind", kind))
			return
		}
		s.logger.Error("process produced no output",
			slog.String("kind", kind),
			slog.Any("exitError", waitErr),
			slog.String("stderr", truncate(proc.Stderr(), 400)),
		)
		if kind == "transcode" {
			metrics.TranscodeFailuresTotal.Inc()
		}
		writeError(w, http.StatusInternalServerError, "process_error", "no output produced")
		return
	}

	sw := &streamWriter{ResponseWriter: w}
	sw.WriteHeader(http.StatusOK)
	if _, err := sw.Write(buf[:n]); err != nil {
		return
	}

	_, copyErr := io.Copy(sw, stdout)
	proc.Stop()
	_ = proc.Wait()

	if stderr := proc.Stderr(); stderr != "" {
		s.logger.Debug("process diagnostics",
			slog.String("kind", kind),
			slog.String("stderr", truncate(stderr, 400)),
		)
	}
	if copyErr != nil && !requestAborted(r, copyErr) {
		s.logger.Debug("process stream interrupted",
			slog.String("kind", kind),
			slog.String("error", copyErr.Error()),
		)
	}
}
