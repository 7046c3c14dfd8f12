package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/yenkj/vod/internal/domain"
)

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	if errors.Is(err, domain.ErrUpstream) {
		writeError(w, http.StatusBadGateway, "upstream_error", "upstream unavailable")
		return
	}
	if errors.Is(err, domain.ErrProcess) {
		writeError(w, http.StatusInternalServerError, "process_error", "transcoder failed")
		return
	}

	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// extensionPattern matches the container suffix clients append to
// gateway links. The suffix is a client-side hint, never part of the
// identifier.
var extensionPattern = regexp.MustCompile(`(?i)\.(m3u8|mkv|mp4|avi|flv|webm|mov)$`)

// splitMediaID separates "abc123.mkv" into ("abc123", "mkv"). IDs
// without a known container suffix come back with an empty extension.
func splitMediaID(raw string) (id, ext string) {
	raw = strings.TrimSpace(raw)
	loc := extensionPattern.FindStringIndex(raw)
	if loc == nil {
		return raw, ""
	}
	return raw[:loc[0]], strings.ToLower(raw[loc[0]+1:])
}

// splitSubtitleID separates "abc123.2.vtt" into id, subtitle index and
// extension.
func splitSubtitleID(raw string) (id string, index int, ext string, err error) {
	raw = strings.TrimSpace(raw)
	lastDot := strings.LastIndex(raw, ".")
	if lastDot <= 0 || lastDot == len(raw)-1 {
		return "", 0, "", errors.New("invalid subtitle path")
	}
	ext = strings.ToLower(raw[lastDot+1:])

	rest := raw[:lastDot]
	prevDot := strings.LastIndex(rest, ".")
	if prevDot <= 0 || prevDot == len(rest)-1 {
		return "", 0, "", errors.New("invalid subtitle path")
	}
	index, convErr := strconv.Atoi(rest[prevDot+1:])
	if convErr != nil || index < 0 {
		return "", 0, "", errors.New("invalid subtitle index")
	}
	return rest[:prevDot], index, ext, nil
}

func parseAudioTrack(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func fallbackContentType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp4":
		return "video/mp4"
	case "m3u8":
		return "application/vnd.apple.mpegurl"
	case "mkv":
		return "video/x-matroska"
	case "webm":
		return "video/webm"
	case "avi":
		return "video/x-msvideo"
	case "mov":
		return "video/quicktime"
	case "flv":
		return "video/x-flv"
	default:
		return "video/mp4"
	}
}

// streamWriter commits the status line exactly once and flushes every
// chunk so playback starts without buffering. Once the header is out,
// late errors can only terminate the connection.
type streamWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (sw *streamWriter) WriteHeader(code int) {
	if sw.wroteHeader {
		return
	}
	sw.wroteHeader = true
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *streamWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.WriteHeader(http.StatusOK)
	}
	n, err := sw.ResponseWriter.Write(b)
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}
