// Package media decides how a resolved source is delivered: straight
// redirect, byte proxy, or transcode.
package media

import (
	"strings"

	"github.com/yenkj/vod/internal/media/probe"
)

// DeliveryMode is how the gateway hands a resolved source to a client.
type DeliveryMode string

const (
	ModeRedirect  DeliveryMode = "redirect"
	ModeProxy     DeliveryMode = "proxy"
	ModeTranscode DeliveryMode = "transcode"
)

// Containers the target client plays natively; everything else goes
// through the transcoder regardless of the actual codecs inside.
var directContainers = map[string]struct{}{
	"mp4":  {},
	"m3u8": {},
}

var transcodeContainers = map[string]struct{}{
	"mkv":  {},
	"avi":  {},
	"flv":  {},
	"webm": {},
	"mov":  {},
}

// passthroughVideo lists h264-family codec identifiers ffprobe reports.
var passthroughVideo = map[string]struct{}{
	"h264": {},
	"avc":  {},
	"avc1": {},
}

// passthroughAudio lists aac-family codec identifiers.
var passthroughAudio = map[string]struct{}{
	"aac":  {},
	"mp4a": {},
}

// CodecDecision is the per-stream transcode verdict derived from one
// probe. A failed probe yields the zero value plus both flags set, via
// AssumeIncompatible.
type CodecDecision struct {
	VideoCodec          string
	AudioCodec          string
	NeedsVideoTranscode bool
	NeedsAudioTranscode bool
}

// Passthrough reports whether both streams can be copied verbatim.
func (d CodecDecision) Passthrough() bool {
	return !d.NeedsVideoTranscode && !d.NeedsAudioTranscode
}

// Decide inspects the first video and first audio stream of a probe.
// Unknown or absent codecs count as needing a transcode.
func Decide(result probe.Result) CodecDecision {
	video := strings.ToLower(result.FirstCodec("video"))
	audio := strings.ToLower(result.FirstCodec("audio"))

	d := CodecDecision{VideoCodec: video, AudioCodec: audio}
	if _, ok := passthroughVideo[video]; !ok {
		d.NeedsVideoTranscode = true
	}
	if _, ok := passthroughAudio[audio]; !ok {
		d.NeedsAudioTranscode = true
	}
	return d
}

// AssumeIncompatible is the decision used when the probe itself failed:
// re-encode everything rather than guess.
func AssumeIncompatible() CodecDecision {
	return CodecDecision{NeedsVideoTranscode: true, NeedsAudioTranscode: true}
}

// DeliveryModeFor picks the delivery mode from the requested file
// extension. The container, not the codec, determines playability in
// the target client: mkv/avi/flv/webm/mov always transcode. For
// directly playable containers, browser clients get the byte proxy
// (they need the CORS and Range handling) and other players a 302.
func DeliveryModeFor(ext string, browserClient bool) DeliveryMode {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if _, ok := transcodeContainers[normalized]; ok {
		return ModeTranscode
	}
	if browserClient {
		return ModeProxy
	}
	return ModeRedirect
}

// IsDirectContainer reports whether the extension names a container the
// client plays without repackaging.
func IsDirectContainer(ext string) bool {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	_, ok := directContainers[normalized]
	return ok
}

// IsBrowserClient reports whether the User-Agent looks like a browser.
// Every real browser sends a Mozilla-prefixed User-Agent; players like
// mpv or infuse do not.
func IsBrowserClient(userAgent string) bool {
	return strings.Contains(userAgent, "Mozilla")
}

// SubtitleFormat maps a requested subtitle extension to the ffmpeg
// output muxer used for extraction.
func SubtitleFormat(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), ".")) {
	case "vtt", "webvtt":
		return "webvtt"
	default:
		return "srt"
	}
}
