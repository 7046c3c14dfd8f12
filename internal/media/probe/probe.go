// Package probe inspects a remote media source's streams with ffprobe.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/yenkj/vod/internal/domain"
)

type Prober struct {
	binary string
}

func New(binary string) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{binary: bin}
}

// Track is one elementary stream of the probed source. Index counts
// within the track type (0 = first audio, first subtitle, ...), which
// is the numbering ffmpeg's -map 0:a:{n} / 0:s:{n} selectors use.
type Track struct {
	Index    int
	Type     string
	Codec    string
	Language string
	Title    string
	Default  bool
}

// Result is the parsed probe of one source URL.
type Result struct {
	Tracks   []Track
	Duration float64
}

// FirstCodec returns the codec of the first track of the given type, or
// "" when the source has none.
func (r Result) FirstCodec(trackType string) string {
	for _, t := range r.Tracks {
		if t.Type == trackType {
			return t.Codec
		}
	}
	return ""
}

// SubtitleTracks returns the subtitle streams in source order.
func (r Result) SubtitleTracks() []Track {
	var out []Track
	for _, t := range r.Tracks {
		if t.Type == "subtitle" {
			out = append(out, t)
		}
	}
	return out
}

const maxProbeTimeout = 30 * time.Second

// Probe runs ffprobe against a URL without downloading the payload.
// Failures map to domain.ErrProbe; callers treat that as "assume the
// source needs a transcode", never as a client-facing error.
func (p *Prober) Probe(ctx context.Context, sourceURL string) (Result, error) {
	src := strings.TrimSpace(sourceURL)
	if src == "" {
		return Result{}, fmt.Errorf("%w: source url is required", domain.ErrProbe)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		src,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result, parseErr := parseProbeOutput(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			return Result{}, probeError(runErr, stderr.String())
		}
		return Result{}, fmt.Errorf("%w: parse ffprobe output: %v", domain.ErrProbe, parseErr)
	}

	// ffprobe can exit non-zero for sources it still managed to read
	// stream metadata from. Keep the metadata if we have it.
	if runErr != nil && len(result.Tracks) == 0 {
		return Result{}, probeError(runErr, stderr.String())
	}

	return result, nil
}

func probeError(runErr error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		return fmt.Errorf("%w: ffprobe: %v", domain.ErrProbe, runErr)
	}
	return fmt.Errorf("%w: ffprobe: %v: %s", domain.ErrProbe, runErr, msg)
}

// probePayload is the subset of ffprobe JSON output we parse.
type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType   string            `json:"codec_type"`
	CodecName   string            `json:"codec_name"`
	Tags        map[string]string `json:"tags"`
	Disposition struct {
		Default int `json:"default"`
	} `json:"disposition"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

func parseProbeOutput(data []byte) (Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Result{}, errors.New("empty output")
	}

	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Result{}, err
	}

	counts := map[string]int{}
	tracks := make([]Track, 0, len(payload.Streams))
	for _, stream := range payload.Streams {
		switch stream.CodecType {
		case "video", "audio", "subtitle":
			tracks = append(tracks, Track{
				Index:    counts[stream.CodecType],
				Type:     stream.CodecType,
				Codec:    stream.CodecName,
				Language: strings.TrimSpace(getTag(stream.Tags, "language")),
				Title:    strings.TrimSpace(getTag(stream.Tags, "title")),
				Default:  stream.Disposition.Default == 1,
			})
			counts[stream.CodecType]++
		}
	}

	var duration float64
	if payload.Format.Duration != "" {
		if d, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil && d > 0 {
			duration = d
		}
	}

	return Result{Tracks: tracks, Duration: duration}, nil
}

func getTag(tags map[string]string, key string) string {
	if len(tags) == 0 {
		return ""
	}
	if value, ok := tags[key]; ok {
		return value
	}
	if value, ok := tags[strings.ToUpper(key)]; ok {
		return value
	}
	if value, ok := tags[strings.ToLower(key)]; ok {
		return value
	}
	return ""
}
