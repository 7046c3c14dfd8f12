// Package transcode builds and supervises ffmpeg processes that remux
// or re-encode a remote source into a live-segmented stream on stdout.
package transcode

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/yenkj/vod/internal/media"
)

// ArgConfig holds all parameters for building the ffmpeg argument list.
// Pass it by value; building is pure.
type ArgConfig struct {
	Input        string
	AudioTrack   int
	Decision     media.CodecDecision
	Preset       string
	CRF          int
	AudioBitrate string
	SegmentSecs  int
}

// BuildStreamArgs constructs the argument list for a live transcode to
// stdout. Codec arguments follow the decision: copy when the stream is
// pass-through-eligible, otherwise a fixed-quality re-encode.
func BuildStreamArgs(cfg ArgConfig) []string {
	preset := cfg.Preset
	if preset == "" {
		preset = "veryfast"
	}
	crf := cfg.CRF
	if crf <= 0 {
		crf = 23
	}
	audioBitrate := cfg.AudioBitrate
	if audioBitrate == "" {
		audioBitrate = "128k"
	}
	segment := cfg.SegmentSecs
	if segment <= 0 {
		segment = 5
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-fflags", "+genpts+discardcorrupt",
		"-err_detect", "ignore_err",
		"-avoid_negative_ts", "make_zero",
	}
	if strings.HasPrefix(cfg.Input, "http://") || strings.HasPrefix(cfg.Input, "https://") {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1")
	}
	args = append(args, "-i", cfg.Input,
		"-map", "0:v:0",
		"-map", fmt.Sprintf("0:a:%d?", cfg.AudioTrack),
	)

	if cfg.Decision.NeedsVideoTranscode {
		args = append(args,
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-preset", preset,
			"-crf", strconv.Itoa(crf),
			"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", segment),
		)
	} else {
		args = append(args, "-c:v", "copy")
	}

	if cfg.Decision.NeedsAudioTranscode {
		args = append(args, "-c:a", "aac", "-b:a", audioBitrate, "-ac", "2")
	} else {
		args = append(args, "-c:a", "copy")
	}

	args = append(args,
		"-f", "mpegts",
		"-muxdelay", "0",
		"pipe:1",
	)
	return args
}

// BuildSubtitleArgs constructs the argument list that extracts one
// embedded subtitle stream, converted to the requested text format.
func BuildSubtitleArgs(input string, subtitleIndex int, format string) []string {
	if format == "" {
		format = "srt"
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
	}
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1")
	}
	return append(args,
		"-i", input,
		"-map", fmt.Sprintf("0:s:%d", subtitleIndex),
		"-f", format,
		"pipe:1",
	)
}

const maxStderrBytes = 64 << 10

// cappedBuffer keeps the first chunk of diagnostic output and drops the
// rest; ffmpeg can be chatty on broken sources.
type cappedBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remaining := maxStderrBytes - len(b.buf); remaining > 0 {
		if len(p) > remaining {
			b.buf = append(b.buf, p[:remaining]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// Process supervises one ffmpeg invocation. Its stdout is the media
// stream; stderr is captured for logs and never forwarded. Cancelling
// the construction context, or calling Stop, kills the process — the
// owning session can always reach termination, no orphans.
type Process struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser
	stderr cappedBuffer
	done   chan struct{}
	err    error
}

// NewProcess prepares an ffmpeg run bound to ctx but does not start it.
func NewProcess(ctx context.Context, ffmpegPath string, args []string) *Process {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	return &Process{
		cmd:    cmd,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the process and begins reaping it in the background.
func (p *Process) Start() error {
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		p.cancel()
		return err
	}
	p.stdout = stdout
	p.cmd.Stderr = &p.stderr

	if err := p.cmd.Start(); err != nil {
		p.cancel()
		return err
	}

	go func() {
		p.err = p.cmd.Wait()
		close(p.done)
	}()
	return nil
}

// Stdout is the live media stream. Valid after Start.
func (p *Process) Stdout() io.ReadCloser {
	return p.stdout
}

// Stop kills the process. Idempotent.
func (p *Process) Stop() {
	p.cancel()
}

// Wait blocks until the process exits and returns its exit error.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsDone reports whether the process has already exited.
func (p *Process) IsDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Stderr returns the captured diagnostic output so far.
func (p *Process) Stderr() string {
	return strings.TrimSpace(p.stderr.String())
}
