// Package resolve fans out per-episode identifier resolution and
// aggregates partial results under a global deadline.
package resolve

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yenkj/vod/internal/domain"
	"github.com/yenkj/vod/internal/metrics"
)

var (
	// ErrDeadline marks episodes whose resolution had not completed
	// when the batch deadline elapsed.
	ErrDeadline = errors.New("batch deadline elapsed")

	// ErrBadContainer marks resolved URLs that do not end in a known
	// playable container extension.
	ErrBadContainer = errors.New("resolved url has no playable container extension")
)

var containerPattern = regexp.MustCompile(`(?i)\.(m3u8|mkv|mp4|avi|flv|webm|mov)(\?.*)?$`)

// PlayResolver is the slice of the upstream client the resolver needs.
type PlayResolver interface {
	ResolvePlay(ctx context.Context, id string, withSubs bool) (domain.PlayInfo, error)
}

// Result is the tagged outcome for one episode. Err distinguishes "no
// source available" from "not attempted before the deadline".
type Result struct {
	Episode domain.Episode
	URL     string
	Err     error

	subsTracks []domain.SubtitleTrack
}

// Resolved reports whether the episode produced a playable URL.
func (r Result) Resolved() bool { return r.Err == nil }

// Batch is an ordered set of per-episode outcomes plus the subtitle
// tracks reported alongside them.
type Batch struct {
	Results []Result
	Subs    []domain.SubtitleTrack
}

// ResolvedCount returns how many episodes ended with a playable URL.
func (b Batch) ResolvedCount() int {
	n := 0
	for _, r := range b.Results {
		if r.Resolved() {
			n++
		}
	}
	return n
}

// Manifest returns the resolved (title, url) pairs in input order,
// dropping unresolved episodes.
func (b Batch) Manifest() []domain.Episode {
	out := make([]domain.Episode, 0, len(b.Results))
	for _, r := range b.Results {
		if r.Resolved() {
			out = append(out, domain.Episode{Title: r.Episode.Title, ID: r.URL})
		}
	}
	return out
}

type Resolver struct {
	upstream       PlayResolver
	episodeTimeout time.Duration
	batchTimeout   time.Duration
	logger         *slog.Logger
}

func New(upstream PlayResolver, episodeTimeout, batchTimeout time.Duration, logger *slog.Logger) *Resolver {
	if episodeTimeout <= 0 {
		episodeTimeout = 20 * time.Second
	}
	if batchTimeout <= 0 {
		batchTimeout = 55 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		upstream:       upstream,
		episodeTimeout: episodeTimeout,
		batchTimeout:   batchTimeout,
		logger:         logger,
	}
}

// ResolveAll resolves every episode concurrently, one goroutine each,
// and returns results in input order. Each resolution carries its own
// timeout; the whole batch additionally races the batch deadline. When
// the deadline fires first, episodes still in flight are reported as
// unresolved with ErrDeadline and their upstream calls are cancelled.
// The returned batch is a snapshot: a straggler unwinding after the
// deadline writes into the abandoned scratch slice, never into what
// the caller is already reading.
func (r *Resolver) ResolveAll(ctx context.Context, episodes []domain.Episode) Batch {
	if len(episodes) == 0 {
		return Batch{Results: make([]Result, 0)}
	}

	start := time.Now()
	batchCtx, cancel := context.WithTimeout(ctx, r.batchTimeout)
	defer cancel()

	var mu sync.Mutex
	scratch := make([]Result, len(episodes))
	completed := make([]bool, len(episodes))
	var subs []domain.SubtitleTrack

	g, groupCtx := errgroup.WithContext(batchCtx)
	for i, ep := range episodes {
		i, ep := i, ep
		g.Go(func() error {
			res := r.resolveOne(groupCtx, ep)

			mu.Lock()
			scratch[i] = res
			completed[i] = true
			if res.Err == nil && len(res.subsTracks) > 0 {
				subs = res.subsTracks
			}
			mu.Unlock()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-batchCtx.Done():
		// Give up on the stragglers; groupCtx is cancelled so their
		// upstream calls abort on their own.
		r.logger.Warn("episode batch deadline elapsed",
			slog.Int("episodes", len(episodes)),
			slog.Duration("deadline", r.batchTimeout),
		)
	}

	batch := Batch{Results: make([]Result, len(episodes))}
	mu.Lock()
	for i := range scratch {
		if completed[i] {
			batch.Results[i] = scratch[i]
		} else {
			batch.Results[i] = Result{Episode: episodes[i], Err: ErrDeadline}
			metrics.EpisodeResolutionsTotal.WithLabelValues("deadline").Inc()
		}
	}
	batch.Subs = subs
	mu.Unlock()

	metrics.EpisodeBatchDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("episode batch resolved",
		slog.Int("requested", len(episodes)),
		slog.Int("resolved", batch.ResolvedCount()),
		slog.Int64("durationMs", time.Since(start).Milliseconds()),
	)
	return batch
}

func (r *Resolver) resolveOne(ctx context.Context, ep domain.Episode) Result {
	ctx, cancel := context.WithTimeout(ctx, r.episodeTimeout)
	defer cancel()

	info, err := r.upstream.ResolvePlay(ctx, ep.ID, true)
	if err != nil {
		metrics.EpisodeResolutionsTotal.WithLabelValues("unresolved").Inc()
		if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			r.logger.Debug("episode resolution failed",
				slog.String("id", ep.ID),
				slog.String("error", err.Error()),
			)
		}
		return Result{Episode: ep, Err: err}
	}
	if !containerPattern.MatchString(info.URL) {
		metrics.EpisodeResolutionsTotal.WithLabelValues("unresolved").Inc()
		r.logger.Debug("episode url rejected",
			slog.String("id", ep.ID),
			slog.String("url", truncate(info.URL, 120)),
		)
		return Result{Episode: ep, Err: ErrBadContainer}
	}

	metrics.EpisodeResolutionsTotal.WithLabelValues("resolved").Inc()
	return Result{Episode: ep, URL: info.URL, subsTracks: info.Subs}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
