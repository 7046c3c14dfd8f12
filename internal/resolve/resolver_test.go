package resolve

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yenkj/vod/internal/domain"
)

type fakeUpstream struct {
	resolve func(ctx context.Context, id string) (domain.PlayInfo, error)
	calls   atomic.Int64
}

func (f *fakeUpstream) ResolvePlay(ctx context.Context, id string, withSubs bool) (domain.PlayInfo, error) {
	f.calls.Add(1)
	return f.resolve(ctx, id)
}

func episodes(n int) []domain.Episode {
	out := make([]domain.Episode, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Episode{
			Title: "S01E0" + string(rune('1'+i)),
			ID:    "id-" + string(rune('a'+i)),
		})
	}
	return out
}

func TestResolveAllPreservesInputOrder(t *testing.T) {
	up := &fakeUpstream{resolve: func(ctx context.Context, id string) (domain.PlayInfo, error) {
		// Later episodes finish first.
		if id == "id-a" {
			time.Sleep(50 * time.Millisecond)
		}
		return domain.PlayInfo{URL: "http://cdn/" + id + ".mp4"}, nil
	}}
	r := New(up, time.Second, 5*time.Second, nil)

	batch := r.ResolveAll(context.Background(), episodes(3))
	if len(batch.Results) != 3 {
		t.Fatalf("len = %d, want 3", len(batch.Results))
	}
	for i, want := range []string{"id-a", "id-b", "id-c"} {
		if batch.Results[i].Episode.ID != want {
			t.Fatalf("result %d out of order: %+v", i, batch.Results[i])
		}
		if !batch.Results[i].Resolved() {
			t.Fatalf("result %d unresolved: %v", i, batch.Results[i].Err)
		}
	}
}

func TestResolveAllReturnsPartialResultsAfterDeadline(t *testing.T) {
	up := &fakeUpstream{resolve: func(ctx context.Context, id string) (domain.PlayInfo, error) {
		if id == "id-b" {
			// Never responds; only ctx cancellation ends it.
			<-ctx.Done()
			return domain.PlayInfo{}, ctx.Err()
		}
		return domain.PlayInfo{URL: "http://cdn/" + id + ".mp4"}, nil
	}}
	r := New(up, time.Minute, 100*time.Millisecond, nil)

	start := time.Now()
	batch := r.ResolveAll(context.Background(), episodes(3))
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("batch took %v, must return promptly after the deadline", elapsed)
	}

	if got := batch.ResolvedCount(); got != 2 {
		t.Fatalf("resolved = %d, want 2", got)
	}
	manifest := batch.Manifest()
	if len(manifest) != 2 || manifest[0].ID != "http://cdn/id-a.mp4" || manifest[1].ID != "http://cdn/id-c.mp4" {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}
	if batch.Results[1].Resolved() {
		t.Fatal("hung episode must be unresolved")
	}
}

func TestResolveAllLateResolutionsDoNotMutateReturnedBatch(t *testing.T) {
	straggled := make(chan struct{})
	up := &fakeUpstream{resolve: func(ctx context.Context, id string) (domain.PlayInfo, error) {
		if id == "id-b" {
			// Ignores cancellation and finishes shortly after the
			// deadline, as a slow upstream would.
			<-ctx.Done()
			time.Sleep(30 * time.Millisecond)
			defer close(straggled)
			return domain.PlayInfo{URL: "http://cdn/late.mp4"}, nil
		}
		return domain.PlayInfo{URL: "http://cdn/" + id + ".mp4"}, nil
	}}
	r := New(up, time.Minute, 20*time.Millisecond, nil)

	batch := r.ResolveAll(context.Background(), episodes(3))

	// Reading the batch while the straggler is still unwinding must be
	// safe, and its outcome must stay ErrDeadline.
	for _, res := range batch.Results {
		_ = res.Resolved()
	}
	if !errors.Is(batch.Results[1].Err, ErrDeadline) {
		t.Fatalf("err = %v, want ErrDeadline", batch.Results[1].Err)
	}

	select {
	case <-straggled:
	case <-time.After(2 * time.Second):
		t.Fatal("straggler never finished")
	}
	if !errors.Is(batch.Results[1].Err, ErrDeadline) || batch.Results[1].URL != "" {
		t.Fatalf("late resolution mutated the returned batch: %+v", batch.Results[1])
	}
}

func TestResolveAllPerEpisodeTimeout(t *testing.T) {
	up := &fakeUpstream{resolve: func(ctx context.Context, id string) (domain.PlayInfo, error) {
		if id == "id-a" {
			<-ctx.Done()
			return domain.PlayInfo{}, ctx.Err()
		}
		return domain.PlayInfo{URL: "http://cdn/" + id + ".mkv"}, nil
	}}
	r := New(up, 50*time.Millisecond, 5*time.Second, nil)

	batch := r.ResolveAll(context.Background(), episodes(2))
	if batch.Results[0].Resolved() {
		t.Fatal("timed-out episode must be unresolved")
	}
	if !batch.Results[1].Resolved() {
		t.Fatalf("fast episode must resolve: %v", batch.Results[1].Err)
	}
}

func TestResolveAllRejectsNonContainerURLs(t *testing.T) {
	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		{"mp4", "http://cdn/a.mp4", true},
		{"mkv with query", "http://cdn/a.mkv?token=1", true},
		{"m3u8", "http://cdn/live.m3u8", true},
		{"uppercase", "http://cdn/a.MP4", true},
		{"html page", "http://cdn/error.html", false},
		{"no extension", "http://cdn/stream", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			up := &fakeUpstream{resolve: func(ctx context.Context, id string) (domain.PlayInfo, error) {
				return domain.PlayInfo{URL: tc.url}, nil
			}}
			r := New(up, time.Second, time.Second, nil)
			batch := r.ResolveAll(context.Background(), episodes(1))
			if got := batch.Results[0].Resolved(); got != tc.ok {
				t.Fatalf("Resolved() = %v for %q, want %v (err=%v)", got, tc.url, tc.ok, batch.Results[0].Err)
			}
			if !tc.ok && !errors.Is(batch.Results[0].Err, ErrBadContainer) {
				t.Fatalf("err = %v, want ErrBadContainer", batch.Results[0].Err)
			}
		})
	}
}

func TestResolveAllFailedEpisodeDoesNotAbortBatch(t *testing.T) {
	up := &fakeUpstream{resolve: func(ctx context.Context, id string) (domain.PlayInfo, error) {
		if id == "id-b" {
			return domain.PlayInfo{}, domain.ErrNotFound
		}
		return domain.PlayInfo{URL: "http://cdn/" + id + ".mp4"}, nil
	}}
	r := New(up, time.Second, 5*time.Second, nil)

	batch := r.ResolveAll(context.Background(), episodes(3))
	if got := batch.ResolvedCount(); got != 2 {
		t.Fatalf("resolved = %d, want 2", got)
	}
	if !errors.Is(batch.Results[1].Err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", batch.Results[1].Err)
	}
}

func TestResolveAllCollectsSubtitles(t *testing.T) {
	up := &fakeUpstream{resolve: func(ctx context.Context, id string) (domain.PlayInfo, error) {
		info := domain.PlayInfo{URL: "http://cdn/" + id + ".mp4"}
		if id == "id-a" {
			info.Subs = []domain.SubtitleTrack{{Lang: "chi", URL: "http://cdn/zh.srt", Name: "中文"}}
		}
		return info, nil
	}}
	r := New(up, time.Second, 5*time.Second, nil)

	batch := r.ResolveAll(context.Background(), episodes(2))
	if len(batch.Subs) != 1 || batch.Subs[0].Lang != "chi" {
		t.Fatalf("unexpected subs: %+v", batch.Subs)
	}
}

func TestResolveAllEmptyInput(t *testing.T) {
	up := &fakeUpstream{resolve: func(ctx context.Context, id string) (domain.PlayInfo, error) {
		return domain.PlayInfo{}, nil
	}}
	r := New(up, time.Second, time.Second, nil)

	batch := r.ResolveAll(context.Background(), nil)
	if len(batch.Results) != 0 {
		t.Fatalf("expected empty batch, got %+v", batch.Results)
	}
	if up.calls.Load() != 0 {
		t.Fatal("no upstream calls expected for an empty batch")
	}
}
