// Package catalog turns upstream search/detail pages into the manifest
// form the client player consumes.
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yenkj/vod/internal/app"
	"github.com/yenkj/vod/internal/domain"
	"github.com/yenkj/vod/internal/playlist"
	"github.com/yenkj/vod/internal/resolve"
)

const (
	defaultPlaySource = "默认"
	noSourceNote      = "暂无播放源"
)

// DetailFetcher is the slice of the upstream client the transformer
// needs for items whose search row omits the play-list token.
type DetailFetcher interface {
	Detail(ctx context.Context, id string) (domain.CatalogItem, error)
}

// EpisodeResolver resolves parsed episodes to real URLs.
type EpisodeResolver interface {
	ResolveAll(ctx context.Context, episodes []domain.Episode) resolve.Batch
}

type Transformer struct {
	upstream      DetailFetcher
	resolver      EpisodeResolver
	publicBaseURL string
	linkMode      app.EpisodeLinkMode
	logger        *slog.Logger
}

func NewTransformer(upstream DetailFetcher, resolver EpisodeResolver, publicBaseURL string, linkMode app.EpisodeLinkMode, logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{
		upstream:      upstream,
		resolver:      resolver,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		linkMode:      linkMode,
		logger:        logger,
	}
}

// TransformPage rebuilds every list item's play manifest, processing
// items concurrently. Items that cannot produce a manifest are kept
// with an empty play URL and a no-source note so the catalog stays
// complete; partial failure is the norm, never an error.
func (t *Transformer) TransformPage(ctx context.Context, page domain.CatalogPage) domain.CatalogPage {
	list := make([]domain.CatalogItem, len(page.List))

	g, groupCtx := errgroup.WithContext(ctx)
	for i, item := range page.List {
		i, item := i, item
		g.Go(func() error {
			transformed, err := t.transformItem(groupCtx, item)
			if err != nil {
				t.logger.Warn("catalog item kept as placeholder",
					slog.String("id", item.VodID.String()),
					slog.String("name", item.VodName),
					slog.String("error", err.Error()),
				)
				transformed = placeholderItem(item)
			}
			list[i] = transformed
			return nil
		})
	}
	_ = g.Wait()

	return domain.CatalogPage{
		Code:      1,
		Msg:       "数据列表",
		Page:      page.PageOrDefault(),
		PageCount: page.PageCountOrDefault(),
		Limit:     page.LimitOrDefault(),
		Total:     len(list),
		List:      list,
	}
}

func (t *Transformer) transformItem(ctx context.Context, item domain.CatalogItem) (domain.CatalogItem, error) {
	source := item
	if strings.TrimSpace(source.VodPlayURL) == "" {
		detail, err := t.upstream.Detail(ctx, item.VodID.String())
		if err != nil {
			return domain.CatalogItem{}, err
		}
		source = detail
	}

	isSeries := playlist.IsSeries(source.VodContent)
	episodes := playlist.Parse(source.VodPlayURL, isSeries)
	if len(episodes) == 0 {
		return domain.CatalogItem{}, domain.ErrNotFound
	}

	var manifest string
	var subs []domain.SubtitleTrack
	switch t.linkMode {
	case app.LinkResolve:
		batch := t.resolver.ResolveAll(ctx, episodes)
		resolved := batch.Manifest()
		if len(resolved) == 0 {
			return domain.CatalogItem{}, domain.ErrNotFound
		}
		pairs := make([]string, 0, len(resolved))
		for _, ep := range resolved {
			pairs = append(pairs, playlist.Entry(ep.Title, ep.ID))
		}
		manifest = playlist.Join(pairs)
		subs = batch.Subs
	default:
		// Rewrite mode: short links into this gateway, resolution
		// deferred to playback time. The .mkv suffix is a client-side
		// hint only; /r/ strips it before lookup.
		pairs := make([]string, 0, len(episodes))
		for _, ep := range episodes {
			pairs = append(pairs, playlist.Entry(ep.Title, t.publicBaseURL+"/r/"+ep.ID+".mkv"))
		}
		manifest = playlist.Join(pairs)
	}

	out := baseFields(item)
	out.VodPlayFrom = playFrom(source.VodPlayFrom)
	out.VodPlayURL = manifest
	out.VodPlayServer = "no"
	out.VodPlayNote = ""
	out.VodPlaySubs = subs
	return out, nil
}

func baseFields(item domain.CatalogItem) domain.CatalogItem {
	doubanID := item.VodDoubanID
	if doubanID == "" {
		doubanID = item.DBID
	}
	return domain.CatalogItem{
		VodID:       item.VodID,
		VodName:     item.VodName,
		VodPic:      item.VodPic,
		VodRemarks:  item.VodRemarks,
		VodYear:     item.VodYear,
		VodArea:     item.VodArea,
		VodLang:     item.VodLang,
		VodActor:    item.VodActor,
		VodDirector: item.VodDirector,
		VodContent:  playlist.ExtractContent(item.VodContent),
		VodDoubanID: doubanID,
		TypeName:    item.TypeName,
	}
}

func placeholderItem(item domain.CatalogItem) domain.CatalogItem {
	out := baseFields(item)
	out.VodPlayFrom = defaultPlaySource
	out.VodPlayURL = ""
	out.VodPlayServer = "no"
	out.VodPlayNote = noSourceNote
	return out
}

func playFrom(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return defaultPlaySource
	}
	return raw
}
