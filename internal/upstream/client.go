// Package upstream talks to the playback and catalog APIs and
// normalizes their responses.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yenkj/vod/internal/domain"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Config wires a Client. PlayBaseURL serves /play, VodBaseURL serves
// /vod1/; they are often the same host.
type Config struct {
	PlayBaseURL    string
	VodBaseURL     string
	UserAgent      string
	Client         *http.Client
	Logger         *slog.Logger
	ResolveTimeout time.Duration
	DetailTimeout  time.Duration
	SearchTimeout  time.Duration
}

type Client struct {
	playBaseURL    string
	vodBaseURL     string
	userAgent      string
	httpClient     *http.Client
	logger         *slog.Logger
	resolveTimeout time.Duration
	detailTimeout  time.Duration
	searchTimeout  time.Duration
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		playBaseURL:    strings.TrimRight(cfg.PlayBaseURL, "/"),
		vodBaseURL:     strings.TrimRight(cfg.VodBaseURL, "/"),
		userAgent:      userAgent,
		httpClient:     httpClient,
		logger:         logger,
		resolveTimeout: durationOr(cfg.ResolveTimeout, 10*time.Second),
		detailTimeout:  durationOr(cfg.DetailTimeout, 8*time.Second),
		searchTimeout:  durationOr(cfg.SearchTimeout, 60*time.Second),
	}
}

type playResponse struct {
	URL  string                 `json:"url"`
	Subs []domain.SubtitleTrack `json:"subs"`
}

// ResolvePlay asks the playback API for the real media URL behind an
// identifier. A non-success status or a response without a URL maps to
// domain.ErrNotFound; transport failures map to domain.ErrUpstream.
func (c *Client) ResolvePlay(ctx context.Context, id string, withSubs bool) (domain.PlayInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()

	endpoint := c.playBaseURL + "/play?id=" + url.QueryEscape(id)
	if withSubs {
		endpoint += "&getSub=true"
	}

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return domain.PlayInfo{}, err
	}
	if status != http.StatusOK {
		return domain.PlayInfo{}, fmt.Errorf("%w: play API status %d for %s", domain.ErrNotFound, status, id)
	}

	var parsed playResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.PlayInfo{}, fmt.Errorf("%w: decode play response: %v", domain.ErrUpstream, err)
	}
	if strings.TrimSpace(parsed.URL) == "" {
		return domain.PlayInfo{}, fmt.Errorf("%w: play API returned no url for %s", domain.ErrNotFound, id)
	}
	return domain.PlayInfo{URL: parsed.URL, Subs: parsed.Subs}, nil
}

// CatalogRaw forwards query parameters verbatim to the catalog endpoint
// and returns the raw JSON body. Used both for the passthrough path and
// as the source for CatalogPage.
func (c *Client) CatalogRaw(ctx context.Context, query url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	endpoint := c.vodBaseURL + "/vod1/"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: catalog API status %d", domain.ErrUpstream, status)
	}
	return body, nil
}

// CatalogPage fetches and parses a catalog page.
func (c *Client) CatalogPage(ctx context.Context, query url.Values) (domain.CatalogPage, error) {
	body, err := c.CatalogRaw(ctx, query)
	if err != nil {
		return domain.CatalogPage{}, err
	}
	var page domain.CatalogPage
	if err := json.Unmarshal(body, &page); err != nil {
		return domain.CatalogPage{}, fmt.Errorf("%w: decode catalog page: %v", domain.ErrUpstream, err)
	}
	return page, nil
}

// Detail fetches the full catalog record for one item, used when a
// search page omits the inline play-list token.
func (c *Client) Detail(ctx context.Context, id string) (domain.CatalogItem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.detailTimeout)
	defer cancel()

	query := url.Values{}
	query.Set("ac", "videolist")
	query.Set("ids", id)

	endpoint := c.vodBaseURL + "/vod1/?" + query.Encode()
	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	if status != http.StatusOK {
		return domain.CatalogItem{}, fmt.Errorf("%w: detail API status %d for %s", domain.ErrUpstream, status, id)
	}

	var page domain.CatalogPage
	if err := json.Unmarshal(body, &page); err != nil {
		return domain.CatalogItem{}, fmt.Errorf("%w: decode detail page: %v", domain.ErrUpstream, err)
	}
	if len(page.List) == 0 {
		return domain.CatalogItem{}, fmt.Errorf("%w: empty detail page for %s", domain.ErrNotFound, id)
	}
	item := page.List[0]
	if strings.TrimSpace(item.VodPlayURL) == "" {
		return domain.CatalogItem{}, fmt.Errorf("%w: detail item %s has no play-list token", domain.ErrNotFound, id)
	}
	return item, nil
}

// OpenStream issues the media GET used by the byte proxy, carrying the
// client's Range header. The caller owns the response body and must
// close it; the request is bound to ctx so a client disconnect aborts
// the upstream transfer.
func (c *Client) OpenStream(ctx context.Context, mediaURL, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build stream request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if strings.TrimSpace(rangeHeader) == "" {
		rangeHeader = "bytes=0-"
	}
	req.Header.Set("Range", rangeHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read response: %v", domain.ErrUpstream, err)
	}
	return body, resp.StatusCode, nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
