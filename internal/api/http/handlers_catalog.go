package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yenkj/vod/internal/catalog"
	"github.com/yenkj/vod/internal/domain"
	"github.com/yenkj/vod/internal/media"
)

// handleCatalog serves GET /?ac=&wd=&ids=...: a passthrough to the
// catalog API. Pages are transformed through the play-list machinery
// only for videolist search/detail requests; everything else is relayed
// as is, after routing third-party image hosts through the local proxy
// for browser clients.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	if s.catalogAPI == nil {
		writeError(w, http.StatusNotFound, "not_found", "catalog not configured")
		return
	}

	params := r.URL.Query()
	raw, err := s.catalogAPI.CatalogRaw(r.Context(), params)
	if err != nil {
		if requestAborted(r, err) {
			return
		}
		s.logger.Error("catalog fetch failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}

	payload := raw
	if s.shouldTransform(params.Get("ac"), params.Get("wd"), params.Get("ids")) {
		var page domain.CatalogPage
		if unmarshalErr := json.Unmarshal(raw, &page); unmarshalErr != nil {
			s.logger.Warn("catalog page not parseable, relaying verbatim",
				slog.String("error", unmarshalErr.Error()),
			)
		} else if len(page.List) > 0 {
			transformed := s.transformer.TransformPage(r.Context(), page)
			if encoded, marshalErr := json.Marshal(transformed); marshalErr == nil {
				payload = encoded
			}
		}
	}

	if media.IsBrowserClient(r.UserAgent()) {
		payload = []byte(catalog.RewriteImageHosts(string(payload), s.publicBaseURL))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) shouldTransform(ac, wd, ids string) bool {
	return s.transformer != nil && ac == "videolist" && (wd != "" || ids != "")
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	CacheSize int    `json:"cacheSize"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cacheSize := 0
	if s.cache != nil {
		cacheSize = s.cache.Len()
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UnixMilli(),
		CacheSize: cacheSize,
	})
}
