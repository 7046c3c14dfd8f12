package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexString unmarshals both JSON strings and numbers. The catalog API
// is loose about vod_id and limit types across deployments.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

func (f FlexString) String() string { return string(f) }

// CatalogItem is one entry of a catalog search/detail page. Only the
// fields the transform pass reads and re-emits are modeled; untouched
// pages are relayed as raw bytes and never pass through this type.
type CatalogItem struct {
	VodID         FlexString      `json:"vod_id"`
	VodName       string          `json:"vod_name"`
	VodPic        string          `json:"vod_pic"`
	VodRemarks    string          `json:"vod_remarks,omitempty"`
	VodYear       FlexString      `json:"vod_year,omitempty"`
	VodArea       string          `json:"vod_area,omitempty"`
	VodLang       string          `json:"vod_lang,omitempty"`
	VodActor      string          `json:"vod_actor,omitempty"`
	VodDirector   string          `json:"vod_director,omitempty"`
	VodContent    string          `json:"vod_content,omitempty"`
	VodDoubanID   FlexString      `json:"vod_douban_id,omitempty"`
	DBID          FlexString      `json:"dbid,omitempty"`
	TypeName      string          `json:"type_name,omitempty"`
	VodPlayFrom   string          `json:"vod_play_from,omitempty"`
	VodPlayURL    string          `json:"vod_play_url"`
	VodPlayServer string          `json:"vod_play_server,omitempty"`
	VodPlayNote   string          `json:"vod_play_note"`
	VodPlaySubs   []SubtitleTrack `json:"vod_play_subs,omitempty"`
}

// CatalogPage is the envelope the catalog API wraps list responses in.
type CatalogPage struct {
	Code      int           `json:"code"`
	Msg       string        `json:"msg"`
	Page      FlexString    `json:"page"`
	PageCount FlexString    `json:"pagecount"`
	Limit     FlexString    `json:"limit"`
	Total     int           `json:"total"`
	List      []CatalogItem `json:"list"`
}

// PageOrDefault returns the page number, defaulting to 1 the way the
// transform envelope does.
func (p CatalogPage) PageOrDefault() FlexString {
	if p.Page == "" || p.Page == "0" {
		return "1"
	}
	return p.Page
}

// PageCountOrDefault returns pagecount, defaulting to 1.
func (p CatalogPage) PageCountOrDefault() FlexString {
	if p.PageCount == "" || p.PageCount == "0" {
		return "1"
	}
	return p.PageCount
}

// LimitOrDefault returns the page size, defaulting to "20".
func (p CatalogPage) LimitOrDefault() FlexString {
	if p.Limit == "" {
		return "20"
	}
	return p.Limit
}

// Itoa is a small helper for FlexString construction from ints.
func Itoa(n int) FlexString { return FlexString(strconv.Itoa(n)) }
