package playlist

import (
	"testing"

	"github.com/yenkj/vod/internal/domain"
)

func TestParseTwoGroupsThreeEpisodesEach(t *testing.T) {
	token := "S01E01$id-1#S01E02$id-2#S01E03$id-3$$$" +
		"S02E01$id-4#S02E02$id-5#S02E03$id-6"

	got := Parse(token, true)
	if len(got) != 6 {
		t.Fatalf("expected 6 episodes, got %d", len(got))
	}
	wantIDs := []string{"id-1", "id-2", "id-3", "id-4", "id-5", "id-6"}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Fatalf("episode %d: id = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestParseDropsMalformedEntries(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing identifier", "S01E01$a#justatitle#S01E02$b", 2},
		{"too many fields", "S01E01$a$extra#S01E02$b", 1},
		{"empty token", "", 0},
		{"whitespace token", "   ", 0},
		{"only delimiters", "#$$$#", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.token, true)
			if len(got) != tc.want {
				t.Fatalf("len = %d, want %d (%+v)", len(got), tc.want, got)
			}
		})
	}
}

func TestNormalizeTitleSeries(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"with size", "Show.Name.S02E05.2160p(1.2GB)", "S02E05(1.2GB)"},
		{"already normalized", "S02E05(1.2GB)", "S02E05(1.2GB)"},
		{"no size", "Show.S2E5.WEB-DL", "S02E05"},
		{"lowercase marker", "show.s03e12.x265", "S03E12"},
		{"three digit episode", "S01E100", "S01E100"},
		{"no marker keeps raw title", "特别篇花絮", "特别篇花絮"},
		{"mb size", "S01E01(850MB)", "S01E01(850MB)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeTitle(tc.title, true); got != tc.want {
				t.Fatalf("NormalizeTitle(%q) = %q, want %q", tc.title, got, tc.want)
			}
		})
	}
}

func TestNormalizeTitleMovie(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"no size marker", "Some.Movie.2023.2160p.BluRay", "HD高清"},
		{"with size marker", "Some.Movie.2023(4.7GB)", "HD高清(4.7GB)"},
		{"kb size", "trailer(900KB)", "HD高清(900KB)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeTitle(tc.title, false); got != tc.want {
				t.Fatalf("NormalizeTitle(%q) = %q, want %q", tc.title, got, tc.want)
			}
		})
	}
}

func TestJoinAndEntry(t *testing.T) {
	pairs := []string{
		Entry("S01E01", "http://gw/r/id-1.mkv"),
		Entry("S01E02", "http://gw/r/id-2.mkv"),
	}
	got := Join(pairs)
	want := "S01E01$http://gw/r/id-1.mkv#S01E02$http://gw/r/id-2.mkv"
	if got != want {
		t.Fatalf("Join = %q, want %q", got, want)
	}

	// Round trip through Parse preserves order and shape.
	parsed := Parse(got, true)
	if len(parsed) != 2 {
		t.Fatalf("round trip parse: len = %d, want 2", len(parsed))
	}
	if parsed[0] != (domain.Episode{Title: "S01E01", ID: "http://gw/r/id-1.mkv"}) {
		t.Fatalf("unexpected first episode: %+v", parsed[0])
	}
}

func TestIsSeries(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"tv directory", "香蕉:/媒体库/电视节目/某剧;\n简介内容", true},
		{"movie directory", "香蕉:/媒体库/电影/某片;\n简介内容", false},
		{"no marker", "纯简介,没有路径", false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSeries(tc.content); got != tc.want {
				t.Fatalf("IsSeries(%q) = %v, want %v", tc.content, got, tc.want)
			}
		})
	}
}

func TestExtractContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"strips path line", "香蕉:/媒体库/电影/某片;\n正片简介", "正片简介"},
		{"no path line", "正片简介", "正片简介"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractContent(tc.content); got != tc.want {
				t.Fatalf("ExtractContent(%q) = %q, want %q", tc.content, got, tc.want)
			}
		})
	}
}
