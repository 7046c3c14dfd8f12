// Package playlist decodes the compact serialized play-list tokens the
// catalog API embeds in vod_play_url and normalizes episode titles.
package playlist

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yenkj/vod/internal/domain"
)

const (
	groupDelimiter   = "$$$"
	episodeDelimiter = "#"
	fieldDelimiter   = "$"

	// movieLabel replaces descriptive movie titles; only the optional
	// size marker survives.
	movieLabel = "HD高清"
)

var (
	episodePattern = regexp.MustCompile(`(?i)S(\d+)E(\d+)`)
	sizePattern    = regexp.MustCompile(`(?i)\(([^)]+?(?:GB|MB|KB))\)`)

	seriesDirPattern = regexp.MustCompile(`香蕉:(.+?);`)
)

// Parse splits a play-list token into ordered (title, identifier)
// pairs. Groups are separated by "$$$", episodes by "#", and each
// episode is "title$identifier". Entries that do not split into exactly
// two fields are dropped; malformed input degrades to a shorter list
// rather than an error.
func Parse(token string, isSeries bool) []domain.Episode {
	if strings.TrimSpace(token) == "" {
		return nil
	}

	var episodes []domain.Episode
	for _, group := range strings.Split(token, groupDelimiter) {
		for _, raw := range strings.Split(group, episodeDelimiter) {
			parts := strings.Split(raw, fieldDelimiter)
			if len(parts) != 2 {
				continue
			}
			episodes = append(episodes, domain.Episode{
				Title: NormalizeTitle(parts[0], isSeries),
				ID:    parts[1],
			})
		}
	}
	return episodes
}

// NormalizeTitle rewrites an episode title. Series titles carrying an
// S{season}E{episode} marker become zero-padded "SxxEyy" with the size
// suffix re-appended when present; titles without the marker are kept
// as is. Movie titles collapse to a fixed label plus the size suffix.
func NormalizeTitle(title string, isSeries bool) string {
	size := ""
	if m := sizePattern.FindStringSubmatch(title); m != nil {
		size = m[1]
	}

	if isSeries {
		m := episodePattern.FindStringSubmatch(title)
		if m == nil {
			return title
		}
		season := zeroPad(m[1])
		episode := zeroPad(m[2])
		if size != "" {
			return fmt.Sprintf("S%sE%s(%s)", season, episode, size)
		}
		return fmt.Sprintf("S%sE%s", season, episode)
	}

	if size != "" {
		return fmt.Sprintf("%s(%s)", movieLabel, size)
	}
	return movieLabel
}

// Join serializes title$url pairs back into the single-group manifest
// form the client player consumes.
func Join(pairs []string) string {
	return strings.Join(pairs, episodeDelimiter)
}

// Entry renders one manifest entry.
func Entry(title, url string) string {
	return title + fieldDelimiter + url
}

// IsSeries reports whether a catalog item is a TV show, judged by the
// library directory path embedded in vod_content.
func IsSeries(vodContent string) bool {
	m := seriesDirPattern.FindStringSubmatch(vodContent)
	if m == nil {
		return false
	}
	return strings.Contains(m[1], "/电视节目/")
}

// ExtractContent strips the machine-readable first line (directory
// path and friends) from vod_content, keeping the human description.
func ExtractContent(vodContent string) string {
	if vodContent == "" {
		return ""
	}
	parts := strings.Split(vodContent, ";\n")
	if len(parts) > 1 {
		return strings.TrimSpace(strings.Join(parts[1:], "\n"))
	}
	return vodContent
}

func zeroPad(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}
