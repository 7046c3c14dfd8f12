package domain

// SubtitleTrack is one external subtitle attached to a playable file,
// as reported by the playback API.
type SubtitleTrack struct {
	Lang string `json:"lang"`
	Ext  string `json:"ext,omitempty"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// PlayInfo is the normalized answer of the identifier-resolution API.
type PlayInfo struct {
	URL  string
	Subs []SubtitleTrack
}

// Episode is one (title, identifier) pair decoded from a play-list
// token. The identifier is opaque; it names a single playable file.
type Episode struct {
	Title string
	ID    string
}
