// Package models holds the song and album shapes shared by the cache, the
// reconciler and the upstream clients.
package models

// Sentinel album ids. Synthetic listings are recognised by these ids on later lookups.
const (
	AllSongsID = "all"
	SinglesID  = "singles"
)

// MissingTrackNumber is the sort key used for tracks without a track number.
const MissingTrackNumber = 999

// TrackMatchCandidate is one catalog track waiting to be matched against the
// lyrics catalog. It is never persisted directly.
type TrackMatchCandidate struct {
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	TrackNumber *int     `json:"track_number,omitempty"`
	DurationMs  int      `json:"duration_ms,omitempty"`
}

// FirstArtist returns the first credited artist, or fallback when none is credited.
func (c TrackMatchCandidate) FirstArtist(fallback string) string {
	for _, a := range c.Artists {
		if a != "" {
			return a
		}
	}
	return fallback
}

// ReconciledSong is a catalog track resolved to a lyrics-catalog song.
type ReconciledSong struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	TrackNumber *int   `json:"track_number,omitempty"`
}

// SortKey returns the track number, or MissingTrackNumber when absent.
func (s ReconciledSong) SortKey() int {
	if s.TrackNumber == nil {
		return MissingTrackNumber
	}
	return *s.TrackNumber
}

// AlbumListing is one entry of an artist's album list.
type AlbumListing struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	TotalTracks int    `json:"total_tracks"`
	ReleaseDate string `json:"release_date,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// IsSentinel reports whether the listing is one of the synthetic entries.
func (a AlbumListing) IsSentinel() bool {
	return a.ID == AllSongsID || a.ID == SinglesID
}

// Artist is a lyrics-catalog artist as returned by artist search.
type Artist struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
