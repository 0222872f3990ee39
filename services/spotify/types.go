package spotify

// Artist is a music-catalog artist handle.
type Artist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

type image struct {
	URL string `json:"url"`
}

func firstImage(images []image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

type apiArtist struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []image `json:"images"`
}

type searchResponse struct {
	Artists struct {
		Items []apiArtist `json:"items"`
	} `json:"artists"`
}

type apiAlbum struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	AlbumType   string  `json:"album_type"`
	ReleaseDate string  `json:"release_date"`
	TotalTracks int     `json:"total_tracks"`
	Images      []image `json:"images"`
}

type albumsPage struct {
	Items []apiAlbum `json:"items"`
	Next  *string    `json:"next"`
}

type apiTrack struct {
	Name        string `json:"name"`
	TrackNumber int    `json:"track_number"`
	DurationMs  int    `json:"duration_ms"`
	Artists     []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

type tracksPage struct {
	Items []apiTrack `json:"items"`
	Next  *string    `json:"next"`
}
