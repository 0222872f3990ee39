package genius

// SongHit is a lyrics-catalog song as returned by search and song lookups.
type SongHit struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	ArtistID       int    `json:"artist_id"`
	ArtistName     string `json:"artist_name"`
	ArtistImageURL string `json:"artist_image_url,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
}

// LyricsPage is the text scraped for one song.
type LyricsPage struct {
	Title  string
	Artist string
	Lyrics string
}

type apiArtist struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

type apiSong struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	SongArtImageURL string    `json:"song_art_image_url"`
	PrimaryArtist   apiArtist `json:"primary_artist"`
}

func (s apiSong) hit() SongHit {
	return SongHit{
		ID:             s.ID,
		Title:          s.Title,
		URL:            s.URL,
		ArtistID:       s.PrimaryArtist.ID,
		ArtistName:     s.PrimaryArtist.Name,
		ArtistImageURL: s.PrimaryArtist.ImageURL,
		ImageURL:       s.SongArtImageURL,
	}
}

type searchResponse struct {
	Response struct {
		Hits []struct {
			Type   string  `json:"type"`
			Result apiSong `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

type songResponse struct {
	Response struct {
		Song apiSong `json:"song"`
	} `json:"response"`
}

type artistResponse struct {
	Response struct {
		Artist apiArtist `json:"artist"`
	} `json:"response"`
}

type artistSongsResponse struct {
	Response struct {
		Songs    []apiSong `json:"songs"`
		NextPage *int      `json:"next_page"`
	} `json:"response"`
}
