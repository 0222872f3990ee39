package reconcile

import "lyrics-translator-go/models"

// SinglesThreshold is the largest track count still treated as a single or EP.
const SinglesThreshold = 5

// Classification is an artist's album list split into full albums and singles/EPs.
type Classification struct {
	FullAlbums    []models.AlbumListing
	SinglesAndEPs []models.AlbumListing
}

// SinglesTrackCount sums the track counts of the singles/EPs bucket.
func (c Classification) SinglesTrackCount() int {
	total := 0
	for _, a := range c.SinglesAndEPs {
		total += a.TotalTracks
	}
	return total
}

// Classify partitions albums on total_tracks > threshold, keeping input order in
// both buckets. A threshold below 1 uses SinglesThreshold. Sentinel listings
// are never real albums and are skipped.
func Classify(albums []models.AlbumListing, threshold int) Classification {
	if threshold < 1 {
		threshold = SinglesThreshold
	}
	c := Classification{
		FullAlbums:    []models.AlbumListing{},
		SinglesAndEPs: []models.AlbumListing{},
	}
	for _, a := range albums {
		if a.IsSentinel() {
			continue
		}
		if a.TotalTracks > threshold {
			c.FullAlbums = append(c.FullAlbums, a)
		} else {
			c.SinglesAndEPs = append(c.SinglesAndEPs, a)
		}
	}
	return c
}

// AllSongs is the sentinel listing that stands for the artist's whole catalog.
func AllSongs() models.AlbumListing {
	return models.AlbumListing{ID: models.AllSongsID, Name: "All Songs", Type: "all"}
}

// WithSentinels returns the listing shown to users: All Songs first, then
// Singles & EPs when that bucket is non-empty, then the full albums.
func WithSentinels(c Classification) []models.AlbumListing {
	out := make([]models.AlbumListing, 0, len(c.FullAlbums)+2)
	out = append(out, AllSongs())
	if len(c.SinglesAndEPs) > 0 {
		out = append(out, models.AlbumListing{
			ID:          models.SinglesID,
			Name:        "Singles & EPs",
			Type:        "compilation",
			TotalTracks: c.SinglesTrackCount(),
		})
	}
	return append(out, c.FullAlbums...)
}
