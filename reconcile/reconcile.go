// Package reconcile matches a music catalog's track listing against the lyrics
// catalog's song index and classifies an artist's albums.
package reconcile

import (
	"context"
	"sort"
	"strings"
	"time"

	"lyrics-translator-go/logcolors"
	"lyrics-translator-go/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// LookupFunc resolves a free-text query to a lyrics-catalog song.
// A nil song or a non-nil error both mean "no match" for that track.
type LookupFunc func(ctx context.Context, query string) (*models.ReconciledSong, error)

// Mode selects how a track listing was assembled.
type Mode int

const (
	// ModeAlbum reconciles one album's listing and keeps track numbers.
	ModeAlbum Mode = iota
	// ModeAggregate reconciles the concatenated listings of several singles/EPs.
	// Track numbers restart on every sub-album, so they are dropped and the
	// concatenation order is kept.
	ModeAggregate
)

func (m Mode) String() string {
	if m == ModeAggregate {
		return "aggregate"
	}
	return "album"
}

const defaultWorkers = 4

// Options tunes a reconciliation run.
type Options struct {
	// Workers bounds concurrent lookups. Values below 1 use the default.
	Workers int
	// Limiter paces lookups against the lyrics catalog. Optional.
	Limiter *rate.Limiter
	Mode    Mode
}

// Reconcile resolves every track through lookup and returns the matched songs,
// one per lyrics-catalog id. The first track resolving to an id wins; later
// duplicates are dropped. Lookups run concurrently but the merge walks results in
// input order, so the output does not depend on scheduling.
//
// Ordering by track number applies only in ModeAlbum. ModeAggregate drops track
// numbers and keeps the concatenation order of its sub-albums.
//
// Only cancellation of ctx is reported as an error; a failed lookup just leaves
// its track unmatched.
func Reconcile(ctx context.Context, tracks []models.TrackMatchCandidate, artistHint string, lookup LookupFunc, opts Options) ([]models.ReconciledSong, error) {
	songs := []models.ReconciledSong{}
	if len(tracks) == 0 {
		return songs, nil
	}

	workers := opts.Workers
	if workers < 1 {
		workers = defaultWorkers
	}

	start := time.Now()
	results := make([]*models.ReconciledSong, len(tracks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, track := range tracks {
		query := Query(track, artistHint)
		if query == "" {
			continue
		}
		g.Go(func() error {
			if opts.Limiter != nil {
				if err := opts.Limiter.Wait(gctx); err != nil {
					return err
				}
			}
			song, err := lookup(gctx, query)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Debugf("%s Lookup failed for %q: %v", logcolors.LogReconcile, query, err)
				return nil
			}
			results[i] = song
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(results))
	numbered := false
	for i, song := range results {
		if song == nil || song.ID <= 0 {
			continue
		}
		if _, dup := seen[song.ID]; dup {
			continue
		}
		seen[song.ID] = struct{}{}

		matched := models.ReconciledSong{
			ID:     song.ID,
			Title:  song.Title,
			Artist: song.Artist,
		}
		if opts.Mode == ModeAlbum && tracks[i].TrackNumber != nil {
			matched.TrackNumber = models.IntPtr(*tracks[i].TrackNumber)
			numbered = true
		}
		songs = append(songs, matched)
	}

	if numbered {
		sort.SliceStable(songs, func(a, b int) bool {
			return songs[a].SortKey() < songs[b].SortKey()
		})
	}

	log.Infof("%s Matched %d/%d tracks (%s mode) in %v", logcolors.LogReconcile, len(songs), len(tracks), opts.Mode, time.Since(start).Round(time.Millisecond))
	return songs, nil
}

// Query builds the lyrics-catalog search text for a track: its name followed by
// its first credited artist, or artistHint when none is credited.
func Query(track models.TrackMatchCandidate, artistHint string) string {
	return strings.TrimSpace(strings.TrimSpace(track.Name) + " " + strings.TrimSpace(track.FirstArtist(artistHint)))
}
