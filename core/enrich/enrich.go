package enrich

import (
	"context"
	"errors"
	"time"

	"crates/core/spotify"
	"crates/logger"
	"crates/model"

	"golang.org/x/time/rate"
)

// TrackMatcher finds a track by title and artist and returns its audio
// features, using the caller's Spotify token.
type TrackMatcher interface {
	SearchTrackWithFeatures(ctx context.Context, title, artist, userAccessToken string) (*spotify.TrackMatch, error)
}

// Summary counts per-track outcomes of one enrichment run.
type Summary struct {
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
	Failed    int `json:"failed"`
}

// Enricher attaches Spotify audio features to an album's tracks, one track
// at a time.
type Enricher struct {
	matcher  TrackMatcher
	interval time.Duration
}

func NewEnricher(matcher TrackMatcher, interval time.Duration) *Enricher {
	return &Enricher{matcher: matcher, interval: interval}
}

// EnrichAlbum returns a copy of album whose tracks carry audio features
// where a match was found. A track whose lookup fails is returned as it
// was. If ctx is cancelled the run stops and the context error is returned.
func (e *Enricher) EnrichAlbum(ctx context.Context, album model.Album, userAccessToken string) (model.Album, Summary, error) {
	var summary Summary
	start := time.Now()
	out := album
	out.Tracks = model.CloneTracks(album.Tracks)

	limit := rate.Inf
	if e.interval > 0 {
		limit = rate.Every(e.interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	for i, track := range out.Tracks {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return album, summary, ctxErr
			}
			return album, summary, err
		}

		match, err := e.matcher.SearchTrackWithFeatures(ctx, track.Title, album.Artist, userAccessToken)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return album, summary, ctxErr
			}
			if errors.Is(err, spotify.ErrTrackNotFound) {
				summary.Unmatched++
				continue
			}
			summary.Failed++
			logger.Warn("[EnrichAlbum] track lookup failed",
				logger.String("albumId", album.ID),
				logger.String("position", track.Position),
				logger.String("title", track.Title),
				logger.ErrorField(err))
			continue
		}
		if match == nil || match.Track == nil || match.AudioFeatures == nil {
			summary.Failed++
			continue
		}

		out.Tracks[i] = MergeFeatures(track, match)
		summary.Matched++
	}

	logger.Info("[EnrichAlbum] done",
		logger.String("albumId", album.ID),
		logger.Int("tracks", len(out.Tracks)),
		logger.Int("matched", summary.Matched),
		logger.Int("unmatched", summary.Unmatched),
		logger.Int("failed", summary.Failed),
		logger.Duration("elapsed", time.Since(start)))
	return out, summary, nil
}

// MergeFeatures returns track with the match's id and audio features set.
func MergeFeatures(track model.Track, match *spotify.TrackMatch) model.Track {
	f := match.AudioFeatures
	tempo := float64(f.Tempo)
	bpm := tempo
	key := int(f.Key)
	energy := float64(f.Energy)
	danceability := float64(f.Danceability)
	acousticness := float64(f.Acousticness)
	instrumentalness := float64(f.Instrumentalness)
	valence := float64(f.Valence)

	track.SpotifyID = string(match.Track.ID)
	track.Tempo = &tempo
	track.BPM = &bpm
	track.Key = &key
	track.Mode = "minor"
	if f.Mode == 1 {
		track.Mode = "major"
	}
	track.Energy = &energy
	track.Danceability = &danceability
	track.Acousticness = &acousticness
	track.Instrumentalness = &instrumentalness
	track.Valence = &valence
	return track
}
