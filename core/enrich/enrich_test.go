package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"crates/core/spotify"
	"crates/model"

	"github.com/google/go-cmp/cmp"
	spotifyapi "github.com/zmb3/spotify/v2"
)

type fakeMatcher struct {
	calls   []string
	results map[string]func() (*spotify.TrackMatch, error)
}

func (f *fakeMatcher) SearchTrackWithFeatures(_ context.Context, title, artist, token string) (*spotify.TrackMatch, error) {
	f.calls = append(f.calls, title+"|"+artist+"|"+token)
	if fn, ok := f.results[title]; ok {
		return fn()
	}
	return nil, spotify.ErrTrackNotFound
}

func hit(id string, tempo float32, mode int) func() (*spotify.TrackMatch, error) {
	return func() (*spotify.TrackMatch, error) {
		return &spotify.TrackMatch{
			Track: &spotifyapi.FullTrack{SimpleTrack: spotifyapi.SimpleTrack{ID: spotifyapi.ID(id)}},
			AudioFeatures: &spotifyapi.AudioFeatures{
				Tempo:        tempo,
				Key:          7,
				Mode:         spotifyapi.Numeric(mode),
				Energy:       0.5,
				Danceability: 0.25,
				Valence:      0.75,
			},
		}, nil
	}
}

func fail(err error) func() (*spotify.TrackMatch, error) {
	return func() (*spotify.TrackMatch, error) { return nil, err }
}

func testAlbum() model.Album {
	return model.Album{
		ID:     "album-1",
		Title:  "OK Computer",
		Artist: "Radiohead",
		Tracks: []model.Track{
			{Position: "A1", Title: "Airbag", Duration: "4:44"},
			{Position: "A2", Title: "Paranoid Android", Duration: "6:23", Artists: []string{"Radiohead"}},
			{Position: "A3", Title: "Subterranean Homesick Alien", Duration: "4:27"},
		},
	}
}

func TestEnrichAlbum(t *testing.T) {
	ctx := context.Background()

	t.Run("Middle Track Fails", func(t *testing.T) {
		m := &fakeMatcher{results: map[string]func() (*spotify.TrackMatch, error){
			"Airbag":                      hit("sp-1", 116, 1),
			"Paranoid Android":            fail(errors.New("spotify 503")),
			"Subterranean Homesick Alien": hit("sp-3", 110, 0),
		}}
		in := testAlbum()

		out, summary, err := NewEnricher(m, 0).EnrichAlbum(ctx, in, "user-token")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(out.Tracks) != len(in.Tracks) {
			t.Fatalf("expected %d tracks, got %d", len(in.Tracks), len(out.Tracks))
		}
		for i := range in.Tracks {
			if out.Tracks[i].Position != in.Tracks[i].Position {
				t.Errorf("track %d out of order: %s", i, out.Tracks[i].Position)
			}
		}

		if out.Tracks[0].SpotifyID != "sp-1" || *out.Tracks[0].Tempo != 116 || *out.Tracks[0].BPM != 116 || out.Tracks[0].Mode != "major" {
			t.Errorf("track 0 not enriched: %+v", out.Tracks[0])
		}
		if out.Tracks[2].SpotifyID != "sp-3" || out.Tracks[2].Mode != "minor" || *out.Tracks[2].Key != 7 {
			t.Errorf("track 2 not enriched: %+v", out.Tracks[2])
		}

		want, _ := json.Marshal(in.Tracks[1])
		got, _ := json.Marshal(out.Tracks[1])
		if string(want) != string(got) {
			t.Errorf("failed track changed:\nwant %s\ngot  %s", want, got)
		}

		if diff := cmp.Diff(Summary{Matched: 2, Failed: 1}, summary); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
		if in.Tracks[0].SpotifyID != "" {
			t.Error("input album must not be mutated")
		}
	})

	t.Run("Query Uses Album Artist", func(t *testing.T) {
		m := &fakeMatcher{}
		_, summary, err := NewEnricher(m, 0).EnrichAlbum(ctx, testAlbum(), "tok")
		if err != nil {
			t.Fatal(err)
		}
		if len(m.calls) != 3 || m.calls[1] != "Paranoid Android|Radiohead|tok" {
			t.Errorf("unexpected calls %v", m.calls)
		}
		if summary.Unmatched != 3 {
			t.Errorf("expected 3 unmatched, got %+v", summary)
		}
	})

	t.Run("Missing Features Leaves Track", func(t *testing.T) {
		m := &fakeMatcher{results: map[string]func() (*spotify.TrackMatch, error){
			"Airbag": fail(spotify.ErrNoFeatures),
		}}
		in := testAlbum()
		out, summary, _ := NewEnricher(m, 0).EnrichAlbum(ctx, in, "tok")
		if diff := cmp.Diff(in.Tracks[0], out.Tracks[0]); diff != "" {
			t.Errorf("track changed (-want +got):\n%s", diff)
		}
		if summary.Failed != 1 {
			t.Errorf("expected 1 failure, got %+v", summary)
		}
	})

	t.Run("Empty Tracklist", func(t *testing.T) {
		in := testAlbum()
		in.Tracks = nil
		out, summary, err := NewEnricher(&fakeMatcher{}, 0).EnrichAlbum(ctx, in, "tok")
		if err != nil || len(out.Tracks) != 0 || summary != (Summary{}) {
			t.Errorf("unexpected result %+v %+v %v", out.Tracks, summary, err)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		m := &fakeMatcher{results: map[string]func() (*spotify.TrackMatch, error){
			"Airbag": hit("sp-1", 100, 1),
			"Paranoid Android": func() (*spotify.TrackMatch, error) {
				cancel()
				return nil, context.Canceled
			},
		}}

		out, _, err := NewEnricher(m, 0).EnrichAlbum(cctx, testAlbum(), "tok")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(m.calls) != 2 {
			t.Errorf("expected processing to stop after 2 calls, got %d", len(m.calls))
		}
		if out.Tracks[0].SpotifyID != "" {
			t.Error("a cancelled run must return the original album")
		}
	})

	t.Run("Paced", func(t *testing.T) {
		start := time.Now()
		_, _, err := NewEnricher(&fakeMatcher{}, 20*time.Millisecond).EnrichAlbum(ctx, testAlbum(), "tok")
		if err != nil {
			t.Fatal(err)
		}
		if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
			t.Errorf("expected at least two intervals between three tracks, took %v", elapsed)
		}
	})
}
