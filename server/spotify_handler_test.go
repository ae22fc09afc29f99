package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"crates/core/enrich"
	"crates/core/spotify"
	"crates/model"

	"golang.org/x/oauth2"
)

// newSpotifyUpstream answers the Web API calls the proxy makes. Searches
// whose query starts with "Nothing" return no tracks.
func newSpotifyUpstream(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		switch strings.TrimPrefix(r.URL.Path, "/v1/") {
		case "search":
			q := r.URL.Query().Get("q")
			if strings.HasPrefix(q, "Nothing") {
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"tracks": map[string]interface{}{"items": []interface{}{}}})
				return
			}
			title := strings.SplitN(q, " artist:", 2)[0]
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"tracks": map[string]interface{}{"items": []interface{}{
				map[string]interface{}{"id": "sp-" + strings.ReplaceAll(title, " ", "-"), "name": title},
			}}})
		case "audio-features":
			var out []interface{}
			for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
				out = append(out, map[string]interface{}{"id": id, "tempo": 120.0, "key": 5, "mode": 1, "energy": 0.5})
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"audio_features": out})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": map[string]interface{}{"status": 404, "message": "Not found"}})
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newSpotifyEnv(t *testing.T) (*testEnv, *int32) {
	t.Helper()
	upstream, calls := newSpotifyUpstream(t)
	cfg := spotify.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		APIBaseURL:   upstream.URL + "/v1",
		AuthURL:      upstream.URL + "/authorize",
		TokenURL:     upstream.URL + "/api/token",
	}
	tokens := spotify.NewTokenCache(func(context.Context) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "app-token", TokenType: "Bearer"}, nil
	})
	svc := spotify.NewService(cfg, tokens, upstream.Client())
	return newTestEnv(t, Deps{Spotify: svc, Enricher: enrich.NewEnricher(svc, 0)}), calls
}

func TestSpotifyRoutes(t *testing.T) {
	env, calls := newSpotifyEnv(t)

	t.Run("Search Track With Features", func(t *testing.T) {
		body := map[string]string{"title": "Airbag", "artist": "Radiohead", "userAccessToken": "user-token"}
		rec := env.do(t, http.MethodPost, "/api/spotify/search-track-with-features", body, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		var resp struct {
			Track struct {
				ID string `json:"id"`
			} `json:"track"`
			AudioFeatures struct {
				Tempo float64 `json:"tempo"`
			} `json:"audioFeatures"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Track.ID != "sp-Airbag" || resp.AudioFeatures.Tempo != 120 {
			t.Errorf("unexpected match %+v", resp)
		}
	})

	t.Run("Search Track With Features No Match", func(t *testing.T) {
		body := map[string]string{"title": "Nothing Here", "artist": "Nobody", "userAccessToken": "user-token"}
		rec := env.do(t, http.MethodPost, "/api/spotify/search-track-with-features", body, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("Search Track With Features Requires Token", func(t *testing.T) {
		before := atomic.LoadInt32(calls)
		body := map[string]string{"title": "Airbag", "artist": "Radiohead"}
		rec := env.do(t, http.MethodPost, "/api/spotify/search-track-with-features", body, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if atomic.LoadInt32(calls) != before {
			t.Error("expected no upstream call")
		}
	})

	t.Run("Track Not Found", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/spotify/track/missing", nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("Too Many Audio Feature IDs", func(t *testing.T) {
		ids := make([]string, spotify.MaxAudioFeatureIDs+1)
		for i := range ids {
			ids[i] = "id"
		}
		rec := env.do(t, http.MethodGet, "/api/spotify/tracks/audio-features?ids="+strings.Join(ids, ","), nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Enrich Album", func(t *testing.T) {
		album := model.Album{
			Title:     "OK Computer",
			Artist:    "Radiohead",
			DiscogsID: 1,
			Tracks: []model.Track{
				{Position: "A1", Title: "Airbag"},
				{Position: "A2", Title: "Nothing Matches"},
			},
		}
		body := map[string]interface{}{"album": album, "userAccessToken": "user-token"}
		rec := env.do(t, http.MethodPost, "/api/spotify/enrich-album", body, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		var resp struct {
			Album   model.Album    `json:"album"`
			Summary enrich.Summary `json:"summary"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Summary != (enrich.Summary{Matched: 1, Unmatched: 1}) {
			t.Errorf("unexpected summary %+v", resp.Summary)
		}
		if len(resp.Album.Tracks) != 2 || resp.Album.Tracks[0].Mode != "major" || resp.Album.Tracks[1].SpotifyID != "" {
			t.Errorf("unexpected tracks %+v", resp.Album.Tracks)
		}
	})

	t.Run("Enrich Album Requires Token", func(t *testing.T) {
		body := map[string]interface{}{"album": model.Album{Title: "OK Computer", Artist: "Radiohead"}}
		rec := env.do(t, http.MethodPost, "/api/spotify/enrich-album", body, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Enrich Album Cancelled", func(t *testing.T) {
		album := model.Album{Title: "OK Computer", Artist: "Radiohead", Tracks: []model.Track{{Position: "A1", Title: "Airbag"}}}
		raw, _ := json.Marshal(map[string]interface{}{"album": album, "userAccessToken": "user-token"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/api/spotify/enrich-album", strings.NewReader(string(raw))).WithContext(ctx)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		if rec.Body.Len() != 0 {
			t.Errorf("expected no body for a cancelled request, got %s", rec.Body)
		}
	})

	t.Run("Stored Album Enrichment", func(t *testing.T) {
		token := env.signUp(t, "spin@crates.io")
		album := model.Album{
			Title: "OK Computer", Artist: "Radiohead", DiscogsID: 42,
			Tracks: []model.Track{{Position: "A1", Title: "Airbag"}},
		}
		rec := env.do(t, http.MethodPost, "/collection/album", album, token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
		}
		var created model.Album
		if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
			t.Fatal(err)
		}

		rec = env.do(t, http.MethodPost, "/collection/album/"+created.ID+"/enrich", map[string]string{"userAccessToken": "user-token"}, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		rec = env.do(t, http.MethodGet, "/collection/album/"+created.ID, nil, token)
		var stored model.Album
		if err := json.NewDecoder(rec.Body).Decode(&stored); err != nil {
			t.Fatal(err)
		}
		if stored.Tracks[0].SpotifyID != "sp-Airbag" {
			t.Errorf("expected persisted spotify id, got %+v", stored.Tracks[0])
		}
	})
}
