package discogs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"crates/cache"
	"crates/config"
	"crates/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/go-cmp/cmp"
)

const releaseJSON = `{
  "id": 123,
  "title": "OK Computer",
  "year": 1997,
  "country": "UK",
  "genres": ["Electronic", "Rock"],
  "styles": ["Alternative Rock"],
  "master_id": 21491,
  "status": "Accepted",
  "artists": [{"name": "Radiohead", "join": ""}],
  "formats": [{"name": "Vinyl", "descriptions": ["LP", "Album"]}],
  "labels": [{"name": "Parlophone", "catno": "NODATA 02"}],
  "identifiers": [{"type": "Matrix / Runout", "value": "X"}, {"type": "Barcode", "value": "724385522925"}],
  "images": [{"type": "primary", "uri150": "https://img.example/150.jpg"}],
  "tracklist": [
    {"position": "", "title": "Side A", "duration": "", "type_": "heading"},
    {"position": "A1", "title": "Airbag", "duration": "4:44", "type_": "track"},
    {"position": "A2", "title": "Paranoid Android", "duration": "6:23", "type_": "track"}
  ]
}`

type upstream struct {
	*httptest.Server
	hits    int32
	lastURL atomic.Value
	lastUA  atomic.Value
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&u.hits, 1)
		u.lastURL.Store(r.URL.String())
		u.lastUA.Store(r.Header.Get("User-Agent"))

		switch r.URL.Path {
		case "/releases/123":
			w.Write([]byte(releaseJSON))
		case "/releases/404":
			http.NotFound(w, r)
		case "/database/search":
			w.Write([]byte(`{"pagination":{"page":1},"results":[]}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(u.Close)
	return u
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		DiscogsBaseURL:        baseURL,
		DiscogsConsumerKey:    "ck",
		DiscogsConsumerSecret: "cs",
		DiscogsUserAgent:      "CratesApp/1.0",
	}
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Injects Credentials", func(t *testing.T) {
		up := newUpstream(t)
		c := NewClient(testConfig(up.URL), up.Client(), nil)

		if _, err := c.Search(ctx, "radiohead", url.Values{"key": {"spoofed"}}); err != nil {
			t.Fatal(err)
		}
		u, _ := url.Parse(up.lastURL.Load().(string))
		q := u.Query()
		if q.Get("key") != "ck" || q.Get("secret") != "cs" {
			t.Errorf("credentials not injected: %v", q)
		}
		if q.Get("type") != "release" || q.Get("page") != "1" || q.Get("per_page") != "20" {
			t.Errorf("defaults not applied: %v", q)
		}
		if up.lastUA.Load().(string) != "CratesApp/1.0" {
			t.Errorf("unexpected user agent %v", up.lastUA.Load())
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		up := newUpstream(t)
		c := NewClient(testConfig(up.URL), up.Client(), nil)
		if _, err := c.Release(ctx, "404"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Upstream Error", func(t *testing.T) {
		up := newUpstream(t)
		c := NewClient(testConfig(up.URL), up.Client(), nil)
		_, err := c.Label(ctx, "1")
		var ue *UpstreamError
		if !errors.As(err, &ue) || ue.Status != http.StatusBadGateway {
			t.Errorf("expected UpstreamError 502, got %v", err)
		}
	})

	t.Run("Cached", func(t *testing.T) {
		up := newUpstream(t)
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		c := NewClient(testConfig(up.URL), up.Client(), cache.NewResponseCache(rdb, "discogs:", time.Minute))
		for i := 0; i < 3; i++ {
			if _, err := c.Release(ctx, "123"); err != nil {
				t.Fatal(err)
			}
		}
		if hits := atomic.LoadInt32(&up.hits); hits != 1 {
			t.Errorf("expected one upstream hit, got %d", hits)
		}
		for _, k := range mr.Keys() {
			if containsSecret(k) {
				t.Errorf("cache key leaks credentials: %s", k)
			}
		}
	})
}

func containsSecret(s string) bool {
	u, err := url.Parse(s[len("discogs:"):])
	if err != nil {
		return false
	}
	return u.Query().Get("secret") != "" || u.Query().Get("key") != ""
}

func TestReleaseToAlbum(t *testing.T) {
	up := newUpstream(t)
	c := NewClient(testConfig(up.URL), up.Client(), nil)

	rel, err := c.ReleaseDetails(context.Background(), 123)
	if err != nil {
		t.Fatal(err)
	}

	want := model.Album{
		DiscogsID: 123,
		Title:     "OK Computer",
		Artist:    "Radiohead",
		Year:      "1997",
		Thumb:     "https://img.example/150.jpg",
		Country:   "UK",
		Genre:     []string{"Electronic", "Rock"},
		Style:     []string{"Alternative Rock"},
		Format:    []string{"Vinyl", "LP", "Album"},
		Label:     "Parlophone",
		CatNo:     "NODATA 02",
		Barcode:   "724385522925",
		MasterID:  21491,
		Status:    "Accepted",
		Tracks: []model.Track{
			{Position: "A1", Title: "Airbag", Duration: "4:44"},
			{Position: "A2", Title: "Paranoid Android", Duration: "6:23"},
		},
	}
	if diff := cmp.Diff(want, rel.ToAlbum()); diff != "" {
		t.Errorf("album mismatch (-want +got):\n%s", diff)
	}
}

func TestArtistName(t *testing.T) {
	tests := []struct {
		name    string
		artists []string
		joins   []string
		want    string
	}{
		{"Single", []string{"Radiohead"}, []string{""}, "Radiohead"},
		{"Disambiguated", []string{"Nirvana (2)"}, []string{""}, "Nirvana"},
		{"Joined", []string{"Simon", "Garfunkel"}, []string{"&", ""}, "Simon & Garfunkel"},
		{"Comma", []string{"A", "B", "C"}, []string{",", ",", ""}, "A, B, C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Release
			for i, name := range tt.artists {
				r.Artists = append(r.Artists, struct {
					Name string `json:"name"`
					Join string `json:"join"`
				}{Name: name, Join: tt.joins[i]})
			}
			if got := r.ArtistName(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
