package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"crates/config"
	"crates/logger"

	"github.com/google/uuid"
	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// MaxAudioFeatureIDs is the most ids one audio-features request accepts.
const MaxAudioFeatureIDs = 100

var (
	ErrTrackNotFound = errors.New("track not found")
	ErrNoFeatures    = errors.New("no audio features for track")
	ErrTooManyIDs    = errors.New("Maximum 100 track IDs allowed")
)

// Config holds the application credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIBaseURL   string
	AuthURL      string
	TokenURL     string
}

// ConfigFrom extracts the Spotify settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		RedirectURI:  cfg.SpotifyRedirectURI,
		APIBaseURL:   cfg.SpotifyAPIBaseURL,
		AuthURL:      cfg.SpotifyAuthURL,
		TokenURL:     cfg.SpotifyTokenURL,
	}
}

// TokenPair is what the OAuth endpoints hand back to the browser. It is
// never stored server side.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// TrackMatch is a search hit, with audio features when the caller had a
// user token.
type TrackMatch struct {
	Track         *spotifyapi.FullTrack     `json:"track"`
	AudioFeatures *spotifyapi.AudioFeatures `json:"audioFeatures"`
	Message       string                    `json:"message,omitempty"`
}

// TrackWithFeatures pairs a track with its audio features.
type TrackWithFeatures struct {
	Track         *spotifyapi.FullTrack     `json:"track"`
	AudioFeatures *spotifyapi.AudioFeatures `json:"audioFeatures"`
}

// Service proxies the Spotify Web API. Anonymous lookups use the
// client-credentials token cache; audio features for enrichment use the
// caller's OAuth token.
type Service struct {
	oauth   *oauth2.Config
	tokens  *TokenCache
	baseURL string
	http    *http.Client
	anon    *spotifyapi.Client
}

// NewService builds a Service. httpClient may be nil.
func NewService(cfg Config, tokens *TokenCache, httpClient *http.Client) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	base := cfg.APIBaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	s := &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{spotifyauth.ScopeUserReadPrivate, spotifyauth.ScopeUserReadEmail},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		tokens:  tokens,
		baseURL: base,
		http:    httpClient,
	}
	s.anon = s.clientFor(tokens)
	return s
}

func (s *Service) clientFor(src oauth2.TokenSource) *spotifyapi.Client {
	hc := &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: s.http.Transport},
		Timeout:   s.http.Timeout,
	}
	return spotifyapi.New(hc, spotifyapi.WithBaseURL(s.baseURL))
}

func (s *Service) userClient(accessToken string) *spotifyapi.Client {
	return s.clientFor(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
}

func (s *Service) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.http)
}

// AuthURL returns the authorization-code URL the browser is sent to.
func (s *Service) AuthURL() string {
	return s.oauth.AuthCodeURL(uuid.NewString(), oauth2.SetAuthURLParam("show_dialog", "true"))
}

// Exchange trades an authorization code for a user token pair.
func (s *Service) Exchange(ctx context.Context, code string) (*TokenPair, error) {
	tok, err := s.oauth.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for tokens: %w", err)
	}
	return pairFrom(tok), nil
}

// Refresh obtains a new access token for refreshToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	src := s.oauth.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	return pairFrom(tok), nil
}

func pairFrom(tok *oauth2.Token) *TokenPair {
	pair := &TokenPair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !tok.Expiry.IsZero() {
		pair.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second) / time.Second)
	}
	return pair
}

// Search runs an anonymous track search.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) (*spotifyapi.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	res, err := s.anon.Search(ctx, query, spotifyapi.SearchTypeTrack,
		spotifyapi.Limit(limit), spotifyapi.Offset(offset), spotifyapi.Market("US"))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return res, nil
}

// Track fetches a single track.
func (s *Service) Track(ctx context.Context, id string) (*spotifyapi.FullTrack, error) {
	track, err := s.anon.GetTrack(ctx, spotifyapi.ID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get track %s: %w", id, err)
	}
	return track, nil
}

// AudioFeatures fetches the features of one track with the app token.
func (s *Service) AudioFeatures(ctx context.Context, id string) (*spotifyapi.AudioFeatures, error) {
	return audioFeatures(ctx, s.anon, id)
}

func audioFeatures(ctx context.Context, client *spotifyapi.Client, id string) (*spotifyapi.AudioFeatures, error) {
	features, err := client.GetAudioFeatures(ctx, spotifyapi.ID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get audio features for %s: %w", id, err)
	}
	if len(features) == 0 || features[0] == nil {
		return nil, ErrNoFeatures
	}
	return features[0], nil
}

// SeveralAudioFeatures fetches features for up to MaxAudioFeatureIDs tracks.
// Unknown ids yield nil entries.
func (s *Service) SeveralAudioFeatures(ctx context.Context, ids []string) ([]*spotifyapi.AudioFeatures, error) {
	if len(ids) > MaxAudioFeatureIDs {
		return nil, ErrTooManyIDs
	}
	sids := make([]spotifyapi.ID, len(ids))
	for i, id := range ids {
		sids[i] = spotifyapi.ID(id)
	}
	features, err := s.anon.GetAudioFeatures(ctx, sids...)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio features: %w", err)
	}
	return features, nil
}

// TrackWithFeatures fetches a track and its audio features.
func (s *Service) TrackWithFeatures(ctx context.Context, id string) (*TrackWithFeatures, error) {
	track, err := s.Track(ctx, id)
	if err != nil {
		return nil, err
	}
	features, err := s.AudioFeatures(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TrackWithFeatures{Track: track, AudioFeatures: features}, nil
}

// TrackQuery is the search string used to match a tracklist entry.
func TrackQuery(title, artist string) string {
	return fmt.Sprintf("%s artist:%s", title, artist)
}

func firstTrack(ctx context.Context, client *spotifyapi.Client, title, artist string) (*spotifyapi.FullTrack, error) {
	res, err := client.Search(ctx, TrackQuery(title, artist), spotifyapi.SearchTypeTrack, spotifyapi.Limit(5))
	if err != nil {
		return nil, fmt.Errorf("track search failed: %w", err)
	}
	if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return nil, ErrTrackNotFound
	}
	return &res.Tracks.Tracks[0], nil
}

// SearchTrack finds the best match anonymously. Audio features need a user
// token and are left empty.
func (s *Service) SearchTrack(ctx context.Context, title, artist string) (*TrackMatch, error) {
	track, err := firstTrack(ctx, s.anon, title, artist)
	if err != nil {
		return nil, err
	}
	return &TrackMatch{Track: track, Message: "Audio features require user login to Spotify"}, nil
}

// SearchTrackWithFeatures finds the best match with the user's token and
// fetches its audio features.
func (s *Service) SearchTrackWithFeatures(ctx context.Context, title, artist, userAccessToken string) (*TrackMatch, error) {
	client := s.userClient(userAccessToken)

	track, err := firstTrack(ctx, client, title, artist)
	if err != nil {
		return nil, err
	}
	features, err := audioFeatures(ctx, client, string(track.ID))
	if err != nil {
		return nil, err
	}
	return &TrackMatch{
		Track:         track,
		AudioFeatures: features,
		Message:       "Full audio features available with user authorization",
	}, nil
}

// Health confirms the client credentials are accepted.
func (s *Service) Health(ctx context.Context) error {
	if _, err := s.tokens.TokenContext(ctx); err != nil {
		logger.Warn("[SpotifyHealth] token check failed", logger.ErrorField(err))
		return err
	}
	return nil
}
