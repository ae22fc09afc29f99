package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"crates/core/enrich"
	"crates/core/spotify"
	"crates/logger"
	"crates/model"

	"github.com/gorilla/mux"
	spotifyapi "github.com/zmb3/spotify/v2"
)

// SpotifyHandler exposes the Spotify proxy, the OAuth broker and stateless
// album enrichment.
type SpotifyHandler struct {
	spotify  *spotify.Service
	enricher *enrich.Enricher
}

func NewSpotifyHandler(svc *spotify.Service, enricher *enrich.Enricher) *SpotifyHandler {
	return &SpotifyHandler{spotify: svc, enricher: enricher}
}

// upstreamStatus maps a Spotify error onto the response status.
func upstreamStatus(err error) int {
	var apiErr spotifyapi.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return http.StatusNotFound
	}
	if errors.Is(err, spotify.ErrTrackNotFound) || errors.Is(err, spotify.ErrNoFeatures) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *SpotifyHandler) fail(w http.ResponseWriter, op string, err error, fallback string) {
	status := upstreamStatus(err)
	if status == http.StatusNotFound {
		writeError(w, status, "Track not found")
		return
	}
	logger.Error("["+op+"] "+fallback, logger.ErrorField(err))
	writeError(w, status, fallback)
}

func (h *SpotifyHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": h.spotify.AuthURL()})
}

// HandleCallback exchanges the authorization code for a token pair, which
// is handed to the browser and not kept.
func (h *SpotifyHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Authorization code required")
		return
	}

	pair, err := h.spotify.Exchange(r.Context(), code)
	if err != nil {
		logger.Error("[SpotifyCallback] token exchange failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to exchange authorization code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Authorization successful",
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

func (h *SpotifyHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Refresh token required")
		return
	}

	pair, err := h.spotify.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		logger.Error("[SpotifyRefresh] token refresh failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to refresh token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accessToken": pair.AccessToken,
		"expiresIn":   pair.ExpiresIn,
	})
}

func (h *SpotifyHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, `Query parameter "q" is required`)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	res, err := h.spotify.Search(r.Context(), query, limit, offset)
	if err != nil {
		logger.Error("[SpotifySearch] search failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to search Spotify")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SpotifyHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	track, err := h.spotify.Track(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "SpotifyTrack", err, "Failed to get track details")
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func (h *SpotifyHandler) HandleAudioFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := h.spotify.AudioFeatures(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "SpotifyAudioFeatures", err, "Failed to get audio features")
		return
	}
	writeJSON(w, http.StatusOK, features)
}

func (h *SpotifyHandler) HandleTrackWithFeatures(w http.ResponseWriter, r *http.Request) {
	res, err := h.spotify.TrackWithFeatures(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "SpotifyTrackWithFeatures", err, "Failed to get track with features")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSearchTrack matches a title and artist with the app token.
func (h *SpotifyHandler) HandleSearchTrack(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	artist := r.URL.Query().Get("artist")
	if title == "" || artist == "" {
		writeError(w, http.StatusBadRequest, `Both "title" and "artist" parameters are required`)
		return
	}

	match, err := h.spotify.SearchTrack(r.Context(), title, artist)
	if err != nil {
		h.fail(w, "SpotifySearchTrack", err, "Failed to search for track")
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// HandleSearchTrackWithFeatures matches a track with the user's token and
// includes its audio features.
func (h *SpotifyHandler) HandleSearchTrackWithFeatures(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title           string `json:"title"`
		Artist          string `json:"artist"`
		UserAccessToken string `json:"userAccessToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.Artist == "" || req.UserAccessToken == "" {
		writeError(w, http.StatusBadRequest, "Title, artist, and userAccessToken are required")
		return
	}

	match, err := h.spotify.SearchTrackWithFeatures(r.Context(), req.Title, req.Artist, req.UserAccessToken)
	if err != nil {
		h.fail(w, "SpotifySearchTrackWithFeatures", err, "Failed to search for track with features")
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// HandleSeveralAudioFeatures takes a comma separated ids list.
func (h *SpotifyHandler) HandleSeveralAudioFeatures(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		writeError(w, http.StatusBadRequest, `Query parameter "ids" is required`)
		return
	}
	ids := strings.Split(raw, ",")
	if len(ids) > spotify.MaxAudioFeatureIDs {
		writeError(w, http.StatusBadRequest, spotify.ErrTooManyIDs.Error())
		return
	}

	features, err := h.spotify.SeveralAudioFeatures(r.Context(), ids)
	if err != nil {
		writeServiceError(w, "SpotifySeveralAudioFeatures", err, "Failed to get audio features")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"audio_features": features})
}

// HandleEnrichAlbum enriches the album in the body without storing it.
func (h *SpotifyHandler) HandleEnrichAlbum(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Album           *model.Album `json:"album"`
		UserAccessToken string       `json:"userAccessToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Album == nil || req.UserAccessToken == "" {
		writeError(w, http.StatusBadRequest, "Album and userAccessToken are required")
		return
	}

	album, summary, err := h.enricher.EnrichAlbum(r.Context(), *req.Album, req.UserAccessToken)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("[SpotifyEnrichAlbum] request cancelled", logger.String("title", req.Album.Title))
			return
		}
		logger.Error("[SpotifyEnrichAlbum] enrichment failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to enrich album")
		return
	}
	writeJSON(w, http.StatusOK, enrichResponse{Album: &album, Summary: summary})
}

func (h *SpotifyHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.spotify.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Spotify service is working",
	})
}

func (h *SpotifyHandler) register(r *mux.Router) {
	r.HandleFunc("/auth", h.HandleAuth).Methods(http.MethodGet)
	r.HandleFunc("/callback", h.HandleCallback).Methods(http.MethodGet)
	r.HandleFunc("/refresh", h.HandleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/search", h.HandleSearch).Methods(http.MethodGet)
	r.HandleFunc("/track/{id}", h.HandleTrack).Methods(http.MethodGet)
	r.HandleFunc("/track/{id}/audio-features", h.HandleAudioFeatures).Methods(http.MethodGet)
	r.HandleFunc("/track/{id}/with-features", h.HandleTrackWithFeatures).Methods(http.MethodGet)
	r.HandleFunc("/search-track", h.HandleSearchTrack).Methods(http.MethodGet)
	r.HandleFunc("/search-track-with-features", h.HandleSearchTrackWithFeatures).Methods(http.MethodPost)
	r.HandleFunc("/tracks/audio-features", h.HandleSeveralAudioFeatures).Methods(http.MethodGet)
	r.HandleFunc("/enrich-album", h.HandleEnrichAlbum).Methods(http.MethodPost)
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
}
