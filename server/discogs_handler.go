package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"crates/core/discogs"
	"crates/logger"

	"github.com/gorilla/mux"
)

// DiscogsHandler exposes the Discogs proxy. Responses are passed through
// unchanged.
type DiscogsHandler struct {
	client *discogs.Client
}

func NewDiscogsHandler(client *discogs.Client) *DiscogsHandler {
	return &DiscogsHandler{client: client}
}

func (h *DiscogsHandler) respond(w http.ResponseWriter, op string, body json.RawMessage, err error, fallback string) {
	if err != nil {
		if errors.Is(err, discogs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found on Discogs")
			return
		}
		logger.Error("["+op+"] "+fallback, logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, fallback)
		return
	}
	writeRawJSON(w, body)
}

// byID adapts a single-resource lookup into a handler.
func (h *DiscogsHandler) byID(op, fallback string, get func(ctx context.Context, id string) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := get(r.Context(), mux.Vars(r)["id"])
		h.respond(w, op, body, err, fallback)
	}
}

// byIDWithParams is byID for paged listings that forward the query string.
func (h *DiscogsHandler) byIDWithParams(op, fallback string, get func(ctx context.Context, id string, params url.Values) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := get(r.Context(), mux.Vars(r)["id"], r.URL.Query())
		h.respond(w, op, body, err, fallback)
	}
}

// HandleSearch forwards q, type, page, per_page and any other filters.
func (h *DiscogsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := params.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, `Query parameter "q" is required`)
		return
	}
	params.Del("q")

	body, err := h.client.Search(r.Context(), query, params)
	h.respond(w, "DiscogsSearch", body, err, "Failed to search Discogs")
}

func (h *DiscogsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Health(r.Context()); err != nil {
		logger.Warn("[DiscogsHealth] upstream check failed", logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "unhealthy",
			"error":  "Discogs API connection failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Discogs API connection successful",
	})
}

func (h *DiscogsHandler) register(r *mux.Router) {
	r.HandleFunc("/search", h.HandleSearch).Methods(http.MethodGet)
	r.HandleFunc("/releases/{id}", h.byID("DiscogsRelease", "Failed to get release details", h.client.Release)).Methods(http.MethodGet)
	r.HandleFunc("/artists/{id}", h.byID("DiscogsArtist", "Failed to get artist details", h.client.Artist)).Methods(http.MethodGet)
	r.HandleFunc("/artists/{id}/releases", h.byIDWithParams("DiscogsArtistReleases", "Failed to get artist releases", h.client.ArtistReleases)).Methods(http.MethodGet)
	r.HandleFunc("/masters/{id}", h.byID("DiscogsMaster", "Failed to get master release details", h.client.Master)).Methods(http.MethodGet)
	r.HandleFunc("/labels/{id}", h.byID("DiscogsLabel", "Failed to get label details", h.client.Label)).Methods(http.MethodGet)
	r.HandleFunc("/labels/{id}/releases", h.byIDWithParams("DiscogsLabelReleases", "Failed to get label releases", h.client.LabelReleases)).Methods(http.MethodGet)
	r.HandleFunc("/marketplace/{id}", h.byIDWithParams("DiscogsMarketplace", "Failed to get marketplace listings", h.client.Marketplace)).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
}
