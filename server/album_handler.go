package server

import (
	"context"
	"errors"
	"net/http"

	"crates/core/collection"
	"crates/core/enrich"
	"crates/logger"
	"crates/model"

	"github.com/gorilla/mux"
)

type enrichResponse struct {
	Album   *model.Album   `json:"album"`
	Summary enrich.Summary `json:"summary"`
}

// AddAlbumHandler stores an album in the caller's default collection.
func (h *APIHandler) AddAlbumHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var album model.Album
	if !decodeJSON(w, r, &album) {
		return
	}

	stored, err := h.collections.AddAlbum(r.Context(), userID, album)
	if err != nil {
		writeServiceError(w, "AddAlbum", err, "Failed to add album to collection")
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// AddFromDiscogsHandler adds a release by its Discogs id.
func (h *APIHandler) AddFromDiscogsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		DiscogsID int64 `json:"discogsId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	stored, err := h.collections.AddFromDiscogs(r.Context(), userID, req.DiscogsID)
	if err != nil {
		writeServiceError(w, "AddFromDiscogs", err, "Failed to add album to collection")
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *APIHandler) GetAlbumHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	album, err := h.collections.GetAlbum(r.Context(), userID, mux.Vars(r)["albumId"])
	if err != nil {
		writeServiceError(w, "GetAlbum", err, "Failed to fetch album details")
		return
	}
	writeJSON(w, http.StatusOK, album)
}

// UpdateAlbumHandler applies the editable fields of the body. Other fields
// are ignored.
func (h *APIHandler) UpdateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var patch collection.AlbumPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	fields, err := h.collections.UpdateAlbum(r.Context(), userID, mux.Vars(r)["albumId"], patch)
	if err != nil {
		writeServiceError(w, "UpdateAlbum", err, "Failed to update album")
		return
	}
	logger.Info("[UpdateAlbum] album updated",
		logger.Int64("userId", userID),
		logger.String("albumId", mux.Vars(r)["albumId"]),
		logger.Strings("fields", fields))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Album updated successfully",
		"updatedFields": fields,
	})
}

func (h *APIHandler) DeleteAlbumHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.collections.DeleteAlbum(r.Context(), userID, mux.Vars(r)["albumId"]); err != nil {
		writeServiceError(w, "DeleteAlbum", err, "Failed to delete album from collection")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Album removed from collection successfully"})
}

// EnrichAlbumHandler enriches a stored album with the caller's Spotify
// token and saves the result.
func (h *APIHandler) EnrichAlbumHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		UserAccessToken string `json:"userAccessToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	albumID := mux.Vars(r)["albumId"]
	album, summary, err := h.collections.EnrichStoredAlbum(r.Context(), userID, albumID, req.UserAccessToken)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("[EnrichAlbum] request cancelled", logger.String("albumId", albumID))
			return
		}
		writeServiceError(w, "EnrichAlbum", err, "Failed to enrich album")
		return
	}

	logger.Info("[EnrichAlbum] album enriched",
		logger.String("albumId", albumID),
		logger.Int("matched", summary.Matched),
		logger.Int("unmatched", summary.Unmatched),
		logger.Int("failed", summary.Failed))
	writeJSON(w, http.StatusOK, enrichResponse{Album: album, Summary: summary})
}
