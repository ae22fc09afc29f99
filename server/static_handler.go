package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"crates/logger"
	"crates/storage"

	"github.com/gorilla/mux"
)

// CoverHandler serves archived album covers from the object store.
type CoverHandler struct {
	covers *storage.CoverStore
}

// NewCoverHandler builds a CoverHandler. A nil store answers 404.
func NewCoverHandler(covers *storage.CoverStore) *CoverHandler {
	return &CoverHandler{covers: covers}
}

// ServeHTTP implements http.Handler.
func (h *CoverHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.covers == nil {
		writeError(w, http.StatusNotFound, "Cover not found")
		return
	}

	key := "covers/" + mux.Vars(r)["key"]
	object, info, err := h.covers.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrCoverNotFound) {
			writeError(w, http.StatusNotFound, "Cover not found")
			return
		}
		logger.Error("Error opening cover", logger.String("key", key), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load cover")
		return
	}
	defer object.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if _, err := io.Copy(w, object); err != nil {
		logger.Error("Error serving cover", logger.String("key", key), logger.ErrorField(err))
	}
}
