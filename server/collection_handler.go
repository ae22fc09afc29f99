package server

import (
	"net/http"

	"crates/core/collection"

	"github.com/gorilla/mux"
)

func (h *APIHandler) ListCollectionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	collections, err := h.collections.ListCollections(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "ListCollections", err, "Failed to fetch collections")
		return
	}
	writeJSON(w, http.StatusOK, collections)
}

func (h *APIHandler) CreateCollectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var input collection.CollectionInput
	if !decodeJSON(w, r, &input) {
		return
	}

	created, err := h.collections.CreateCollection(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, "CreateCollection", err, "Failed to create collection")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) GetCollectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	c, err := h.collections.GetCollection(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, "GetCollection", err, "Failed to fetch collection")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *APIHandler) UpdateCollectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var patch collection.CollectionPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	if err := h.collections.UpdateCollection(r.Context(), userID, mux.Vars(r)["id"], patch); err != nil {
		writeServiceError(w, "UpdateCollection", err, "Failed to update collection")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Collection updated successfully"})
}

// DeleteCollectionHandler removes the collection and every album in it.
func (h *APIHandler) DeleteCollectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.collections.DeleteCollection(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, "DeleteCollection", err, "Failed to delete collection")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Collection deleted successfully"})
}
