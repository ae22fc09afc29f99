package server

import (
	"net/http"

	"crates/model"
)

// MeHandler returns the account behind the session token.
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "Me", err, "Failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		User model.UserSummary `json:"user"`
	}{User: user.Summary()})
}
