package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"crates/core/auth"
	"crates/core/collection"
	"crates/core/spotify"
	"crates/logger"
)

// APIHandler serves the auth and collection endpoints.
type APIHandler struct {
	auth        *auth.Service
	collections *collection.Service
}

func NewAPIHandler(authSvc *auth.Service, collections *collection.Service) *APIHandler {
	return &APIHandler{auth: authSvc, collections: collections}
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

func writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Error("Failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// clientErrors maps service sentinels to HTTP statuses. The sentinel's own
// text becomes the response message.
var clientErrors = []struct {
	err    error
	status int
}{
	{auth.ErrFieldsRequired, http.StatusBadRequest},
	{auth.ErrCredentialsRequired, http.StatusBadRequest},
	{auth.ErrEmailRequired, http.StatusBadRequest},
	{auth.ErrPasswordTooShort, http.StatusBadRequest},
	{auth.ErrPasswordTooLong, http.StatusBadRequest},
	{auth.ErrInvalidEmail, http.StatusBadRequest},
	{auth.ErrTokenRequired, http.StatusBadRequest},
	{auth.ErrVerificationExpired, http.StatusBadRequest},
	{auth.ErrInvalidVerification, http.StatusBadRequest},
	{auth.ErrNoVerificationToken, http.StatusBadRequest},
	{auth.ErrVerificationMismatch, http.StatusBadRequest},
	{auth.ErrAlreadyVerified, http.StatusBadRequest},
	{auth.ErrResetFieldsRequired, http.StatusBadRequest},
	{auth.ErrInvalidResetToken, http.StatusBadRequest},
	{auth.ErrResetExpired, http.StatusBadRequest},
	{auth.ErrEmailTaken, http.StatusConflict},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrEmailNotVerified, http.StatusUnauthorized},
	{auth.ErrUserNotFound, http.StatusNotFound},
	{auth.ErrEmailDelivery, http.StatusInternalServerError},

	{collection.ErrAlbumFieldsRequired, http.StatusBadRequest},
	{collection.ErrNoValidFields, http.StatusBadRequest},
	{collection.ErrNoChanges, http.StatusBadRequest},
	{collection.ErrCollectionNameRequired, http.StatusBadRequest},
	{collection.ErrDiscogsIDRequired, http.StatusBadRequest},
	{collection.ErrAccessTokenRequired, http.StatusBadRequest},
	{collection.ErrAlbumExists, http.StatusConflict},
	{collection.ErrAlbumNotFound, http.StatusNotFound},
	{collection.ErrAlbumAlreadyRemoved, http.StatusNotFound},
	{collection.ErrCollectionNotFound, http.StatusNotFound},
	{collection.ErrReleaseNotFound, http.StatusNotFound},
	{collection.ErrFeatureUnavailable, http.StatusServiceUnavailable},

	{spotify.ErrTooManyIDs, http.StatusBadRequest},
}

// writeServiceError answers with the mapped status for known errors and a
// generic 500 otherwise.
func writeServiceError(w http.ResponseWriter, op string, err error, fallback string) {
	for _, ce := range clientErrors {
		if errors.Is(err, ce.err) {
			if ce.status >= http.StatusInternalServerError {
				logger.Error("["+op+"] "+ce.err.Error(), logger.ErrorField(err))
			}
			writeError(w, ce.status, ce.err.Error())
			return
		}
	}
	logger.Error("["+op+"] "+fallback, logger.ErrorField(err))
	writeError(w, http.StatusInternalServerError, fallback)
}
