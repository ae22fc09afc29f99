package repository

import "errors"

var (
	// ErrDuplicateEmail is returned when an account already uses the email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateAlbum is returned when the user already saved the Discogs release.
	ErrDuplicateAlbum = errors.New("album already in collection")
)
