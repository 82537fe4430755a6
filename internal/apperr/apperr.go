// Package apperr defines the domain errors surfaced to API clients.
package apperr

import (
	"errors"
	"net/http"
)

// Error is a tagged failure carrying a stable code and the HTTP status it maps to.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// ErrS3Upload is returned when a file could not be written to object storage.
var ErrS3Upload = &Error{
	Code:    "S3_UPLOAD_EXCEPTION",
	Status:  http.StatusInternalServerError,
	Message: "failed to upload file to storage",
}

// From returns the first *Error in err's chain, or nil.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
