package services

import (
	"errors"
	"strings"

	"github.com/Appitzr-Project/Backend-Profile/internal/models"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConflict      = errors.New("profile already exists")
	ErrNotFound      = errors.New("profile not found")
	ErrUnavailable   = errors.New("profile storage unavailable")
	ErrImageRejected = errors.New("image rejected: violates community guidelines")
)

// ValidationError lists every rejected input field. It is reported before
// any storage call is made.
type ValidationError struct {
	Fields []models.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Param+": "+f.Msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
