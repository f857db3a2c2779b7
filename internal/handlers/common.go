package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Appitzr-Project/Backend-Profile/internal/middleware"
	"github.com/Appitzr-Project/Backend-Profile/internal/models"
	"github.com/Appitzr-Project/Backend-Profile/internal/services"
)

// maxJSONBody bounds profile request bodies.
const maxJSONBody = 1 << 20

var errTrailingData = errors.New("unexpected data after JSON object")

// writeJSON encodes before writing the status so an unencodable value never
// goes out as an empty success.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusUnprocessableEntity
		body, _ = json.Marshal(models.NewErrorResponse(status, "Service temporarily unavailable, please try again"))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.NewErrorResponse(status, message))
}

func contextWithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}

// decodeBody reads a JSON object keeping numbers as json.Number so the
// schema sees exactly what the client sent.
func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errTrailingData
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func writeInvalidBody(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse([]models.FieldError{
		{Msg: "Request body must be a JSON object", Param: "body", Location: "body"},
	}))
}

// writeServiceError maps service errors onto the response envelopes.
// Infrastructure failures are logged and answered with a generic 422.
func writeServiceError(w http.ResponseWriter, log logrus.FieldLogger, op string, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr.Fields))
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, "Data Already Exist")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "Profile Not Found")
	case errors.Is(err, services.ErrImageRejected):
		writeError(w, http.StatusUnprocessableEntity, "Image rejected: violates community guidelines")
	default:
		log.WithError(err).WithField("op", op).Error("request failed")
		writeError(w, http.StatusUnprocessableEntity, "Service temporarily unavailable, please try again")
	}
}

func identity(r *http.Request) models.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}
