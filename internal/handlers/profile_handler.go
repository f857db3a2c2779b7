package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Appitzr-Project/Backend-Profile/internal/media"
	"github.com/Appitzr-Project/Backend-Profile/internal/models"
	"github.com/Appitzr-Project/Backend-Profile/internal/services"
)

// multipartOverhead leaves room for boundaries and headers around the file
// so an oversize picture still reaches validation with a useful message.
const multipartOverhead = 1 << 20

// DefaultTimeout bounds each request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

type ProfileHandler struct {
	profiles *services.ProfileService
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewProfileHandler(profiles *services.ProfileService, timeout time.Duration, log logrus.FieldLogger) *ProfileHandler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ProfileHandler{
		profiles: profiles,
		timeout:  timeout,
		log:      log.WithField("variant", profiles.Variant()),
	}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := h.profiles.GetProfile(ctx, identity(r))
	if err != nil {
		writeServiceError(w, h.log, "GetProfile", err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, models.NewSuccessResponse(nil))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(rec))
}

func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r)
	if err != nil {
		writeInvalidBody(w)
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := h.profiles.CreateProfile(ctx, identity(r), body)
	if err != nil {
		writeServiceError(w, h.log, "CreateProfile", err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(rec))
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r)
	if err != nil {
		writeInvalidBody(w)
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), h.timeout)
	defer cancel()

	attrs, err := h.profiles.UpdateProfile(ctx, identity(r), body)
	if err != nil {
		writeServiceError(w, h.log, "UpdateProfile", err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(attrs))
}

// ChangePicture accepts a multipart upload in the profilePicture field.
func (h *ProfileHandler) ChangePicture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxPictureBytes+multipartOverhead)

	if err := r.ParseMultipartForm(media.MaxPictureBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		msg := "Invalid multipart form data"
		if errors.As(err, &tooLarge) {
			msg = "Profile picture must be 5MB or smaller"
		}
		writePictureError(w, msg)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(services.PictureField)
	if err != nil {
		writePictureError(w, "Profile picture is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, media.MaxPictureBytes+1))
	if err != nil {
		writePictureError(w, "Could not read profile picture")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	ctx, cancel := contextWithTimeout(r.Context(), h.timeout)
	defer cancel()

	url, err := h.profiles.AttachProfilePicture(ctx, identity(r), data, contentType)
	if err != nil {
		writeServiceError(w, h.log, "ChangePicture", err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.PictureResponse{ProfilePictureURL: url}))
}

func writePictureError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse([]models.FieldError{
		{Msg: msg, Param: services.PictureField, Location: "body"},
	}))
}
