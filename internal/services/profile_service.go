package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Appitzr-Project/Backend-Profile/internal/media"
	"github.com/Appitzr-Project/Backend-Profile/internal/metrics"
	"github.com/Appitzr-Project/Backend-Profile/internal/models"
	"github.com/Appitzr-Project/Backend-Profile/internal/schema"
	"github.com/Appitzr-Project/Backend-Profile/internal/storage"
)

// PictureField is the multipart field and validation param for uploads.
const PictureField = "profilePicture"

// ProfileService implements the profile lifecycle for one variant on top of
// an injected store.
type ProfileService struct {
	schema    schema.Schema
	store     storage.ProfileStore
	uploader  media.Uploader
	moderator media.Moderator
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string
}

type Option func(*ProfileService)

func WithUploader(u media.Uploader) Option {
	return func(s *ProfileService) { s.uploader = u }
}

// WithModerator screens pictures before upload. Nil disables screening.
func WithModerator(m media.Moderator) Option {
	return func(s *ProfileService) { s.moderator = m }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *ProfileService) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ProfileService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *ProfileService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *ProfileService) { s.newID = newID }
}

func NewProfileService(sch schema.Schema, store storage.ProfileStore, opts ...Option) *ProfileService {
	s := &ProfileService{
		schema: sch,
		store:  store,
		log:    logrus.StandardLogger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ProfileService) Variant() models.Variant { return s.schema.Variant }

// GetProfile returns the caller's record, or nil when none exists.
func (s *ProfileService) GetProfile(ctx context.Context, id models.Identity) (rec *models.Record, err error) {
	const op = "services/ProfileService.GetProfile"
	defer func() { s.observe("get", err) }()

	if id.OwnerKey().IsZero() {
		return nil, ErrUnauthorized
	}

	rec, found, err := s.store.Get(ctx, id.OwnerKey())
	if err != nil {
		s.logger(op, id).WithError(err).Error("store get failed")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	if !found {
		return nil, nil
	}
	return rec, nil
}

// CreateProfile validates input against the variant schema and inserts a new
// record for the caller. A second create for the same owner is ErrConflict.
func (s *ProfileService) CreateProfile(ctx context.Context, id models.Identity, input map[string]any) (rec *models.Record, err error) {
	const op = "services/ProfileService.CreateProfile"
	defer func() { s.observe("create", err) }()

	if id.OwnerKey().IsZero() {
		return nil, ErrUnauthorized
	}
	if fields := s.schema.Validate(input); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	now := s.now().UTC()
	rec = &models.Record{
		ID:         s.newID(),
		Owner:      id.OwnerKey(),
		Attributes: s.schema.Normalize(input),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	res, err := s.store.CreateIfAbsent(ctx, rec)
	if err != nil {
		s.logger(op, id).WithError(err).Error("store create failed")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	if res == storage.AlreadyExists {
		return nil, ErrConflict
	}

	s.logger(op, id).WithField("profile_id", rec.ID).Info("profile created")
	return rec, nil
}

// UpdateProfile validates input with the same contract as create and writes
// the recognised fields to the caller's existing record. It never creates.
func (s *ProfileService) UpdateProfile(ctx context.Context, id models.Identity, input map[string]any) (attrs models.Attributes, err error) {
	const op = "services/ProfileService.UpdateProfile"
	defer func() { s.observe("update", err) }()

	if id.OwnerKey().IsZero() {
		return nil, ErrUnauthorized
	}
	if fields := s.schema.Validate(input); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	return s.patch(ctx, op, id, storage.Patch(s.schema.Normalize(input)))
}

// AttachProfilePicture checks the picture, stores it and points the caller's
// record at its URL. When the record does not exist the uploaded object is
// removed again.
func (s *ProfileService) AttachProfilePicture(ctx context.Context, id models.Identity, data []byte, contentType string) (url string, err error) {
	const op = "services/ProfileService.AttachProfilePicture"
	defer func() { s.observe("attach_picture", err) }()

	if id.OwnerKey().IsZero() {
		return "", ErrUnauthorized
	}
	if fe := checkPicture(data, contentType); fe != nil {
		return "", &ValidationError{Fields: []models.FieldError{*fe}}
	}
	if s.uploader == nil {
		return "", fmt.Errorf("%s: %w: no uploader configured", op, ErrUnavailable)
	}

	if s.moderator != nil {
		verdict, err := s.moderator.Check(ctx, data)
		if err != nil {
			s.logger(op, id).WithError(err).Error("safesearch failed")
			return "", fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
		}
		if verdict.IsUnsafe() {
			s.logger(op, id).WithFields(logrus.Fields{
				"adult":    verdict.Adult,
				"violence": verdict.Violence,
				"racy":     verdict.Racy,
			}).Warn("picture rejected by safesearch")
			return "", ErrImageRejected
		}
	}

	key := media.ObjectKey(string(s.schema.Variant), id.SubjectID, contentType)
	url, err = s.uploader.Upload(ctx, data, contentType, key)
	if err != nil {
		s.logger(op, id).WithError(err).Error("upload failed")
		return "", fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	s.metrics.ObserveUpload(string(s.schema.Variant), len(data))

	if _, err := s.patch(ctx, op, id, storage.Patch{models.AttrProfilePictureURL: url}); err != nil {
		if errors.Is(err, ErrNotFound) {
			if derr := s.uploader.Delete(context.WithoutCancel(ctx), key); derr != nil {
				s.logger(op, id).WithError(derr).WithField("key", key).Warn("orphan picture cleanup failed")
			}
		}
		return "", err
	}
	return url, nil
}

func (s *ProfileService) patch(ctx context.Context, op string, id models.Identity, p storage.Patch) (models.Attributes, error) {
	attrs, res, err := s.store.UpdateIfPresent(ctx, id.OwnerKey(), p)
	if err != nil {
		s.logger(op, id).WithError(err).Error("store update failed")
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	if res == storage.NotFound {
		return nil, ErrNotFound
	}
	return attrs, nil
}

func checkPicture(data []byte, contentType string) *models.FieldError {
	switch {
	case len(data) == 0:
		return &models.FieldError{Msg: "Profile picture is required", Param: PictureField, Location: "body"}
	case !media.AllowedType(contentType):
		return &models.FieldError{Value: contentType, Msg: "Only image/png and image/jpeg are allowed", Param: PictureField, Location: "body"}
	case len(data) > media.MaxPictureBytes:
		return &models.FieldError{Value: len(data), Msg: "Profile picture must be 5MB or smaller", Param: PictureField, Location: "body"}
	}
	return nil
}

func (s *ProfileService) logger(op string, id models.Identity) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{
		"variant": s.schema.Variant,
		"op":      op,
		"subject": id.SubjectID,
	})
}

func (s *ProfileService) observe(operation string, err error) {
	s.metrics.ObserveOperation(string(s.schema.Variant), operation, Outcome(err))
}

// Outcome classifies err for metrics and request logs.
func Outcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrImageRejected):
		return "rejected"
	}
	return "error"
}
