// Package memory is a process-local ProfileStore. A single mutex makes the
// conditional writes atomic; an optional JSON snapshot keeps data across
// restarts for local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Appitzr-Project/Backend-Profile/internal/models"
	"github.com/Appitzr-Project/Backend-Profile/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	records  map[string]*models.Record
	snapshot *storage.JSONFile
	now      func() time.Time
}

type Option func(*Store)

// WithClock overrides time.Now for updatedAt stamping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSnapshot persists every successful write to f and loads it on start.
func WithSnapshot(f *storage.JSONFile) Option {
	return func(s *Store) { s.snapshot = f }
}

type snapshotRecord struct {
	ID                string            `json:"id"`
	SubjectID         string            `json:"subjectId"`
	Email             string            `json:"email"`
	Attributes        models.Attributes `json:"attributes"`
	ProfilePictureURL string            `json:"profilePictureUrl,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func New(opts ...Option) (*Store, error) {
	const op = "storage/memory/New"

	s := &Store{
		records: make(map[string]*models.Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.snapshot != nil {
		var saved []snapshotRecord
		if err := s.snapshot.Load(&saved); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, r := range saved {
			rec := &models.Record{
				ID:                r.ID,
				Owner:             models.OwnerKey{SubjectID: r.SubjectID, Email: r.Email},
				Attributes:        r.Attributes,
				ProfilePictureURL: r.ProfilePictureURL,
				CreatedAt:         r.CreatedAt,
				UpdatedAt:         r.UpdatedAt,
			}
			if rec.Attributes == nil {
				rec.Attributes = models.Attributes{}
			}
			s.records[rec.Owner.String()] = rec
		}
	}

	return s, nil
}

func (s *Store) Get(ctx context.Context, key models.OwnerKey) (*models.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("storage/memory/Get: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key.String()]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *Store) CreateIfAbsent(ctx context.Context, rec *models.Record) (storage.WriteResult, error) {
	const op = "storage/memory/CreateIfAbsent"

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := rec.Owner.String()
	if _, exists := s.records[k]; exists {
		return storage.AlreadyExists, nil
	}

	s.records[k] = rec.Clone()
	if err := s.persistLocked(); err != nil {
		delete(s.records, k)
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return storage.Written, nil
}

func (s *Store) UpdateIfPresent(ctx context.Context, key models.OwnerKey, patch storage.Patch) (models.Attributes, storage.WriteResult, error) {
	const op = "storage/memory/UpdateIfPresent"

	if err := patch.Check(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	prev, ok := s.records[k]
	if !ok {
		return nil, storage.NotFound, nil
	}

	next := prev.Clone()
	updated := make(models.Attributes, len(patch)+1)
	for name, v := range patch {
		if name == models.AttrProfilePictureURL {
			url, _ := v.(string)
			next.ProfilePictureURL = url
		} else {
			next.Attributes[name] = v
		}
		updated[name] = v
	}

	now := s.now().UTC()
	if now.Before(next.CreatedAt) {
		now = next.CreatedAt
	}
	next.UpdatedAt = now
	updated[models.AttrUpdatedAt] = now

	s.records[k] = next
	if err := s.persistLocked(); err != nil {
		s.records[k] = prev
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return updated, storage.Written, nil
}

// Len reports how many records the store holds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func (s *Store) persistLocked() error {
	if s.snapshot == nil {
		return nil
	}

	out := make([]snapshotRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, snapshotRecord{
			ID:                r.ID,
			SubjectID:         r.Owner.SubjectID,
			Email:             r.Owner.Email,
			Attributes:        r.Attributes,
			ProfilePictureURL: r.ProfilePictureURL,
			CreatedAt:         r.CreatedAt,
			UpdatedAt:         r.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubjectID+out[i].Email < out[j].SubjectID+out[j].Email
	})
	return s.snapshot.Save(out)
}

var _ storage.ProfileStore = (*Store)(nil)
