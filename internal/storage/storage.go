// Package storage defines the conditional-write contract every profile
// backend implements. Backends live in subpackages (memory, mongo, dynamo).
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Appitzr-Project/Backend-Profile/internal/models"
)

// WriteResult is the outcome of a conditional write. Rejections by the
// storage-side condition are results, not errors; the error return of a
// write is reserved for infrastructure failures.
type WriteResult int

const (
	Written WriteResult = iota
	AlreadyExists
	NotFound
)

func (r WriteResult) String() string {
	switch r {
	case Written:
		return "written"
	case AlreadyExists:
		return "already_exists"
	case NotFound:
		return "not_found"
	}
	return fmt.Sprintf("WriteResult(%d)", int(r))
}

// ErrReservedAttribute is returned when a patch tries to touch an immutable
// or key attribute.
var ErrReservedAttribute = errors.New("reserved attribute")

// Patch is a set of attribute assignments applied by UpdateIfPresent.
type Patch map[string]any

// Check rejects empty patches and patches naming reserved attributes.
func (p Patch) Check() error {
	if len(p) == 0 {
		return errors.New("empty patch")
	}
	for k := range p {
		if models.IsReserved(k) {
			return fmt.Errorf("%w: %s", ErrReservedAttribute, k)
		}
	}
	return nil
}

// ProfileStore persists one variant's records keyed by owner.
type ProfileStore interface {
	// Get returns the record for key; found is false when none exists.
	Get(ctx context.Context, key models.OwnerKey) (rec *models.Record, found bool, err error)
	// CreateIfAbsent atomically inserts rec unless a record already exists
	// for rec.Owner.
	CreateIfAbsent(ctx context.Context, rec *models.Record) (WriteResult, error)
	// UpdateIfPresent atomically applies patch and stamps updatedAt when a
	// record exists for key. It returns the updated attributes, updatedAt
	// included.
	UpdateIfPresent(ctx context.Context, key models.OwnerKey, patch Patch) (models.Attributes, WriteResult, error)
	Close(ctx context.Context) error
}
