// Package media stores profile pictures and optionally screens them before
// they are published.
package media

import (
	"context"
	"path"

	"github.com/google/uuid"
)

// MaxPictureBytes is the largest accepted profile picture (5 MiB).
const MaxPictureBytes = 5 * 1024 * 1024

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
}

// Uploader stores objects under a key and returns a publicly reachable URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType, key string) (url string, err error)
	Delete(ctx context.Context, key string) error
}

// Moderator screens image bytes before upload.
type Moderator interface {
	Check(ctx context.Context, data []byte) (*SafeSearchResult, error)
}

// AllowedType reports whether contentType is an accepted picture format.
func AllowedType(contentType string) bool {
	_, ok := extensions[contentType]
	return ok
}

// ObjectKey builds "profiles/<variant>/<subjectID>/<uuid>.<ext>". Every
// upload gets a fresh key so a replaced picture never overwrites the old
// object in place.
func ObjectKey(variant, subjectID, contentType string) string {
	name := uuid.NewString()
	if ext, ok := extensions[contentType]; ok {
		name += "." + ext
	}
	return path.Join("profiles", variant, subjectID, name)
}
