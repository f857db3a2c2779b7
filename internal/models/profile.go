package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Variant names a profile kind. Member and venue profiles share one
// lifecycle and differ only in their attribute schema and owning group.
type Variant string

const (
	VariantMember Variant = "member"
	VariantVenue  Variant = "venue"
)

// Record attribute names that are not part of a variant's schema.
const (
	AttrID                = "id"
	AttrSubjectID         = "subjectId"
	AttrEmail             = "email"
	AttrOwnerKey          = "ownerKey"
	AttrProfilePictureURL = "profilePictureUrl"
	AttrCreatedAt         = "createdAt"
	AttrUpdatedAt         = "updatedAt"
)

// IsReserved reports whether name can never be written through a patch.
func IsReserved(name string) bool {
	switch name {
	case AttrID, AttrSubjectID, AttrEmail, AttrOwnerKey, AttrCreatedAt, AttrUpdatedAt:
		return true
	}
	return false
}

// OwnerKey identifies the authenticated owner of a profile. There is at most
// one record per key in each variant's table.
type OwnerKey struct {
	SubjectID string
	Email     string
}

// String encodes the key as "<len(subjectId)>:<subjectId>#<email>". The
// length prefix keeps the encoding unambiguous when either part contains '#'.
func (k OwnerKey) String() string {
	return strconv.Itoa(len(k.SubjectID)) + ":" + k.SubjectID + "#" + k.Email
}

func (k OwnerKey) IsZero() bool {
	return k.SubjectID == "" || k.Email == ""
}

// Attributes holds the variant-specific fields of a record, keyed by their
// wire names.
type Attributes map[string]any

func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Record is a stored member or venue profile.
type Record struct {
	ID                string
	Owner             OwnerKey
	Attributes        Attributes
	ProfilePictureURL string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (r *Record) Clone() *Record {
	out := *r
	out.Attributes = r.Attributes.Clone()
	return &out
}

// MarshalJSON renders the record flat, the way clients have always seen it:
// schema attributes next to id, owner fields and timestamps.
func (r *Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Attributes)+6)
	for k, v := range r.Attributes {
		flat[k] = v
	}
	flat[AttrID] = r.ID
	flat[AttrSubjectID] = r.Owner.SubjectID
	flat[AttrEmail] = r.Owner.Email
	if r.ProfilePictureURL != "" {
		flat[AttrProfilePictureURL] = r.ProfilePictureURL
	}
	flat[AttrCreatedAt] = r.CreatedAt.UTC()
	flat[AttrUpdatedAt] = r.UpdatedAt.UTC()
	return json.Marshal(flat)
}
