package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_MarshalJSON_Flat(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := &Record{
		ID:         "id-1",
		Owner:      OwnerKey{SubjectID: "sub-1", Email: "a@b.com"},
		Attributes: Attributes{"memberName": "Ana", "mobileNumber": "0400"},
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, "id-1", got["id"])
	assert.Equal(t, "sub-1", got["subjectId"])
	assert.Equal(t, "a@b.com", got["email"])
	assert.Equal(t, "Ana", got["memberName"])
	assert.Equal(t, "2024-03-01T10:00:00Z", got["createdAt"])
	assert.NotContains(t, got, "profilePictureUrl")

	rec.ProfilePictureURL = "https://cdn/x.png"
	raw, err = json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"profilePictureUrl":"https://cdn/x.png"`)
}

func TestRecord_CloneIsDeep(t *testing.T) {
	rec := &Record{Attributes: Attributes{"a": "1"}}
	cp := rec.Clone()
	cp.Attributes["a"] = "2"
	assert.Equal(t, "1", rec.Attributes["a"])
}

func TestIsReserved(t *testing.T) {
	for _, name := range []string{"id", "subjectId", "email", "ownerKey", "createdAt", "updatedAt"} {
		assert.True(t, IsReserved(name), name)
	}
	assert.False(t, IsReserved("profilePictureUrl"))
	assert.False(t, IsReserved("venueName"))
}

func TestOwnerKey(t *testing.T) {
	k := OwnerKey{SubjectID: "sub-1", Email: "a@b.com"}
	assert.Equal(t, "5:sub-1#a@b.com", k.String())

	a := OwnerKey{SubjectID: "a#b", Email: "c@x.com"}
	b := OwnerKey{SubjectID: "a", Email: "b#c@x.com"}
	assert.NotEqual(t, a.String(), b.String())
	assert.False(t, k.IsZero())
	assert.True(t, OwnerKey{SubjectID: "sub-1"}.IsZero())
}

func TestIdentity_InGroup(t *testing.T) {
	id := Identity{SubjectID: "s", Email: "e", Groups: []string{"member", "venue"}}
	assert.True(t, id.InGroup("venue"))
	assert.False(t, id.InGroup("admin"))
	assert.Equal(t, OwnerKey{SubjectID: "s", Email: "e"}, id.OwnerKey())
}
