package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Appitzr-Project/Backend-Profile/internal/models"
	"github.com/Appitzr-Project/Backend-Profile/internal/storage"
)

var owner = models.OwnerKey{SubjectID: "sub-1", Email: "a@b.com"}

func newRecord(created time.Time) *models.Record {
	return &models.Record{
		ID:         "id-1",
		Owner:      owner,
		Attributes: models.Attributes{"venueName": "Opera House", "address": "1 Opera Ln"},
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestStore_CreateOnceUnderConcurrency(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	const n = 64
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[storage.WriteResult]int{}
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := s.CreateIfAbsent(context.Background(), newRecord(time.Now()))
			assert.NoError(t, err)
			mu.Lock()
			results[res]++
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, results[storage.Written])
	assert.Equal(t, n-1, results[storage.AlreadyExists])
	assert.Equal(t, 1, s.Len())
}

func TestStore_UpdateRequiresExistence(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	attrs, res, err := s.UpdateIfPresent(context.Background(), owner, storage.Patch{"venueName": "x"})
	require.NoError(t, err)
	assert.Equal(t, storage.NotFound, res)
	assert.Nil(t, attrs)
	assert.Equal(t, 0, s.Len())

	_, found, err := s.Get(context.Background(), owner)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_PartialPatch(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)
	s, err := New(WithClock(func() time.Time { return later }))
	require.NoError(t, err)

	res, err := s.CreateIfAbsent(context.Background(), newRecord(created))
	require.NoError(t, err)
	require.Equal(t, storage.Written, res)

	attrs, res, err := s.UpdateIfPresent(context.Background(), owner, storage.Patch{
		"venueName":         "Sydney Opera House",
		"profilePictureUrl": "https://cdn/p.png",
	})
	require.NoError(t, err)
	require.Equal(t, storage.Written, res)
	assert.Equal(t, "Sydney Opera House", attrs["venueName"])
	assert.Equal(t, later, attrs["updatedAt"])
	assert.NotContains(t, attrs, "address")

	rec, found, err := s.Get(context.Background(), owner)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Sydney Opera House", rec.Attributes["venueName"])
	assert.Equal(t, "1 Opera Ln", rec.Attributes["address"])
	assert.Equal(t, "https://cdn/p.png", rec.ProfilePictureURL)
	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, later, rec.UpdatedAt)
}

func TestStore_UpdatedAtNeverBeforeCreatedAt(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := New(WithClock(func() time.Time { return created.Add(-time.Minute) }))
	require.NoError(t, err)

	_, err = s.CreateIfAbsent(context.Background(), newRecord(created))
	require.NoError(t, err)

	attrs, _, err := s.UpdateIfPresent(context.Background(), owner, storage.Patch{"venueName": "x"})
	require.NoError(t, err)
	assert.Equal(t, created, attrs["updatedAt"])
}

func TestStore_RejectsReservedPatch(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	_, err = s.CreateIfAbsent(context.Background(), newRecord(time.Now()))
	require.NoError(t, err)

	_, _, err = s.UpdateIfPresent(context.Background(), owner, storage.Patch{"createdAt": time.Now()})
	require.ErrorIs(t, err, storage.ErrReservedAttribute)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	_, err = s.CreateIfAbsent(context.Background(), newRecord(time.Now()))
	require.NoError(t, err)

	rec, _, err := s.Get(context.Background(), owner)
	require.NoError(t, err)
	rec.Attributes["venueName"] = "mutated"

	again, _, err := s.Get(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, "Opera House", again.Attributes["venueName"])
}

func TestStore_CancelledContext(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.CreateIfAbsent(ctx, newRecord(time.Now()))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Len())
}

func TestStore_SnapshotSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	snap, err := storage.NewJSONFile(dir, "venue.json")
	require.NoError(t, err)

	s, err := New(WithSnapshot(snap))
	require.NoError(t, err)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.CreateIfAbsent(context.Background(), newRecord(created))
	require.NoError(t, err)

	snap2, err := storage.NewJSONFile(dir, "venue.json")
	require.NoError(t, err)
	restarted, err := New(WithSnapshot(snap2))
	require.NoError(t, err)

	rec, found, err := restarted.Get(context.Background(), owner)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Opera House", rec.Attributes["venueName"])
	assert.True(t, created.Equal(rec.CreatedAt))

	res, err := restarted.CreateIfAbsent(context.Background(), newRecord(created))
	require.NoError(t, err)
	assert.Equal(t, storage.AlreadyExists, res)
}

func TestStore_OwnersSharingHashStayApart(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	first := models.OwnerKey{SubjectID: "a#b", Email: "c@x.com"}
	second := models.OwnerKey{SubjectID: "a", Email: "b#c@x.com"}

	recA := newRecord(time.Now())
	recA.Owner = first
	res, err := s.CreateIfAbsent(ctx, recA)
	require.NoError(t, err)
	require.Equal(t, storage.Written, res)

	recB := newRecord(time.Now())
	recB.ID = "id-2"
	recB.Owner = second
	res, err = s.CreateIfAbsent(ctx, recB)
	require.NoError(t, err)
	assert.Equal(t, storage.Written, res)

	_, _, err = s.UpdateIfPresent(ctx, second, storage.Patch{"venueName": "Second"})
	require.NoError(t, err)

	got, found, err := s.Get(ctx, first)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "Opera House", got.Attributes["venueName"])
	assert.Equal(t, 2, s.Len())
}
