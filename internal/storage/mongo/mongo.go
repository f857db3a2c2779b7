// Package mongo stores profiles in MongoDB, one collection per variant. The
// owner key is the document _id, so the unique primary index enforces one
// record per owner.
package mongo

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Appitzr-Project/Backend-Profile/internal/models"
	"github.com/Appitzr-Project/Backend-Profile/internal/storage"
)

type Store struct {
	client     *mongo.Client
	ownsClient bool
	col        *mongo.Collection
	now        func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Connect dials uri and pings the primary. SRV (Atlas) URIs are pinned to
// TLS 1.2.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	const op = "storage/mongo/Connect"

	opts := options.Client().ApplyURI(uri)
	if strings.HasPrefix(uri, "mongodb+srv://") {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS12,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

// New returns a store backed by col. The caller keeps ownership of the
// client.
func New(ctx context.Context, col *mongo.Collection, opts ...Option) *Store {
	s := &Store{col: col, client: col.Database().Client(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	// Best-effort secondary index for lookups by subject.
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: models.AttrSubjectID, Value: 1}},
	})
	return s
}

// Open connects to uri and returns a store that disconnects on Close.
func Open(ctx context.Context, uri, dbName, collection string, opts ...Option) (*Store, error) {
	client, err := Connect(ctx, uri)
	if err != nil {
		return nil, err
	}
	s := New(ctx, client.Database(dbName).Collection(collection), opts...)
	s.ownsClient = true
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) Get(ctx context.Context, key models.OwnerKey) (*models.Record, bool, error) {
	const op = "storage/mongo/Get"

	var doc bson.M
	err := s.col.FindOne(ctx, bson.M{"_id": documentID(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return toRecord(doc), true, nil
}

func (s *Store) CreateIfAbsent(ctx context.Context, rec *models.Record) (storage.WriteResult, error) {
	const op = "storage/mongo/CreateIfAbsent"

	_, err := s.col.InsertOne(ctx, toDocument(rec))
	if mongo.IsDuplicateKeyError(err) {
		return storage.AlreadyExists, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return storage.Written, nil
}

// UpdateIfPresent runs a pipeline update so updatedAt can be clamped to
// createdAt server-side. Patch values are wrapped in $literal so strings
// starting with "$" are never read as field paths.
func (s *Store) UpdateIfPresent(ctx context.Context, key models.OwnerKey, patch storage.Patch) (models.Attributes, storage.WriteResult, error) {
	const op = "storage/mongo/UpdateIfPresent"

	if err := patch.Check(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	set := bson.D{}
	for name, v := range patch {
		set = append(set, bson.E{Key: name, Value: bson.M{"$literal": v}})
	}
	set = append(set, bson.E{
		Key:   models.AttrUpdatedAt,
		Value: bson.M{"$max": bson.A{s.now().UTC(), "$" + models.AttrCreatedAt}},
	})

	var doc bson.M
	err := s.col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": documentID(key)},
		mongo.Pipeline{{{Key: "$set", Value: set}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.NotFound, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	updated := make(models.Attributes, len(patch)+1)
	for name := range patch {
		updated[name] = fromBSON(doc[name])
	}
	updated[models.AttrUpdatedAt] = asTime(doc[models.AttrUpdatedAt])
	return updated, storage.Written, nil
}

// documentID is the compound _id of an owner's document. Field order is
// fixed because Mongo compares embedded documents field by field.
func documentID(key models.OwnerKey) bson.D {
	return bson.D{
		{Key: models.AttrSubjectID, Value: key.SubjectID},
		{Key: models.AttrEmail, Value: key.Email},
	}
}

func toDocument(rec *models.Record) bson.M {
	doc := bson.M{}
	for k, v := range rec.Attributes {
		doc[k] = v
	}
	doc["_id"] = documentID(rec.Owner)
	doc[models.AttrID] = rec.ID
	doc[models.AttrSubjectID] = rec.Owner.SubjectID
	doc[models.AttrEmail] = rec.Owner.Email
	if rec.ProfilePictureURL != "" {
		doc[models.AttrProfilePictureURL] = rec.ProfilePictureURL
	}
	doc[models.AttrCreatedAt] = rec.CreatedAt.UTC()
	doc[models.AttrUpdatedAt] = rec.UpdatedAt.UTC()
	return doc
}

func toRecord(doc bson.M) *models.Record {
	rec := &models.Record{Attributes: models.Attributes{}}
	for k, v := range doc {
		switch k {
		case "_id", models.AttrOwnerKey:
		case models.AttrID:
			rec.ID, _ = v.(string)
		case models.AttrSubjectID:
			rec.Owner.SubjectID, _ = v.(string)
		case models.AttrEmail:
			rec.Owner.Email, _ = v.(string)
		case models.AttrProfilePictureURL:
			rec.ProfilePictureURL, _ = v.(string)
		case models.AttrCreatedAt:
			rec.CreatedAt = asTime(v)
		case models.AttrUpdatedAt:
			rec.UpdatedAt = asTime(v)
		default:
			rec.Attributes[k] = fromBSON(v)
		}
	}
	return rec
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	}
	return time.Time{}
}

// fromBSON maps driver-specific scalar types back to the plain Go values the
// schema produces.
func fromBSON(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	}
	return v
}

var _ storage.ProfileStore = (*Store)(nil)
