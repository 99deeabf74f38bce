package mongo

import (
	"context"
	"fmt"

	"github.com/rbaliyan/tsdispatch"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/*
MongoDB Schema:

Collection: tsmeta       { "_id": tsuid, "metric", "tags", "description", "created", "custom" }
Collection: uidmeta      { "_id": "<type>:<uid>", "uid", "type", "name", ... }
Collection: annotations  { "_id": "<tsuid>@<start>", "tsuid", "startTime", ... }

Indexes:
db.tsmeta.createIndex({ "metric": 1 })
db.uidmeta.createIndex({ "type": 1, "name": 1 })
db.annotations.createIndex({ "tsuid": 1, "startTime": 1 })
*/

// DefaultLimit bounds a query that sets no limit.
const DefaultLimit = 25

// Store indexes metadata and annotations and answers queries.
type Store interface {
	UpsertTSMeta(ctx context.Context, m *tsdispatch.TSMeta) error
	DeleteTSMeta(ctx context.Context, tsuid string) error
	UpsertUIDMeta(ctx context.Context, m *tsdispatch.UIDMeta) error
	DeleteUIDMeta(ctx context.Context, m *tsdispatch.UIDMeta) error
	UpsertAnnotation(ctx context.Context, a *tsdispatch.Annotation) error
	DeleteAnnotation(ctx context.Context, a *tsdispatch.Annotation) error
	// Search fills q.Results and q.TotalResults.
	Search(ctx context.Context, q *tsdispatch.SearchQuery) error
}

type uidDoc struct {
	ID                 string `bson:"_id"`
	tsdispatch.UIDMeta `bson:",inline"`
}

type annotationDoc struct {
	ID                    string `bson:"_id"`
	tsdispatch.Annotation `bson:",inline"`
}

// MongoStore is a Store backed by three collections.
type MongoStore struct {
	tsmeta      *mongo.Collection
	uidmeta     *mongo.Collection
	annotations *mongo.Collection
}

// NewMongoStore creates a store in db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		tsmeta:      db.Collection("tsmeta"),
		uidmeta:     db.Collection("uidmeta"),
		annotations: db.Collection("annotations"),
	}
}

// EnsureIndexes creates the query indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.tsmeta.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "metric", Value: 1}},
	}); err != nil {
		return fmt.Errorf("tsmeta index: %w", err)
	}
	if _, err := s.uidmeta.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "type", Value: 1}, {Key: "name", Value: 1}},
	}); err != nil {
		return fmt.Errorf("uidmeta index: %w", err)
	}
	if _, err := s.annotations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tsuid", Value: 1}, {Key: "startTime", Value: 1}},
	}); err != nil {
		return fmt.Errorf("annotations index: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, c *mongo.Collection, id string, doc any) error {
	_, err := c.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", c.Name(), id, err)
	}
	return nil
}

func remove(ctx context.Context, c *mongo.Collection, id string) error {
	if _, err := c.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.Name(), id, err)
	}
	return nil
}

func (s *MongoStore) UpsertTSMeta(ctx context.Context, m *tsdispatch.TSMeta) error {
	return upsert(ctx, s.tsmeta, m.TSUID, m)
}

func (s *MongoStore) DeleteTSMeta(ctx context.Context, tsuid string) error {
	return remove(ctx, s.tsmeta, tsuid)
}

func (s *MongoStore) UpsertUIDMeta(ctx context.Context, m *tsdispatch.UIDMeta) error {
	return upsert(ctx, s.uidmeta, m.Key(), uidDoc{ID: m.Key(), UIDMeta: *m})
}

func (s *MongoStore) DeleteUIDMeta(ctx context.Context, m *tsdispatch.UIDMeta) error {
	return remove(ctx, s.uidmeta, m.Key())
}

func (s *MongoStore) UpsertAnnotation(ctx context.Context, a *tsdispatch.Annotation) error {
	return upsert(ctx, s.annotations, a.Key(), annotationDoc{ID: a.Key(), Annotation: *a})
}

func (s *MongoStore) DeleteAnnotation(ctx context.Context, a *tsdispatch.Annotation) error {
	return remove(ctx, s.annotations, a.Key())
}

// matching builds a case-insensitive regex filter over fields. An empty
// query matches everything.
func matching(query string, fields ...string) bson.M {
	if query == "" {
		return bson.M{}
	}
	re := primitive.Regex{Pattern: query, Options: "i"}
	or := make(bson.A, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: re})
	}
	return bson.M{"$or": or}
}

// Search implements Store.
func (s *MongoStore) Search(ctx context.Context, q *tsdispatch.SearchQuery) error {
	var (
		coll   *mongo.Collection
		filter bson.M
	)
	switch q.Type {
	case tsdispatch.SearchTSMeta, tsdispatch.SearchTSMetaSummary, tsdispatch.SearchTSUIDs:
		coll, filter = s.tsmeta, matching(q.Query, "_id", "metric", "description")
	case tsdispatch.SearchUIDMeta:
		coll, filter = s.uidmeta, matching(q.Query, "name", "displayName", "description")
	case tsdispatch.SearchAnnotation:
		coll, filter = s.annotations, matching(q.Query, "description", "notes")
	default:
		return fmt.Errorf("%w: search type %q", tsdispatch.ErrInvalidArgument, q.Type)
	}

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return fmt.Errorf("count %s: %w", coll.Name(), err)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	opts := options.Find().SetLimit(int64(limit))
	if q.StartIndex > 0 {
		opts.SetSkip(int64(q.StartIndex))
	}
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var results []any
	for cursor.Next(ctx) {
		r, err := decodeResult(q.Type, cursor)
		if err != nil {
			return err
		}
		results = append(results, r)
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("cursor %s: %w", coll.Name(), err)
	}
	q.Results = results
	q.TotalResults = int(total)
	return nil
}

func decodeResult(t tsdispatch.SearchType, cursor *mongo.Cursor) (any, error) {
	switch t {
	case tsdispatch.SearchUIDMeta:
		var d uidDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode uidmeta: %w", err)
		}
		return &d.UIDMeta, nil
	case tsdispatch.SearchAnnotation:
		var d annotationDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode annotation: %w", err)
		}
		return &d.Annotation, nil
	}
	var m tsdispatch.TSMeta
	if err := cursor.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode tsmeta: %w", err)
	}
	return Summarize(t, &m), nil
}

// Summarize shapes a TSMeta hit for the query type: the record itself, a
// summary map, or just the TSUID.
func Summarize(t tsdispatch.SearchType, m *tsdispatch.TSMeta) any {
	switch t {
	case tsdispatch.SearchTSUIDs:
		return m.TSUID
	case tsdispatch.SearchTSMetaSummary:
		return map[string]any{"tsuid": m.TSUID, "metric": m.Metric, "tags": m.Tags}
	}
	return m
}
