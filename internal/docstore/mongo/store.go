// Package mongo implements docstore.Store on top of the official MongoDB
// driver.
//
// Collections are listed per tenant using the convention that a tenant's
// collections carry the tenant id prefix "<tenantID>_" (collection names
// returned to the pipeline keep the full stored name). BSON documents are
// converted to document.Document at this boundary so nothing downstream sees
// driver types.
package mongo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docpipe/internal/docstore"
	"docpipe/internal/document"
)

func init() {
	docstore.Register("mongo", New)
}

// Store implements docstore.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to the configured MongoDB deployment and pings it so an
// unreachable store fails the run up front rather than mid-collection.
func New(ctx context.Context, cfg docstore.Config) (docstore.Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ListCollections returns the tenant's collections sorted by name so
// processing order is stable across runs.
func (s *Store) ListCollections(ctx context.Context, tenantID string) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	prefix := tenantID + "_"
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *Store) Sample(ctx context.Context, collection string, n int) ([]document.Document, error) {
	if n <= 0 {
		return nil, nil
	}
	opts := options.Find().SetLimit(int64(n))
	return s.find(ctx, collection, opts)
}

func (s *Store) LoadAll(ctx context.Context, collection string) ([]document.Document, error) {
	return s.find(ctx, collection, options.Find())
}

func (s *Store) find(ctx context.Context, collection string, opts *options.FindOptions) ([]document.Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var out []document.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		out = append(out, fromBSON(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor %s: %w", collection, err)
	}
	return out, nil
}

// fromBSON converts one decoded BSON document. The _id field becomes the
// provenance id and is removed from the field set; driver-specific scalar
// types are normalized before document.Classify sees them.
func fromBSON(raw bson.M) document.Document {
	id := ""
	if v, ok := raw["_id"]; ok {
		id = stringifyID(v)
		delete(raw, "_id")
	}

	m := make(map[string]any, len(raw))
	for k, v := range raw {
		m[k] = normalizeBSON(v)
	}
	return document.FromMap(id, m)
}

func stringifyID(v any) string {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func normalizeBSON(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Decimal128:
		return t.String()
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeBSON(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeBSON(e)
		}
		return out
	default:
		return v
	}
}
