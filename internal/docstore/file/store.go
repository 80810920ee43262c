// Package file implements docstore.Store over a directory of JSON files,
// for local runs and fixtures without a MongoDB deployment.
//
// Layout: <URI>/<Database>/<collection>.json, one file per collection (the
// Database segment is skipped when empty). A file may hold a root JSON array
// of objects, a stream of newline-delimited objects, an envelope object
// whose first array-of-objects field holds the records, or a single object.
// Tenant scoping follows the same "<tenantID>_" name-prefix convention as
// the mongo backend.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docpipe/internal/docstore"
	"docpipe/internal/document"
)

func init() {
	docstore.Register("file", New)
}

// Store implements docstore.Store.
type Store struct {
	root string
}

// New validates that the configured directory exists. Files are read lazily
// per call so a run always sees the current on-disk state.
func New(ctx context.Context, cfg docstore.Config) (docstore.Store, error) {
	root := filepath.Join(cfg.URI, cfg.Database)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("file docstore: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file docstore: %s is not a directory", root)
	}
	return &Store{root: root}, nil
}

func (s *Store) Close(ctx context.Context) error { return nil }

func (s *Store) ListCollections(ctx context.Context, tenantID string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	prefix := tenantID + "_"
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		name = strings.TrimSuffix(name, ".json")
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	docs, err := s.read(ctx, collection, -1)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (s *Store) Sample(ctx context.Context, collection string, n int) ([]document.Document, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.read(ctx, collection, n)
}

func (s *Store) LoadAll(ctx context.Context, collection string) ([]document.Document, error) {
	return s.read(ctx, collection, -1)
}

// read streams up to limit documents from the collection file; limit < 0
// means all.
func (s *Store) read(ctx context.Context, collection string, limit int) ([]document.Document, error) {
	f, err := os.Open(filepath.Join(s.root, collection+".json"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", collection, err)
	}
	defer f.Close()

	var out []document.Document
	n := 0
	emit := func(obj map[string]any) bool {
		out = append(out, fromMap(collection, n, obj))
		n++
		return limit < 0 || n < limit
	}

	if err := streamObjects(ctx, f, emit); err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return out, nil
}

// streamObjects decodes record objects from r and hands each to emit until
// emit returns false or the input ends. The accepted shapes mirror what
// exports in the wild actually look like: a root array, an envelope object,
// a bare object, and trailing newline-delimited objects after any of them.
func streamObjects(ctx context.Context, r io.Reader, emit func(map[string]any) bool) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("first token: %w", err)
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("unsupported root token %v", tok)
	}

	switch d {
	case '[':
		if more, err := streamArray(ctx, dec, emit); err != nil || !more {
			return err
		}
	case '{':
		obj, streamed, more, err := streamEnvelope(ctx, dec, emit)
		if err != nil {
			return err
		}
		if !streamed {
			if !emit(obj) {
				return nil
			}
		}
		if !more {
			return nil
		}
	default:
		return fmt.Errorf("unsupported root delimiter %q", d)
	}

	// Trailing JSONL objects after the root value.
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return fmt.Errorf("trailing object: %w", err)
		}
		if !emit(obj) {
			return nil
		}
	}
	return nil
}

// streamArray consumes array elements up to and including the closing
// bracket. Non-object elements are skipped.
func streamArray(ctx context.Context, dec *json.Decoder, emit func(map[string]any) bool) (bool, error) {
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		var el any
		if err := dec.Decode(&el); err != nil {
			return false, fmt.Errorf("array element: %w", err)
		}
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if !emit(obj) {
			return false, nil
		}
	}
	if _, err := dec.Token(); err != nil {
		return false, fmt.Errorf("array end: %w", err)
	}
	return true, nil
}

// streamEnvelope reads a root object. If a field holds an array of objects,
// those become the records (first such field wins) and the remaining fields
// are ignored. Otherwise the object itself is the single record, returned
// for the caller to emit.
func streamEnvelope(ctx context.Context, dec *json.Decoder, emit func(map[string]any) bool) (obj map[string]any, streamed, more bool, err error) {
	obj = map[string]any{}
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, false, false, err
		}

		keyTok, err := dec.Token()
		if err != nil {
			return nil, false, false, fmt.Errorf("envelope key: %w", err)
		}
		key, _ := keyTok.(string)

		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, false, false, fmt.Errorf("envelope value %q: %w", key, err)
		}

		if !streamed {
			if records, ok := objectSlice(val); ok {
				streamed = true
				for _, rec := range records {
					if !emit(rec) {
						return nil, true, false, nil
					}
				}
				continue
			}
		}
		obj[key] = val
	}
	if _, err := dec.Token(); err != nil {
		return nil, false, false, fmt.Errorf("envelope end: %w", err)
	}
	return obj, streamed, true, nil
}

// objectSlice reports whether val is a non-empty array of objects.
func objectSlice(val any) ([]map[string]any, bool) {
	arr, ok := val.([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	out := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, obj)
	}
	return out, true
}

// fromMap mirrors the mongo backend's boundary conversion: "_id" becomes the
// provenance id and leaves the field set; documents without one get a stable
// positional id.
func fromMap(collection string, n int, obj map[string]any) document.Document {
	id := fmt.Sprintf("%s:%d", collection, n)
	if v, ok := obj["_id"]; ok {
		id = fmt.Sprint(v)
		delete(obj, "_id")
	}
	return document.FromMap(id, obj)
}
