package docstore

import (
	"context"
	"testing"

	"docpipe/internal/document"
)

type nullStore struct{ kind string }

func (nullStore) ListCollections(ctx context.Context, tenantID string) ([]string, error) {
	return nil, nil
}
func (nullStore) Count(ctx context.Context, collection string) (int64, error) { return 0, nil }
func (nullStore) Sample(ctx context.Context, collection string, n int) ([]document.Document, error) {
	return nil, nil
}
func (nullStore) LoadAll(ctx context.Context, collection string) ([]document.Document, error) {
	return nil, nil
}
func (nullStore) Close(ctx context.Context) error { return nil }

func TestNew_SelectsRegisteredFactory(t *testing.T) {
	Register("fake-a", func(ctx context.Context, cfg Config) (Store, error) {
		return nullStore{kind: "fake-a"}, nil
	})
	Register("fake-b", func(ctx context.Context, cfg Config) (Store, error) {
		return nullStore{kind: "fake-b"}, nil
	})

	s, err := New(context.Background(), Config{Kind: "fake-b"})
	if err != nil {
		t.Fatalf("New()=%v", err)
	}
	if got := s.(nullStore).kind; got != "fake-b" {
		t.Fatalf("kind=%q, want fake-b", got)
	}
}

func TestNew_MissingAndUnknownKind(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("New() with empty kind succeeded, want error")
	}
	if _, err := New(context.Background(), Config{Kind: "nope"}); err == nil {
		t.Error("New() with unknown kind succeeded, want error")
	}
}

func TestRegister_Panics(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s did not panic", name)
			}
		}()
		fn()
	}

	f := func(ctx context.Context, cfg Config) (Store, error) { return nullStore{}, nil }
	mustPanic("empty kind", func() { Register("", f) })
	mustPanic("nil factory", func() { Register("fake-nil", nil) })

	Register("fake-dup", f)
	mustPanic("duplicate", func() { Register("fake-dup", f) })
}
