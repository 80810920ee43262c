package storage

import (
	"context"
	"strings"
	"testing"

	"docpipe/internal/catalog"
)

type fakeStore struct{}

func (fakeStore) Ping(context.Context) error         { return nil }
func (fakeStore) EnsureTables(context.Context) error { return nil }
func (fakeStore) InsertBatch(context.Context, string, []string, [][]any) (int64, error) {
	return 0, nil
}
func (fakeStore) Close() {}

func TestNew_SelectsRegisteredFactory(t *testing.T) {
	Register("fake-ok", func(ctx context.Context, cfg Config) (Store, error) {
		return fakeStore{}, nil
	})

	st, err := New(context.Background(), Config{Kind: "fake-ok", DSN: "x"})
	if err != nil {
		t.Fatalf("New()=%v", err)
	}
	if _, ok := st.(fakeStore); !ok {
		t.Fatalf("New() returned %T, want fakeStore", st)
	}
}

func TestNew_MissingKind(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("New() with empty kind succeeded, want error")
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "no-such-backend"})
	if err == nil || !strings.Contains(err.Error(), "no-such-backend") {
		t.Fatalf("New()=%v, want unsupported-kind error", err)
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	Register("fake-dup", func(ctx context.Context, cfg Config) (Store, error) {
		return fakeStore{}, nil
	})
	defer func() {
		if recover() == nil {
			t.Fatal("second Register did not panic")
		}
	}()
	Register("fake-dup", func(ctx context.Context, cfg Config) (Store, error) {
		return fakeStore{}, nil
	})
}

func TestUniqueIndexColumns_TenantFirst(t *testing.T) {
	t.Parallel()

	tab, _ := catalog.Lookup("sales_orders")
	got := UniqueIndexColumns(tab)
	want := []string{"tenant_id", "customer_name", "order_date", "total_amount"}
	if len(got) != len(want) {
		t.Fatalf("UniqueIndexColumns()=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UniqueIndexColumns()[%d]=%s, want %s", i, got[i], want[i])
		}
	}
}
