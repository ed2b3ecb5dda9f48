package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "kv", "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	mr := miniredis.RunT(t)
	rdb := &Redis{
		client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		logger: zerolog.Nop(),
	}
	t.Cleanup(func() { rdb.Close() })

	return map[string]Backend{
		"memory": NewMemory(),
		"sqlite": sqlite,
		"redis":  rdb,
	}
}

func TestBackendContract(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := b.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get missing err = %v, want ErrNotFound", err)
			}

			if err := b.Set(ctx, "motd:a:1", []byte(`{"x":1}`)); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := b.Set(ctx, "motd:a:2", []byte(`2`)); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := b.Set(ctx, "motd:b", []byte(`3`)); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := b.Set(ctx, "motd:a:1", []byte(`{"x":2}`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}

			got, err := b.Get(ctx, "motd:a:1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if string(got) != `{"x":2}` {
				t.Fatalf("value = %s, want overwritten", got)
			}

			keys, err := b.Keys(ctx, "motd:a:")
			if err != nil {
				t.Fatalf("keys: %v", err)
			}
			if diff := cmp.Diff([]string{"motd:a:1", "motd:a:2"}, keys); diff != "" {
				t.Fatalf("keys mismatch (-want +got):\n%s", diff)
			}

			if err := b.Delete(ctx, "motd:a:1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := b.Get(ctx, "motd:a:1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get after delete err = %v", err)
			}
			if err := b.Delete(ctx, "never-set"); err != nil {
				t.Fatalf("delete missing key should be a no-op: %v", err)
			}
			if _, err := b.Get(ctx, "motd:b"); err != nil {
				t.Fatalf("unrelated key affected: %v", err)
			}
		})
	}
}

func TestKeysPrefixWithGlobCharacters(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = b.Set(ctx, "weird*key", []byte("1"))
			_ = b.Set(ctx, "weirdXkey", []byte("2"))
			keys, err := b.Keys(ctx, "weird*")
			if err != nil {
				t.Fatalf("keys: %v", err)
			}
			if diff := cmp.Diff([]string{"weird*key"}, keys); diff != "" {
				t.Fatalf("keys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	buf := []byte("abc")
	_ = m.Set(ctx, "k", buf)
	buf[0] = 'z'
	got, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("stored value mutated through caller slice: %s", got)
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := wrap("set", "k", inner)
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %T", err)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("StorageError should unwrap to cause")
	}
	if wrap("get", "k", ErrNotFound) != ErrNotFound {
		t.Fatalf("ErrNotFound must not be wrapped")
	}
}
