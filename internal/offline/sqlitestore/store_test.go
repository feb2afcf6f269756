package sqlitestore

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/mamadbah2/greenconsole/internal/offline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func entry(key, body string, storedAt time.Time) offline.Entry {
	header := http.Header{}
	header.Set("Content-Type", "text/css")
	return offline.Entry{
		Key:      "GET " + key,
		URL:      key,
		Response: &offline.Response{Status: 200, StatusText: "OK", Header: header, Body: []byte(body)},
		StoredAt: storedAt,
	}
}

func TestStorePutGetMatch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	stored := time.UnixMilli(1_760_000_000_000)

	if err := store.Put(ctx, "green-api-static-v1.0.0", entry("http://localhost:8080/styles/main.css", "body{}", stored)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := store.Get(ctx, "green-api-static-v1.0.0", "GET http://localhost:8080/styles/main.css")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if string(got.Response.Body) != "body{}" || got.Response.Header.Get("Content-Type") != "text/css" {
		t.Fatalf("Get() response = %+v", got.Response)
	}
	if !got.StoredAt.Equal(stored) {
		t.Fatalf("StoredAt = %v, want %v", got.StoredAt, stored)
	}

	if _, ok, _ := store.Match(ctx, "GET http://localhost:8080/styles/main.css"); !ok {
		t.Fatal("Match() missed stored entry")
	}
	if _, ok, _ := store.Match(ctx, "GET http://localhost:8080/absent.css"); ok {
		t.Fatal("Match() found absent entry")
	}
}

func TestStoreLastWriteWins(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_ = store.Put(ctx, "dyn", entry("http://x/a", "first", time.Now()))
	_ = store.Put(ctx, "dyn", entry("http://x/a", "second", time.Now()))

	entries, err := store.Entries(ctx, "dyn")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 1 || string(entries[0].Response.Body) != "second" {
		t.Fatalf("Entries() = %+v", entries)
	}
}

func TestStoreNamespaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"green-api-static-v0.9.0", "green-api-static-v1.0.0"} {
		if err := store.Open(ctx, name); err != nil {
			t.Fatalf("Open(%s) error = %v", name, err)
		}
	}
	_ = store.Put(ctx, "green-api-static-v0.9.0", entry("http://x/old.js", "old", time.Now()))

	deleted, err := store.Delete(ctx, "green-api-static-v0.9.0")
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v", deleted, err)
	}
	names, _ := store.Names(ctx)
	if len(names) != 1 || names[0] != "green-api-static-v1.0.0" {
		t.Fatalf("Names() = %v", names)
	}
	if _, ok, _ := store.Match(ctx, "GET http://x/old.js"); ok {
		t.Fatal("entry survived namespace deletion")
	}

	if err := store.Remove(ctx, "green-api-static-v1.0.0", "GET http://x/none"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
}
