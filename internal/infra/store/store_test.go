package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ocentra/matchproof/internal/domain"
)

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	url, err := mem.Put(ctx, "matches/m-1.json", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "matches/m-1.json" {
		t.Fatalf("url = %q", url)
	}

	data, err := mem.Get(ctx, "matches/m-1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("data = %s", data)
	}

	if _, err := mem.Get(ctx, "matches/absent.json"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_BaseURL(t *testing.T) {
	mem := NewMemory().WithBaseURL("https://hot.example.com")
	url, err := mem.Put(context.Background(), "k", []byte("v"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "https://hot.example.com/k" {
		t.Fatalf("url = %q", url)
	}
}

func TestMemory_CopiesData(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	data := []byte("original")
	if _, err := mem.Put(ctx, "k", data); err != nil {
		t.Fatalf("put: %v", err)
	}
	data[0] = 'X'
	got, err := mem.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("stored object aliased caller slice: %s", got)
	}
}

func TestBolt_RoundTripAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "matchproof.db")

	b, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := b.Put(ctx, "batches/b-1.json", []byte(`{"batch_id":"b-1"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := b.Get(ctx, "batches/b-1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"batch_id":"b-1"}` {
		t.Fatalf("data = %s", data)
	}
	if _, err := b.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	data, err = reopened.Get(ctx, "batches/b-1.json")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(data) != `{"batch_id":"b-1"}` {
		t.Fatalf("data after reopen = %s", data)
	}
}
