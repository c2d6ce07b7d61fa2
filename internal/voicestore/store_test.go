package voicestore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tornado-trebuchet/tts-server/internal/config"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := Open(context.Background(), config.VoicesConfig{Path: filepath.Join(dir, "voices.db")}, log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, Voice{
		Name:     "narrator",
		Language: "en",
		Metadata: map[string]string{"origin": "clone"},
	}, []byte("RIFF fake sample"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == uuid.Nil {
		t.Fatal("Save did not assign an id")
	}
	if saved.SamplePath == "" {
		t.Fatal("Save did not record a sample path")
	}
	if _, err := os.Stat(saved.SamplePath); err != nil {
		t.Fatalf("reference sample not written: %v", err)
	}

	got, err := store.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "narrator" || got.Language != "en" {
		t.Fatalf("Get returned %+v", got)
	}
	if got.Metadata["origin"] != "clone" {
		t.Fatalf("metadata not round-tripped: %+v", got.Metadata)
	}
}

func TestGetMissing(t *testing.T) {
	store := newStore(t)
	_, err := store.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	store.clock = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	for _, name := range []string{"first", "second", "third"} {
		if _, err := store.Save(ctx, Voice{Name: name, Language: "en"}, []byte("s")); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}

	voices, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(voices) != 3 {
		t.Fatalf("List returned %d voices, want 3", len(voices))
	}
	if voices[0].Name != "third" || voices[2].Name != "first" {
		t.Fatalf("List order wrong: %s, %s, %s", voices[0].Name, voices[1].Name, voices[2].Name)
	}
}

func TestDeleteRemovesSample(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, Voice{Name: "temp", Language: "en"}, []byte("s"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	existed, err := store.Delete(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !existed {
		t.Fatal("Delete reported voice missing")
	}
	if _, err := os.Stat(saved.SamplePath); !os.IsNotExist(err) {
		t.Fatalf("reference sample still present after delete: %v", err)
	}
	if _, err := store.Get(ctx, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}

	existed, err = store.Delete(ctx, saved.ID)
	if err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if existed {
		t.Fatal("second Delete reported voice present")
	}
}

func TestExists(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, Voice{Name: "here", Language: "en"}, []byte("s"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	ok, err := store.Exists(ctx, saved.ID)
	if err != nil || !ok {
		t.Fatalf("Exists(saved) = %v, %v", ok, err)
	}
	ok, err = store.Exists(ctx, uuid.New())
	if err != nil || ok {
		t.Fatalf("Exists(random) = %v, %v", ok, err)
	}
}
