package repository

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/debemdeboas/memories/internal/db"
	"github.com/debemdeboas/memories/internal/model"
)

func setupTestDB(t *testing.T) *db.SQLite {
	t.Helper()
	sqlite := db.NewSQLite(filepath.Join(t.TempDir(), "memories.db"))
	if err := sqlite.InitDB(); err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return sqlite
}

func newMemory(owner model.UserID, public bool, urls ...string) model.NewMemory {
	lat, lng := 38.72, -9.14
	return model.NewMemory{
		Title:       "Lisbon",
		Description: "Trams, tiles and a lot of pastel de nata",
		Location:    model.Location{Address: "Lisbon, Portugal", Lat: &lat, Lng: &lng},
		StartDate:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC),
		IsPublic:    public,
		PhotoURLs:   urls,
		Owner:       owner,
	}
}

func TestCreateMemory(t *testing.T) {
	sqlite := setupTestDB(t)
	repo := NewDBMemoryRepository(sqlite)
	ctx := context.Background()

	urls := []string{"https://cdn.test/c", "https://cdn.test/a", "https://cdn.test/b"}
	mem, err := repo.CreateMemory(ctx, newMemory("u1", false, urls...))
	if err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}

	t.Run("Photos keep request order", func(t *testing.T) {
		// A fresh repository bypasses the cache.
		got, err := NewDBMemoryRepository(sqlite).GetMemory(ctx, mem.ID)
		if err != nil {
			t.Fatalf("Failed to get memory: %v", err)
		}
		if len(got.Photos) != len(urls) {
			t.Fatalf("Expected %d photos, got %d", len(urls), len(got.Photos))
		}
		for i, p := range got.Photos {
			if p.URL != urls[i] || p.Position != i {
				t.Errorf("Photo %d: expected %s at %d, got %s at %d", i, urls[i], i, p.URL, p.Position)
			}
		}
	})

	t.Run("Fields survive storage", func(t *testing.T) {
		got, err := NewDBMemoryRepository(sqlite).GetMemory(ctx, mem.ID)
		if err != nil {
			t.Fatalf("Failed to get memory: %v", err)
		}
		if got.Description != mem.Description {
			t.Errorf("Expected description %q, got %q", mem.Description, got.Description)
		}
		if got.Location.Lat == nil || *got.Location.Lat != 38.72 {
			t.Errorf("Expected latitude 38.72, got %v", got.Location.Lat)
		}
		if !got.StartDate.Equal(mem.StartDate) || !got.EndDate.Equal(mem.EndDate) {
			t.Errorf("Expected dates %s-%s, got %s-%s", mem.StartDate, mem.EndDate, got.StartDate, got.EndDate)
		}
		if got.Owner != "u1" || got.IsPublic {
			t.Errorf("Unexpected owner/visibility: %s %v", got.Owner, got.IsPublic)
		}
	})

	t.Run("Description is stored compressed", func(t *testing.T) {
		var raw []byte
		if err := sqlite.Get().QueryRow(`SELECT description FROM memories WHERE id = ?`, mem.ID).Scan(&raw); err != nil {
			t.Fatalf("Failed to read raw description: %v", err)
		}
		// zstd frame magic number, little endian 0xFD2FB528
		if !bytes.HasPrefix(raw, []byte{0x28, 0xB5, 0x2F, 0xFD}) {
			t.Errorf("Expected a zstd frame, got %x", raw)
		}
		got, err := repo.decompress(raw)
		if err != nil {
			t.Fatalf("Failed to decompress raw description: %v", err)
		}
		if want := newMemory("u1", false).Description; got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})
}

func TestCreateMemoryWithoutPhotosOrCoordinates(t *testing.T) {
	sqlite := setupTestDB(t)
	repo := NewDBMemoryRepository(sqlite)
	ctx := context.Background()

	req := newMemory("", true)
	req.Location = model.Location{Address: "Somewhere"}
	req.Description = ""

	mem, err := repo.CreateMemory(ctx, req)
	if err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}
	got, err := NewDBMemoryRepository(sqlite).GetMemory(ctx, mem.ID)
	if err != nil {
		t.Fatalf("Failed to get memory: %v", err)
	}
	if got.Location.Lat != nil || got.Location.Lng != nil {
		t.Error("Expected nil coordinates")
	}
	if len(got.Photos) != 0 || got.Description != "" || got.Owner != "" {
		t.Errorf("Unexpected memory: %+v", got)
	}
}

func TestGetMemoryNotFound(t *testing.T) {
	repo := NewDBMemoryRepository(setupTestDB(t))

	_, err := repo.GetMemory(context.Background(), "missing")
	if !errors.Is(err, ErrMemoryNotFound) {
		t.Errorf("Expected ErrMemoryNotFound, got %v", err)
	}
}

func TestCreateMemoryFailsOnClosedDB(t *testing.T) {
	sqlite := setupTestDB(t)
	repo := NewDBMemoryRepository(sqlite)
	sqlite.Close()

	if _, err := repo.CreateMemory(context.Background(), newMemory("u1", false, "x")); err == nil {
		t.Error("Expected error when the database is unavailable")
	}
}
