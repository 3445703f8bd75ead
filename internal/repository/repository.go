// Package repository persists memory records. It is the record store a
// finalized draft is bound into.
package repository

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/memories/internal/model"
)

var repoLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

var ErrMemoryNotFound = errors.New("memory not found")

type MemoryRepository interface {
	// CreateMemory stores the memory and its photos atomically. Photo
	// positions follow the order of NewMemory.PhotoURLs.
	CreateMemory(ctx context.Context, m model.NewMemory) (*model.Memory, error)
	GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error)
}
