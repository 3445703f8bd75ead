package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/memories/internal/cache"
	"github.com/debemdeboas/memories/internal/db"
	"github.com/debemdeboas/memories/internal/model"
	"github.com/debemdeboas/memories/internal/util/compression"
)

type DBMemoryRepository struct { // implements MemoryRepository
	memoriesCache *cache.Cache[model.MemoryID, *model.Memory]

	db         db.DB
	compressor compression.Compressor

	now func() time.Time
}

func NewDBMemoryRepository(db db.DB) *DBMemoryRepository {
	return &DBMemoryRepository{
		memoriesCache: cache.NewCache[model.MemoryID, *model.Memory](),

		db: db,

		compressor: compression.ZstdCompressor{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *DBMemoryRepository) CreateMemory(ctx context.Context, m model.NewMemory) (*model.Memory, error) {
	mem := &model.Memory{
		ID:          model.MemoryID(uuid.New().String()),
		Title:       m.Title,
		Description: m.Description,
		Location:    m.Location,
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
		IsPublic:    m.IsPublic,
		Owner:       m.Owner,
		CreatedDate: r.now(),
		Photos:      make([]model.Photo, len(m.PhotoURLs)),
	}
	for i, u := range m.PhotoURLs {
		mem.Photos[i] = model.Photo{URL: u, Position: i}
	}

	description, err := r.compress(m.Description)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (id, title, description, address, lat, lng, start_date, end_date, is_public, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mem.ID, mem.Title, description, mem.Location.Address, mem.Location.Lat, mem.Location.Lng,
		mem.StartDate, mem.EndDate, mem.IsPublic, nullable(string(mem.Owner)), mem.CreatedDate,
	)
	if err != nil {
		return nil, fmt.Errorf("error saving memory: %w", err)
	}

	for _, p := range mem.Photos {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO photos (memory_id, position, url) VALUES (?, ?, ?)`,
			mem.ID, p.Position, p.URL,
		); err != nil {
			return nil, fmt.Errorf("error saving photo %d: %w", p.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing memory: %w", err)
	}

	r.memoriesCache.Set(mem.ID, mem)
	repoLogger.Debug().Str("memory_id", string(mem.ID)).Int("photos", len(mem.Photos)).Msg("Memory saved")

	return mem, nil
}

func (r *DBMemoryRepository) GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	if mem, ok := r.memoriesCache.Get(id); ok {
		return mem, nil
	}

	rows, err := r.db.Get().QueryContext(ctx, selectMemories+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("error querying memory: %w", err)
	}
	memories, err := r.scanMemories(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(memories) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMemoryNotFound, id)
	}

	mem := &memories[0]
	r.memoriesCache.Set(id, mem)
	return mem, nil
}

const selectMemories = `SELECT id, title, description, address, lat, lng, start_date, end_date, is_public, user_id, created_at FROM memories`

func (r *DBMemoryRepository) scanMemories(ctx context.Context, rows *sql.Rows) ([]model.Memory, error) {
	defer rows.Close()

	memories := make([]model.Memory, 0)
	for rows.Next() {
		var mem model.Memory
		var compressed []byte
		var owner sql.NullString

		err := rows.Scan(
			&mem.ID, &mem.Title, &compressed, &mem.Location.Address, &mem.Location.Lat, &mem.Location.Lng,
			&mem.StartDate, &mem.EndDate, &mem.IsPublic, &owner, &mem.CreatedDate,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning memory: %w", err)
		}
		mem.Owner = model.UserID(owner.String)

		if mem.Description, err = r.decompress(compressed); err != nil {
			return nil, fmt.Errorf("error decompressing description: %w", err)
		}
		memories = append(memories, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading memories: %w", err)
	}
	// Photos are loaded after the memories cursor is closed: an in-memory
	// database has a single connection.
	rows.Close()

	for i := range memories {
		photos, err := r.photos(ctx, memories[i].ID)
		if err != nil {
			return nil, err
		}
		memories[i].Photos = photos
	}
	return memories, nil
}

func (r *DBMemoryRepository) photos(ctx context.Context, id model.MemoryID) ([]model.Photo, error) {
	rows, err := r.db.Get().QueryContext(ctx,
		`SELECT url, position FROM photos WHERE memory_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("error querying photos: %w", err)
	}
	defer rows.Close()

	photos := make([]model.Photo, 0)
	for rows.Next() {
		var p model.Photo
		if err := rows.Scan(&p.URL, &p.Position); err != nil {
			return nil, fmt.Errorf("error scanning photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (r *DBMemoryRepository) compress(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := r.compressor.Compress([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("error compressing description: %w", err)
	}
	return b, nil
}

func (r *DBMemoryRepository) decompress(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	out, err := r.compressor.Decompress(b)
	return string(out), err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ MemoryRepository = (*DBMemoryRepository)(nil)
