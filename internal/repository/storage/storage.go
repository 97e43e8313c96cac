package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/trunov/framehub/internal/entities"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Thumbnailer produces the fixed-size cached derivative. A nil result means
// generation failed; storing proceeds without a thumbnail.
type Thumbnailer interface {
	Thumbnail(data []byte) []byte
}

// querier is the slice of pgxpool.Pool the storage queries run against.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type dbStorage struct {
	db     querier
	dbpool *pgxpool.Pool
	thumbs Thumbnailer
}

func New(ctx context.Context, databaseDSN string, thumbs Thumbnailer) (*dbStorage, error) {
	pool, err := pgxpool.New(ctx, databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &dbStorage{db: pool, dbpool: pool, thumbs: thumbs}, nil
}

func (s *dbStorage) Ping(ctx context.Context) error {
	return s.dbpool.Ping(ctx)
}

func (s *dbStorage) Close() {
	s.dbpool.Close()
}

const selectIDByHashQuery = `
	SELECT id FROM images WHERE content_hash = $1
`

const insertImageQuery = `
	INSERT INTO images (id, content_hash, original_url, mime_type, data, thumbnail)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (content_hash) DO NOTHING
	RETURNING id
`

// InsertImage stores image bytes deduplicated by content hash. Submitting
// bytes that already exist resolves to the existing row with IsNew=false,
// including when a concurrent writer wins the insert race.
func (s *dbStorage) InsertImage(ctx context.Context, data []byte, mimeType string, originalURL string) (entities.StoreResult, error) {
	sum := sha256.Sum256(data)
	contentHash := hex.EncodeToString(sum[:])

	existing, err := s.findIDByHash(ctx, contentHash)
	if err != nil {
		return entities.StoreResult{}, classifyError(err, "insert image: lookup by hash")
	}
	if existing != "" {
		return entities.StoreResult{ID: existing, IsNew: false}, nil
	}

	// Best-effort: a failed thumbnail never aborts the store.
	var thumbnail []byte
	if s.thumbs != nil {
		thumbnail = s.thumbs.Thumbnail(data)
	}

	var urlParam *string
	if originalURL != "" {
		urlParam = &originalURL
	}

	id := uuid.NewString()
	insertedID, err := withRetry(ctx, func(ctx context.Context) (string, error) {
		var got string
		err := s.db.QueryRow(ctx, insertImageQuery,
			id, contentHash, urlParam, mimeType, data, thumbnail,
		).Scan(&got)
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict suppressed the insert: another writer won the race.
			return "", nil
		}
		return got, err
	})
	if err != nil {
		return entities.StoreResult{}, classifyError(err, "insert image")
	}
	if insertedID != "" {
		return entities.StoreResult{ID: insertedID, IsNew: true}, nil
	}

	winner, err := s.findIDByHash(ctx, contentHash)
	if err != nil {
		return entities.StoreResult{}, classifyError(err, "insert image: race fallback")
	}
	if winner != "" {
		return entities.StoreResult{ID: winner, IsNew: false}, nil
	}

	// Unreachable unless something deleted the winning row between the
	// suppressed insert and the re-query.
	return entities.StoreResult{}, NewError(CodeInsertFailed,
		"failed to insert image and no existing row found for its hash")
}

func (s *dbStorage) findIDByHash(ctx context.Context, contentHash string) (string, error) {
	return withRetry(ctx, func(ctx context.Context) (string, error) {
		var id string
		err := s.db.QueryRow(ctx, selectIDByHashQuery, contentHash).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return id, err
	})
}

const selectImageQuery = `
	SELECT id, content_hash, original_url, mime_type, data, thumbnail, created_at
	FROM images
	WHERE id = $1
`

// GetImage fetches a full image row by id. A missing id yields (nil, nil),
// not an error.
func (s *dbStorage) GetImage(ctx context.Context, id string) (*entities.Image, error) {
	img, err := withRetry(ctx, func(ctx context.Context) (*entities.Image, error) {
		var img entities.Image
		err := s.db.QueryRow(ctx, selectImageQuery, id).Scan(
			&img.ID,
			&img.ContentHash,
			&img.OriginalURL,
			&img.MimeType,
			&img.Data,
			&img.Thumbnail,
			&img.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		return &img, nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyError(err, "get image")
	}
	return img, nil
}

const selectImageDataQuery = `
	SELECT data, mime_type FROM images WHERE id = $1
`

// GetImageData returns the original blob and its mime type for the
// transcoder's stored-id path.
func (s *dbStorage) GetImageData(ctx context.Context, id string) ([]byte, string, error) {
	type blob struct {
		data []byte
		mime string
	}
	b, err := withRetry(ctx, func(ctx context.Context) (blob, error) {
		var b blob
		err := s.db.QueryRow(ctx, selectImageDataQuery, id).Scan(&b.data, &b.mime)
		return b, err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", NewError(CodeNotFound, fmt.Sprintf("image not found: %s", id))
	}
	if err != nil {
		return nil, "", classifyError(err, "get image data")
	}
	return b.data, b.mime, nil
}

const listImagesQuery = `
	SELECT id, content_hash, original_url, mime_type, thumbnail IS NOT NULL, created_at
	FROM images
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2
`

// ListImages returns newest-first metadata without blob payloads. Limit and
// offset are clamped server-side regardless of caller-supplied values.
func (s *dbStorage) ListImages(ctx context.Context, limit, offset int) ([]entities.ImageMetadata, error) {
	limit, offset = clampPage(limit, offset)

	items, err := withRetry(ctx, func(ctx context.Context) ([]entities.ImageMetadata, error) {
		rows, err := s.db.Query(ctx, listImagesQuery, limit, offset)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		items := make([]entities.ImageMetadata, 0, limit)
		for rows.Next() {
			var m entities.ImageMetadata
			if err := rows.Scan(
				&m.ID,
				&m.ContentHash,
				&m.OriginalURL,
				&m.MimeType,
				&m.HasThumbnail,
				&m.CreatedAt,
			); err != nil {
				return nil, err
			}
			items = append(items, m)
		}
		return items, rows.Err()
	})
	if err != nil {
		return nil, classifyError(err, "list images")
	}
	return items, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

const selectThumbnailQuery = `
	SELECT thumbnail FROM images WHERE id = $1
`

const selectImageBlobQuery = `
	SELECT data FROM images WHERE id = $1
`

const updateThumbnailQuery = `
	UPDATE images SET thumbnail = $1 WHERE id = $2 AND thumbnail IS NULL
`

// GetThumbnail returns the cached thumbnail, generating and persisting it on
// first access. The cached path reads the thumbnail column only; the original
// blob is fetched solely when generation is needed. Generation failure returns
// (nil, nil): a thumbnail is a convenience, not a correctness requirement.
func (s *dbStorage) GetThumbnail(ctx context.Context, id string) ([]byte, error) {
	cached, err := withRetry(ctx, func(ctx context.Context) ([]byte, error) {
		var thumb []byte
		err := s.db.QueryRow(ctx, selectThumbnailQuery, id).Scan(&thumb)
		return thumb, err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewError(CodeNotFound, fmt.Sprintf("image not found: %s", id))
	}
	if err != nil {
		return nil, classifyError(err, "get thumbnail")
	}
	if cached != nil {
		return cached, nil
	}

	if s.thumbs == nil {
		return nil, nil
	}

	data, err := withRetry(ctx, func(ctx context.Context) ([]byte, error) {
		var data []byte
		err := s.db.QueryRow(ctx, selectImageBlobQuery, id).Scan(&data)
		return data, err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewError(CodeNotFound, fmt.Sprintf("image not found: %s", id))
	}
	if err != nil {
		return nil, classifyError(err, "get thumbnail: load blob")
	}

	thumbnail := s.thumbs.Thumbnail(data)
	if thumbnail == nil {
		return nil, nil
	}

	// Persist for O(1) future reads. Concurrent regeneration is idempotent,
	// so a lost update here costs one redundant resize at worst.
	_, err = withRetry(ctx, func(ctx context.Context) (struct{}, error) {
		_, err := s.db.Exec(ctx, updateThumbnailQuery, thumbnail, id)
		return struct{}{}, err
	})
	if err != nil {
		log.Warn().Str("image_id", id).Err(err).Msg("failed to persist generated thumbnail")
	}

	return thumbnail, nil
}
