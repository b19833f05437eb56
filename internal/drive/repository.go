package drive

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gauner-audio/backend/internal/models"
)

// UploadRow is one persisted upload record with its local identity.
type UploadRow struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	FileID     string    `json:"file_id"`
	FileURL    string    `json:"file_url"`
	FolderID   string    `json:"folder_id"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Repository persists upload records in PostgreSQL. Records are written once
// per successful upload and never updated.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an upload record repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one upload record.
func (r *Repository) Record(ctx context.Context, userID, filename string, size int64, rec *models.UploadedFileRecord) error {
	const q = `INSERT INTO uploads (user_id, file_id, file_url, folder_id, filename, size_bytes, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, q, userID, rec.FileID, rec.FileURL, rec.FolderID, filename, size, rec.UploadedAt)
	return err
}

// ListByUser returns a user's upload history, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]UploadRow, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, user_id, file_id, file_url, folder_id, filename, size_bytes, uploaded_at
		FROM uploads WHERE user_id = $1 ORDER BY uploaded_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []UploadRow
	for rows.Next() {
		var u UploadRow
		if err := rows.Scan(&u.ID, &u.UserID, &u.FileID, &u.FileURL, &u.FolderID, &u.Filename, &u.SizeBytes, &u.UploadedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
