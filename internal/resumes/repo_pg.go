package resumes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new resume.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO resumes (
    id,
    user_id,
    content,
    created_at,
    updated_at
) VALUES ($1, $2, $3::jsonb, $4, $5)`

	content, err := encodeContent(rec.Content)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		content,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

// GetByID fetches a resume by ID.
func (r *PGRepo) GetByID(ctx context.Context, resumeID string) (Record, error) {
	const query = `
SELECT id, user_id, content, created_at, updated_at
FROM resumes
WHERE id = $1
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, resumeID))
}

// GetLatestByUser returns the most recently updated resume for a user.
func (r *PGRepo) GetLatestByUser(ctx context.Context, userID string) (Record, error) {
	const query = `
SELECT id, user_id, content, created_at, updated_at
FROM resumes
WHERE user_id = $1
ORDER BY updated_at DESC
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userID))
}

// UpdateContent replaces the content of a resume.
func (r *PGRepo) UpdateContent(ctx context.Context, resumeID string, content Document, updatedAt time.Time) error {
	const query = `
UPDATE resumes
SET content = $1::jsonb, updated_at = $2
WHERE id = $3`
	encoded, err := encodeContent(content)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, encoded, updatedAt, resumeID)
	if err != nil {
		return err
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimGuest reassigns every resume of guestUserID to authedUserID.
func (r *PGRepo) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE resumes SET user_id = $1 WHERE user_id = $2`, authedUserID, guestUserID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *PGRepo) scanOne(row *sql.Row) (Record, error) {
	var rec Record
	var content []byte
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&content,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &rec.Content); err != nil {
			return Record{}, fmt.Errorf("decode resume content: %w", err)
		}
	}
	if rec.Content == nil {
		rec.Content = Document{}
	}
	return rec, nil
}

func encodeContent(doc Document) (string, error) {
	if doc == nil {
		doc = Document{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode resume content: %w", err)
	}
	return string(data), nil
}

var _ Repo = (*PGRepo)(nil)
