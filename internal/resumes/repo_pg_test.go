package resumes

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateEncodesContent(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	rec := Record{
		ID:        "resume-1",
		UserID:    "user-1",
		Content:   Document{FieldSummary: "hi"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO resumes").
		WithArgs(rec.ID, rec.UserID, `{"summary":"hi"}`, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDDecodesContent(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "user_id", "content", "created_at", "updated_at"}).
		AddRow("resume-1", "user-1", []byte(`{"skills":["Go"]}`), now, now)
	mock.ExpectQuery("SELECT id, user_id, content, created_at, updated_at FROM resumes WHERE id").
		WithArgs("resume-1").
		WillReturnRows(rows)

	rec, err := repo.GetByID(context.Background(), "resume-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	skills, ok := rec.Content[FieldSkills].([]any)
	if !ok || len(skills) != 1 || skills[0] != "Go" {
		t.Fatalf("unexpected content: %#v", rec.Content)
	}
	if !rec.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected updated_at %v", rec.UpdatedAt)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT id, user_id, content").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoGetLatestByUserOrdersByUpdate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "content", "created_at", "updated_at"}).
		AddRow("resume-2", "user-1", []byte(`{}`), now, now)
	mock.ExpectQuery("FROM resumes WHERE user_id = \\$1 ORDER BY updated_at DESC").
		WithArgs("user-1").
		WillReturnRows(rows)

	rec, err := repo.GetLatestByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetLatestByUser: %v", err)
	}
	if rec.ID != "resume-2" || rec.Content == nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestPGRepoUpdateContent(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, time.May, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE resumes SET content = \\$1::jsonb, updated_at = \\$2 WHERE id = \\$3").
		WithArgs(`{"summary":"new"}`, now, "resume-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE resumes").
		WithArgs(`{}`, now, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateContent(context.Background(), "resume-1", Document{FieldSummary: "new"}, now); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if err := repo.UpdateContent(context.Background(), "missing", nil, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoClaimGuest(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE resumes SET user_id = \\$1 WHERE user_id = \\$2").
		WithArgs("linkedin:abc", "guest:g1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ClaimGuest(context.Background(), "guest:g1", "linkedin:abc")
	if err != nil {
		t.Fatalf("ClaimGuest: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 claimed, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
