package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestUpsertFromAuthFillsDerivedFields(t *testing.T) {
	at := time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	svc := &Service{Repo: repo, Now: func() time.Time { return at }}

	user, err := svc.UpsertFromAuth(context.Background(), User{
		ID:         "linkedin:abc",
		Email:      " ada@example.com ",
		GivenName:  "Ada",
		FamilyName: "Lovelace",
	})
	if err != nil {
		t.Fatalf("UpsertFromAuth: %v", err)
	}
	if user.Provider != "linkedin" || user.FullName != "Ada Lovelace" || user.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if !user.LastLoginAt.Equal(at) {
		t.Fatalf("expected last login %v, got %v", at, user.LastLoginAt)
	}

	created := user.CreatedAt
	again, err := svc.UpsertFromAuth(context.Background(), User{ID: "linkedin:abc", Email: "ada@example.com", FullName: "Ada King"})
	if err != nil {
		t.Fatalf("UpsertFromAuth: %v", err)
	}
	if !again.CreatedAt.Equal(created) || again.FullName != "Ada King" {
		t.Fatalf("expected profile update to keep CreatedAt: %+v", again)
	}
}

func TestUpsertFromAuthRequiresIdentity(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if _, err := svc.UpsertFromAuth(context.Background(), User{ID: "linkedin:abc"}); err == nil {
		t.Fatalf("expected missing email error")
	}
	if _, err := svc.GetByID(context.Background(), "linkedin:missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoUpsertReturnsStoredRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := &PGRepo{DB: db}

	login := time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)
	created := login.Add(-48 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "provider", "email", "email_verified", "full_name", "given_name", "family_name", "picture_url", "last_login_at", "created_at", "updated_at"}).
		AddRow("linkedin:abc", "linkedin", "ada@example.com", true, "Ada Lovelace", nil, nil, nil, login, created, login)
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("linkedin:abc", "linkedin", "ada@example.com", true, "Ada Lovelace", nil, nil, nil, login).
		WillReturnRows(rows)

	user, err := repo.Upsert(context.Background(), User{
		ID:            "linkedin:abc",
		Provider:      "linkedin",
		Email:         "ada@example.com",
		EmailVerified: true,
		FullName:      "Ada Lovelace",
		LastLoginAt:   login,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !user.CreatedAt.Equal(created) || user.GivenName != "" || !user.EmailVerified {
		t.Fatalf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT id, provider, email").
		WithArgs("linkedin:missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetByID(context.Background(), "linkedin:missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
