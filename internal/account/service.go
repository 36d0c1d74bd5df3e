package account

import (
	"context"
	"errors"
	"strings"

	"resume-editor/internal/resumes"
	"resume-editor/internal/shared/telemetry"
)

// SessionCloser saves and closes the editing sessions of a user.
type SessionCloser interface {
	CloseUser(ctx context.Context, userID string) int
}

type Service struct {
	ResumeRepo resumes.Repo
	Sessions   SessionCloser
}

type ClaimResult struct {
	MigratedResumes int `json:"migratedResumes"`
	ClosedSessions  int `json:"closedSessions"`
}

func NewService(resumeRepo resumes.Repo, sessions SessionCloser) *Service {
	return &Service{ResumeRepo: resumeRepo, Sessions: sessions}
}

// ClaimGuest moves the resumes written while signed out to the signed-in
// user. Open guest sessions are saved and closed before the owner changes.
func (s *Service) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (ClaimResult, error) {
	if strings.TrimSpace(guestUserID) == "" || strings.TrimSpace(authedUserID) == "" {
		return ClaimResult{}, errors.New("guestUserID and authedUserID are required")
	}

	var result ClaimResult
	if s.Sessions != nil {
		result.ClosedSessions = s.Sessions.CloseUser(ctx, guestUserID)
	}

	count, err := claimResumes(ctx, s.ResumeRepo, guestUserID, authedUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	result.MigratedResumes = count

	telemetry.Info("account.guest_claimed", map[string]any{
		"user_id":          authedUserID,
		"guest_user_id":    guestUserID,
		"migrated_resumes": result.MigratedResumes,
		"closed_sessions":  result.ClosedSessions,
	})
	return result, nil
}

type guestResumeClaimer interface {
	ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error)
}

func claimResumes(ctx context.Context, repo resumes.Repo, guestUserID, authedUserID string) (int, error) {
	if claimer, ok := repo.(guestResumeClaimer); ok {
		return claimer.ClaimGuest(ctx, guestUserID, authedUserID)
	}
	return 0, errors.New("resumes repo does not support claim")
}
