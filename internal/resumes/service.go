package resumes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-editor/internal/docpatch"
	"resume-editor/internal/realtime"
	"resume-editor/internal/shared/telemetry"
	"resume-editor/internal/users"
)

// OriginAPI marks realtime events published by direct REST writes.
const OriginAPI = "api"

// ProfileReader loads the identity used to seed new resumes.
type ProfileReader interface {
	GetByID(ctx context.Context, userID string) (users.User, error)
}

// Service contains business logic for resumes. It is the document store
// used by editing sessions and enforces ownership on every access.
type Service struct {
	Repo      Repo
	Profiles  ProfileReader
	Publisher realtime.Publisher
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns a resume owned by userID.
func (s *Service) Get(ctx context.Context, userID, resumeID string) (Record, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(resumeID) == "" {
		return Record{}, ErrInvalidInput
	}
	rec, err := s.Repo.GetByID(ctx, resumeID)
	if err != nil {
		return Record{}, err
	}
	if rec.UserID != userID {
		return Record{}, ErrForbidden
	}
	return rec, nil
}

// GetByUser returns the user's most recently updated resume.
func (s *Service) GetByUser(ctx context.Context, userID string) (Record, error) {
	if strings.TrimSpace(userID) == "" {
		return Record{}, ErrInvalidInput
	}
	return s.Repo.GetLatestByUser(ctx, userID)
}

// Create stores a new resume for userID.
func (s *Service) Create(ctx context.Context, userID string, content Document) (Record, error) {
	if strings.TrimSpace(userID) == "" {
		return Record{}, ErrInvalidInput
	}
	if err := content.Validate(); err != nil {
		return Record{}, err
	}
	now := s.now()
	rec := Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("create resume: %w", err)
	}
	telemetry.Info("resume.created", map[string]any{
		"resume_id": rec.ID,
		"user_id":   userID,
	})
	return rec, nil
}

// Current returns the user's resume, creating one from the template on the
// first visit. The bool reports whether a resume was created.
func (s *Service) Current(ctx context.Context, userID string) (Record, bool, error) {
	rec, err := s.GetByUser(ctx, userID)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Record{}, false, err
	}
	rec, err = s.Create(ctx, userID, Template(s.profile(ctx, userID)))
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *Service) profile(ctx context.Context, userID string) Profile {
	if s.Profiles == nil {
		return Profile{}
	}
	user, err := s.Profiles.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			telemetry.Warn("resume.profile_lookup_failed", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
		return Profile{}
	}
	return Profile{Name: user.FullName, Email: user.Email, Picture: user.PictureURL}
}

// Update replaces the content of a resume owned by userID.
func (s *Service) Update(ctx context.Context, userID, resumeID string, content Document) (Record, error) {
	if err := content.Validate(); err != nil {
		return Record{}, err
	}
	rec, err := s.Get(ctx, userID, resumeID)
	if err != nil {
		return Record{}, err
	}
	now := s.now()
	if err := s.Repo.UpdateContent(ctx, resumeID, content, now); err != nil {
		return Record{}, fmt.Errorf("update resume: %w", err)
	}
	rec.Content = content
	rec.UpdatedAt = now
	return rec, nil
}

// Patch applies path patches to the stored content and announces the result.
func (s *Service) Patch(ctx context.Context, userID, resumeID string, patches []docpatch.Patch) (Record, error) {
	if len(patches) == 0 {
		return Record{}, fmt.Errorf("%w: at least one patch is required", ErrInvalidInput)
	}
	return s.edit(ctx, userID, resumeID, func(doc Document) (Document, error) {
		out, err := docpatch.ApplyAll(doc, patches...)
		return out, err
	})
}

// Merge applies an RFC 7386 merge patch and announces the result.
func (s *Service) Merge(ctx context.Context, userID, resumeID string, mergePatch []byte) (Record, error) {
	return s.edit(ctx, userID, resumeID, func(doc Document) (Document, error) {
		out, err := docpatch.Merge(doc, mergePatch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return out, nil
	})
}

// JSONPatch applies RFC 6902 operations and announces the result.
func (s *Service) JSONPatch(ctx context.Context, userID, resumeID string, ops []byte) (Record, error) {
	return s.edit(ctx, userID, resumeID, func(doc Document) (Document, error) {
		out, err := docpatch.ApplyJSONPatch(doc, ops)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return out, nil
	})
}

// Replace overwrites the content and announces the result.
func (s *Service) Replace(ctx context.Context, userID, resumeID string, content Document) (Record, error) {
	rec, err := s.Update(ctx, userID, resumeID, content)
	if err != nil {
		return Record{}, err
	}
	s.announce(ctx, rec)
	return rec, nil
}

// Stats computes derived figures for a resume owned by userID.
func (s *Service) Stats(ctx context.Context, userID, resumeID string) (Stats, error) {
	rec, err := s.Get(ctx, userID, resumeID)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(rec.Content, s.now()), nil
}

func (s *Service) edit(ctx context.Context, userID, resumeID string, fn func(Document) (Document, error)) (Record, error) {
	rec, err := s.Get(ctx, userID, resumeID)
	if err != nil {
		return Record{}, err
	}
	next, err := fn(rec.Content)
	if err != nil {
		return Record{}, err
	}
	rec, err = s.Update(ctx, userID, resumeID, next)
	if err != nil {
		return Record{}, err
	}
	s.announce(ctx, rec)
	return rec, nil
}

func (s *Service) announce(ctx context.Context, rec Record) {
	if s.Publisher == nil {
		return
	}
	err := s.Publisher.Publish(ctx, realtime.Event{
		ResumeID:        rec.ID,
		Content:         rec.Content,
		SourceTimestamp: rec.UpdatedAt,
		Origin:          OriginAPI,
	})
	if err != nil {
		telemetry.Warn("resume.publish_failed", map[string]any{
			"resume_id": rec.ID,
			"error":     err.Error(),
		})
	}
}
