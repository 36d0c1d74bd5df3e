package resumes

import (
	"context"
	"time"
)

// Repo defines persistence operations for resumes.
type Repo interface {
	Create(ctx context.Context, rec Record) error
	GetByID(ctx context.Context, resumeID string) (Record, error)
	GetLatestByUser(ctx context.Context, userID string) (Record, error)
	UpdateContent(ctx context.Context, resumeID string, content Document, updatedAt time.Time) error
}
