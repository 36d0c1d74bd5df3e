package resumes

import "time"

// ResumeResponse is the outward-facing representation of a resume.
type ResumeResponse struct {
	ResumeID  string    `json:"resumeId"`
	UserID    string    `json:"userId"`
	Content   Document  `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toResponse(rec Record) ResumeResponse {
	return ResumeResponse{
		ResumeID:  rec.ID,
		UserID:    rec.UserID,
		Content:   rec.Content,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
