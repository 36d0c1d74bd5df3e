package resumes

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the persisted resume row owned by a user.
type Record struct {
	ID        string
	UserID    string
	Content   Document
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Resume is a typed read-only view over a Document.
type Resume struct {
	Personal   *Personal    `json:"personal"`
	Summary    *string      `json:"summary"`
	Experience []Experience `json:"experience"`
	Education  []Education  `json:"education"`
	Skills     []any        `json:"skills"`
	Projects   []any        `json:"projects"`
	Awards     []any        `json:"awards"`
}

// Personal captures contact and identity details.
type Personal struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Photo    string `json:"photo"`
}

// Experience represents a work history entry.
type Experience struct {
	Company     string `json:"company"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

// Education represents an education entry.
type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

// Decode converts the document into its typed view.
func (d Document) Decode() (Resume, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return Resume{}, fmt.Errorf("encode document: %w", err)
	}
	var r Resume
	if err := json.Unmarshal(raw, &r); err != nil {
		return Resume{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return r, nil
}
