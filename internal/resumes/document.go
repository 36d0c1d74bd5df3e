package resumes

import (
	"fmt"
	"sort"
	"strings"
)

// Document is the JSON resume content. Top-level keys form a closed set; each
// may be absent or null. Below the top level the shape is free-form.
type Document map[string]any

type fieldKind int

const (
	kindObject fieldKind = iota
	kindString
	kindArray
)

func (k fieldKind) String() string {
	switch k {
	case kindObject:
		return "object"
	case kindString:
		return "string"
	default:
		return "array"
	}
}

// Top-level document keys.
const (
	FieldPersonal   = "personal"
	FieldSummary    = "summary"
	FieldExperience = "experience"
	FieldEducation  = "education"
	FieldSkills     = "skills"
	FieldProjects   = "projects"
	FieldAwards     = "awards"
)

var documentFields = map[string]fieldKind{
	FieldPersonal:   kindObject,
	FieldSummary:    kindString,
	FieldExperience: kindArray,
	FieldEducation:  kindArray,
	FieldSkills:     kindArray,
	FieldProjects:   kindArray,
	FieldAwards:     kindArray,
}

// Fields returns the allowed top-level keys in sorted order.
func Fields() []string {
	out := make([]string, 0, len(documentFields))
	for k := range documentFields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate checks the top-level keys and their container kinds.
func (d Document) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: document is required", ErrInvalidInput)
	}
	for key, value := range d {
		kind, ok := documentFields[key]
		if !ok {
			return fmt.Errorf("%w: unknown field %q (allowed: %s)", ErrInvalidInput, key, strings.Join(Fields(), ", "))
		}
		if value == nil {
			continue
		}
		var match bool
		switch kind {
		case kindObject:
			_, match = value.(map[string]any)
		case kindString:
			_, match = value.(string)
		case kindArray:
			_, match = value.([]any)
		}
		if !match {
			return fmt.Errorf("%w: field %q must be %s or null", ErrInvalidInput, key, kind)
		}
	}
	return nil
}

// Profile carries identity fields used to seed a new resume.
type Profile struct {
	Name    string
	Email   string
	Picture string
}

// Template returns the default document for a new resume.
func Template(p Profile) Document {
	return Document{
		FieldPersonal: map[string]any{
			"name":     p.Name,
			"title":    "",
			"email":    p.Email,
			"phone":    "",
			"location": "",
			"photo":    p.Picture,
			"links":    map[string]any{},
		},
		FieldSummary:    "",
		FieldExperience: []any{},
		FieldEducation:  []any{},
		FieldSkills:     []any{},
		FieldProjects:   []any{},
		FieldAwards:     []any{},
	}
}
