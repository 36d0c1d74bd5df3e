package resumes

import (
	"errors"
	"testing"
)

func TestTemplateSeedsProfile(t *testing.T) {
	doc := Template(Profile{Name: "Ada Lovelace", Email: "ada@example.com", Picture: "https://x/ada.jpg"})
	if err := doc.Validate(); err != nil {
		t.Fatalf("template should validate: %v", err)
	}
	personal := doc[FieldPersonal].(map[string]any)
	if personal["name"] != "Ada Lovelace" || personal["email"] != "ada@example.com" || personal["photo"] != "https://x/ada.jpg" {
		t.Fatalf("unexpected personal section: %#v", personal)
	}
	for _, key := range []string{FieldExperience, FieldEducation, FieldSkills, FieldProjects, FieldAwards} {
		list, ok := doc[key].([]any)
		if !ok || len(list) != 0 {
			t.Fatalf("expected empty list for %s, got %#v", key, doc[key])
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		doc  Document
		ok   bool
	}{
		{name: "empty", doc: Document{}, ok: true},
		{name: "nulls allowed", doc: Document{FieldPersonal: nil, FieldSummary: nil, FieldSkills: nil}, ok: true},
		{name: "unknown key", doc: Document{"hobbies": []any{}}, ok: false},
		{name: "summary not string", doc: Document{FieldSummary: 12.0}, ok: false},
		{name: "personal not object", doc: Document{FieldPersonal: "Ada"}, ok: false},
		{name: "experience not array", doc: Document{FieldExperience: map[string]any{}}, ok: false},
		{name: "nil document", doc: nil, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.doc.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestDecodeTypedView(t *testing.T) {
	doc := Document{
		FieldSummary: "Engineer",
		FieldExperience: []any{
			map[string]any{"company": "Acme", "title": "Dev", "startDate": "2020-01", "current": true},
		},
	}
	r, err := doc.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Summary == nil || *r.Summary != "Engineer" {
		t.Fatalf("unexpected summary: %v", r.Summary)
	}
	if len(r.Experience) != 1 || r.Experience[0].Company != "Acme" || !r.Experience[0].Current {
		t.Fatalf("unexpected experience: %+v", r.Experience)
	}
	if r.Personal != nil {
		t.Fatalf("absent personal should decode to nil")
	}

	bad := Document{FieldExperience: []any{map[string]any{"company": 42.0}}}
	if _, err := bad.Decode(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
