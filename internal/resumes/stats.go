package resumes

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"
)

// Stats are derived figures shown next to the editor.
type Stats struct {
	TotalYearsExperience float64      `json:"totalYearsExperience"`
	CurrentRole          *RoleSummary `json:"currentRole,omitempty"`
	Positions            int          `json:"positions"`
	EducationEntries     int          `json:"educationEntries"`
	Skills               int          `json:"skills"`
	Projects             int          `json:"projects"`
	Awards               int          `json:"awards"`
}

// RoleSummary describes the ongoing position.
type RoleSummary struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	Since   string `json:"since,omitempty"`
}

var dateLayouts = []string{
	"2006-01",
	"2006-01-02",
	time.RFC3339,
	"Jan 2006",
	"January 2006",
	"01/2006",
	"2006",
}

// ParseMonth parses the date formats accepted in resume date fields.
func ParseMonth(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func isPresent(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "present", "current", "now":
		return true
	default:
		return false
	}
}

// FormatDate renders a stored date as "Jan 2006". Unknown formats are returned
// unchanged.
func FormatDate(value string) string {
	if isPresent(value) {
		return "Present"
	}
	t, ok := ParseMonth(value)
	if !ok {
		return strings.TrimSpace(value)
	}
	return t.Format("Jan 2006")
}

// ComputeStats derives the editor statistics for a document. Path edits can
// leave entries of the wrong shape in a list; those are skipped rather than
// failing the whole document.
func ComputeStats(doc Document, now time.Time) Stats {
	experience := decodeEntries[Experience](doc[FieldExperience])
	stats := Stats{
		TotalYearsExperience: TotalYearsExperience(experience, now),
		Positions:            len(experience),
		EducationEntries:     len(decodeEntries[Education](doc[FieldEducation])),
		Skills:               countEntries(doc[FieldSkills]),
		Projects:             countEntries(doc[FieldProjects]),
		Awards:               countEntries(doc[FieldAwards]),
	}
	if cur, ok := CurrentRole(experience); ok {
		stats.CurrentRole = &RoleSummary{
			Title:   cur.Title,
			Company: cur.Company,
			Since:   FormatDate(cur.StartDate),
		}
	}
	return stats
}

// decodeEntries decodes each object in a list into T, dropping entries that
// are not objects or do not fit T.
func decodeEntries[T any](v any) []T {
	list, _ := v.([]any)
	out := make([]T, 0, len(list))
	for _, item := range list {
		if _, ok := item.(map[string]any); !ok {
			continue
		}
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var entry T
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func countEntries(v any) int {
	n := 0
	list, _ := v.([]any)
	for _, item := range list {
		if item != nil {
			n++
		}
	}
	return n
}

func ongoing(e Experience) bool {
	return e.Current || strings.TrimSpace(e.EndDate) == "" || isPresent(e.EndDate)
}

type monthSpan struct{ start, end int }

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// TotalYearsExperience sums employment spans, counting overlapping months
// once. Ongoing positions run until now. The result has one decimal.
func TotalYearsExperience(entries []Experience, now time.Time) float64 {
	spans := make([]monthSpan, 0, len(entries))
	for _, e := range entries {
		start, ok := ParseMonth(e.StartDate)
		if !ok {
			continue
		}
		end := now
		if !ongoing(e) {
			parsed, ok := ParseMonth(e.EndDate)
			if !ok {
				continue
			}
			end = parsed
		}
		s, en := monthIndex(start), monthIndex(end)
		if en <= s {
			continue
		}
		spans = append(spans, monthSpan{start: s, end: en})
	}
	if len(spans) == 0 {
		return 0
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	total := 0
	cur := spans[0]
	for _, sp := range spans[1:] {
		if sp.start <= cur.end {
			if sp.end > cur.end {
				cur.end = sp.end
			}
			continue
		}
		total += cur.end - cur.start
		cur = sp
	}
	total += cur.end - cur.start
	return math.Round(float64(total)/12*10) / 10
}

// CurrentRole returns the ongoing position with the latest start date.
func CurrentRole(entries []Experience) (Experience, bool) {
	var (
		best      Experience
		bestStart time.Time
		found     bool
	)
	for _, e := range entries {
		if !ongoing(e) || (e.Title == "" && e.Company == "") {
			continue
		}
		start, _ := ParseMonth(e.StartDate)
		if !found || start.After(bestStart) {
			best, bestStart, found = e, start, true
		}
	}
	return best, found
}
