package wmata

import (
	"slices"
	"strings"
)

// Incidents is the normalized result of one incidents poll.
//
// Lines holds every affected line code across the whole batch, without
// duplicates, in the order they were first found. Both slices are non-nil so
// an empty batch ("no incidents") serializes differently from a feed that
// has not loaded yet.
type Incidents struct {
	Descriptions []string `json:"descriptions"`
	Lines        []string `json:"lines"`
}

// ParseIncidents normalizes a batch of incidents.
//
// Each LinesAffected string is upper-cased and searched for every known line
// code as a plain substring; punctuation and separators are ignored.
func ParseIncidents(incidents []Incident) Incidents {
	out := Incidents{
		Descriptions: make([]string, 0, len(incidents)),
		Lines:        make([]string, 0, len(LineCodes)),
	}

	for _, incident := range incidents {
		out.Descriptions = append(out.Descriptions, incident.Description)
		out.Lines = appendAffectedLines(out.Lines, incident.LinesAffected)
	}
	return out
}

func appendAffectedLines(lines []string, linesAffected string) []string {
	affected := strings.ToUpper(linesAffected)
	for _, code := range LineCodes {
		if strings.Contains(affected, code) && !slices.Contains(lines, code) {
			lines = append(lines, code)
		}
	}
	return lines
}
