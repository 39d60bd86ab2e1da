package validate

import (
	"encoding/json"
	"io"
)

// Report is the JSON-serializable lint report.
type Report struct {
	TotalFindings int                    `json:"total_findings"`
	Errors        int                    `json:"errors"`
	Categories    map[string]CategorySum `json:"categories"`
	Findings      []Finding              `json:"findings"`
}

// CategorySum summarizes findings for a single category.
type CategorySum struct {
	Total int    `json:"total"`
	Label string `json:"label"`
}

var categoryLabels = map[Category]string{
	CatCommand: "Unknown Commands",
	CatLabel:   "Unresolved Jump Targets",
	CatFlow:    "Control Flow",
	CatTimer:   "Timers",
	CatEvent:   "Unknown Events",
}

// GenerateReport builds a Report from the validator's current findings.
func GenerateReport(v *Validator) *Report {
	r := &Report{
		TotalFindings: len(v.findings),
		Errors:        v.Errors(),
		Categories:    make(map[string]CategorySum),
		Findings:      v.findings,
	}
	for cat, n := range v.Summary() {
		r.Categories[cat.String()] = CategorySum{Total: n, Label: categoryLabels[cat]}
	}
	return r
}

// WriteJSON writes the report as JSON to the given writer.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteJSONFindings writes just the findings array as JSON.
func WriteJSONFindings(w io.Writer, findings []Finding) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(findings)
}
