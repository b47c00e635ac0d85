package frame

import "time"

// Diagnosis is the per-frame aggregate produced by the Frame Pipeline.
type Diagnosis struct {
	ImageID    string `json:"image_id"`
	ImagePath  string `json:"image_path"`
	ImageWidth int    `json:"image_width"`
	ImageHeight int   `json:"image_height"`

	IsAbnormal   bool     `json:"is_abnormal"`
	PrimaryIssue *string  `json:"primary_issue"`
	Severity     Severity `json:"severity"`

	Findings          []Finding `json:"detection_results"`
	SuppressedIssues  []string  `json:"suppressed_issues"`
	IndependentIssues []string  `json:"independent_issues"`

	Scores map[string]float64 `json:"scores"`

	TotalProcessTime time.Duration `json:"-"`
	Level            Level         `json:"detection_level"`
	ConfigProfile    string        `json:"config_profile"`
	Timestamp        time.Time     `json:"timestamp"`
}

// TotalProcessTimeMS renders TotalProcessTime in milliseconds.
func (d Diagnosis) TotalProcessTimeMS() float64 {
	return float64(d.TotalProcessTime.Microseconds()) / 1000.0
}

// AbnormalFindings returns every Finding with IsAbnormal true, ported from
// the original source's get_abnormal_results.
func (d Diagnosis) AbnormalFindings() []Finding {
	out := make([]Finding, 0, len(d.Findings))
	for _, f := range d.Findings {
		if f.IsAbnormal {
			out = append(out, f)
		}
	}
	return out
}

// AllSuggestions returns the deduplicated, order-preserving union of every
// abnormal finding's suggestions, ported from get_all_suggestions.
func (d Diagnosis) AllSuggestions() []string {
	return dedupOrdered(d.Findings, func(f Finding) []string { return f.Suggestions })
}

// AllCauses returns the deduplicated, order-preserving union of every
// abnormal finding's possible causes, ported from get_all_causes.
func (d Diagnosis) AllCauses() []string {
	return dedupOrdered(d.Findings, func(f Finding) []string { return f.PossibleCauses })
}

func dedupOrdered(findings []Finding, pick func(Finding) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range findings {
		if !f.IsAbnormal {
			continue
		}
		for _, v := range pick(f) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// NewErrorDiagnosis synthesizes the error Diagnosis the Frame Pipeline
// returns for an empty detector set or invalid frame (§4.3 step 2).
func NewErrorDiagnosis(imageID, imagePath, profile string, level Level) Diagnosis {
	issue := "error"
	return Diagnosis{
		ImageID:           imageID,
		ImagePath:         imagePath,
		IsAbnormal:        true,
		PrimaryIssue:      &issue,
		Severity:          SeverityCritical,
		Findings:          nil,
		SuppressedIssues:  nil,
		IndependentIssues: []string{issue},
		Scores:            map[string]float64{},
		Level:             level,
		ConfigProfile:     profile,
		Timestamp:         time.Now(),
	}
}
