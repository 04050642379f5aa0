package render

import (
	"fmt"
	"strings"

	"github.com/noah-isme/gema-essay-evaluator/internal/feedback"
	"github.com/noah-isme/gema-essay-evaluator/internal/rubric"
)

// FallbackNotice is shown above raw model output that could not be structured.
const FallbackNotice = "Automatic parsing failed, showing raw output."

// Row is one line of the rubric score table.
type Row struct {
	ItemID      string `json:"item_id"`
	Label       string `json:"label"`
	Score       string `json:"score"`
	Band        string `json:"band"`
	Explanation string `json:"explanation"`
}

// PraiseLine is a praise entry flattened for display. Quote is empty for plain entries.
type PraiseLine struct {
	Quote   string `json:"quote,omitempty"`
	Comment string `json:"comment"`
}

// Report is the display model of one evaluation. Every field is safe to render as is.
type Report struct {
	RubricID     string                 `json:"rubric_id"`
	RubricTitle  string                 `json:"rubric_title"`
	ScaleLabel   string                 `json:"scale_label"`
	Structured   bool                   `json:"structured"`
	Notice       string                 `json:"notice,omitempty"`
	Raw          string                 `json:"raw,omitempty"`
	Rows         []Row                  `json:"rows"`
	OverallScore string                 `json:"overall_score"`
	OverallBand  string                 `json:"overall_band"`
	ShowGrade    bool                   `json:"show_grade"`
	Grade        string                 `json:"grade,omitempty"`
	Comment      string                 `json:"comment"`
	Praise       []PraiseLine           `json:"praise"`
	Improvements []feedback.Improvement `json:"improvements"`
	Corrections  []feedback.Correction  `json:"corrections"`
}

// BuildReport maps an outcome onto display rows. Missing data renders as "-" and is never
// an error; a raw fallback yields the notice plus the untouched model text.
func BuildReport(r rubric.Rubric, outcome feedback.Outcome) Report {
	report := Report{
		RubricID:     r.ID,
		RubricTitle:  r.Title,
		ScaleLabel:   fmt.Sprintf("%d–%d", r.Scale.Min, r.Scale.Max),
		Structured:   outcome.Structured(),
		OverallScore: feedback.MissingValue,
		OverallBand:  rubric.NoBand,
		ShowGrade:    r.UsesGrades(),
		Rows:         []Row{},
		Praise:       []PraiseLine{},
		Improvements: []feedback.Improvement{},
		Corrections:  []feedback.Correction{},
	}

	if !outcome.Structured() {
		report.Notice = FallbackNotice
		if outcome.Fallback != nil {
			report.Raw = outcome.Fallback.Raw
		}
		report.ShowGrade = false
		return report
	}

	result := outcome.Result
	for _, item := range r.Items {
		row := Row{
			ItemID:      item.ID,
			Label:       item.Label,
			Score:       feedback.MissingValue,
			Band:        rubric.NoBand,
			Explanation: "",
		}
		if scored, ok := result.Scores[item.ID]; ok {
			row.Score = scored.Score.String()
			if scored.Score.Valid {
				row.Band = r.Scale.Band(scored.Score.Value)
			}
			row.Explanation = strings.TrimSpace(scored.Explanation)
		}
		report.Rows = append(report.Rows, row)
	}

	if result.OverallScore.Valid {
		report.OverallScore = fmt.Sprintf("%d/%d", result.OverallScore.Value, r.Scale.Max)
		report.OverallBand = r.Scale.Band(result.OverallScore.Value)
	}

	if report.ShowGrade {
		report.Grade = strings.TrimSpace(result.Grade)
		if report.Grade == "" {
			report.Grade = feedback.MissingValue
		}
	} else if grade := strings.TrimSpace(result.Grade); grade != "" {
		report.ShowGrade = true
		report.Grade = grade
	}

	report.Comment = strings.TrimSpace(result.OverallComment)

	for _, praise := range result.Praise {
		line := PraiseLine{Quote: strings.TrimSpace(praise.Quote), Comment: strings.TrimSpace(praise.Comment)}
		if line.Quote == "" && line.Comment == "" {
			continue
		}
		report.Praise = append(report.Praise, line)
	}

	if result.Improvements != nil {
		report.Improvements = result.Improvements
	}
	if result.Corrections != nil {
		report.Corrections = result.Corrections
	}

	return report
}
