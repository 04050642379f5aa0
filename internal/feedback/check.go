package feedback

import (
	"fmt"
	"slices"
	"sort"

	"github.com/noah-isme/gema-essay-evaluator/internal/rubric"
)

// Deviations lists where a decoded result strays from the rubric: missing or
// unknown item ids, scores outside the scale and unknown grades. They are
// informational only; rendering copes with all of them.
func Deviations(r rubric.Rubric, result *Result) []string {
	if result == nil {
		return nil
	}

	var out []string
	for _, item := range r.Items {
		score, ok := result.Scores[item.ID]
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("missing score for %s", item.ID))
		case !score.Score.Valid:
			out = append(out, fmt.Sprintf("non-integer score for %s", item.ID))
		case !r.Scale.Contains(score.Score.Value):
			out = append(out, fmt.Sprintf("score %d for %s outside %d-%d", score.Score.Value, item.ID, r.Scale.Min, r.Scale.Max))
		}
	}

	unknown := make([]string, 0)
	for id := range result.Scores {
		if _, ok := r.Item(id); !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		out = append(out, fmt.Sprintf("unknown rubric item %s", id))
	}

	switch {
	case !result.OverallScore.Valid:
		out = append(out, "missing overall score")
	case !r.Scale.Contains(result.OverallScore.Value):
		out = append(out, fmt.Sprintf("overall score %d outside %d-%d", result.OverallScore.Value, r.Scale.Min, r.Scale.Max))
	}

	if r.UsesGrades() && !slices.Contains(r.Grades, result.Grade) {
		out = append(out, fmt.Sprintf("unexpected grade %q", result.Grade))
	}

	return out
}
