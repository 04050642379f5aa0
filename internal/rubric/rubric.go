package rubric

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NoBand is rendered whenever a score has no matching band.
const NoBand = "-"

// PraiseStyle selects the shape the model is asked to use for praise entries.
type PraiseStyle string

const (
	// PraiseText asks for a list of plain strings.
	PraiseText PraiseStyle = "text"
	// PraiseQuote asks for a list of {quote, reason} objects.
	PraiseQuote PraiseStyle = "quote"
)

// Item is a single grading dimension.
type Item struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Label       string `json:"label" yaml:"label" validate:"required"`
	Summary     string `json:"summary" yaml:"summary"`
	Description string `json:"description" yaml:"description"`
}

// Scale maps every integer score in [Min, Max] to a qualitative band name.
type Scale struct {
	Min   int            `json:"min" yaml:"min" validate:"gte=0"`
	Max   int            `json:"max" yaml:"max" validate:"gtefield=Min"`
	Bands map[int]string `json:"bands" yaml:"bands" validate:"required,min=1"`
}

// Band returns the band name for score, or NoBand when the score is outside the scale.
func (s Scale) Band(score int) string {
	if score < s.Min || score > s.Max {
		return NoBand
	}
	if band, ok := s.Bands[score]; ok && band != "" {
		return band
	}
	return NoBand
}

// Contains reports whether score lies within the scale bounds.
func (s Scale) Contains(score int) bool {
	return score >= s.Min && score <= s.Max
}

// Descending lists the scores from Max down to Min.
func (s Scale) Descending() []int {
	scores := make([]int, 0, s.Max-s.Min+1)
	for score := s.Max; score >= s.Min; score-- {
		scores = append(scores, score)
	}
	return scores
}

// Rubric is an immutable set of grading dimensions sharing one scale.
type Rubric struct {
	ID              string      `json:"id" yaml:"id" validate:"required"`
	Title           string      `json:"title" yaml:"title" validate:"required"`
	Items           []Item      `json:"items" yaml:"items" validate:"required,min=1,dive"`
	Scale           Scale       `json:"scale" yaml:"scale"`
	Grades          []string    `json:"grades,omitempty" yaml:"grades"`
	PraiseStyle     PraiseStyle `json:"praise_style" yaml:"praise_style" validate:"omitempty,oneof=text quote"`
	RewriteRequired bool        `json:"rewrite_required" yaml:"rewrite_required"`
}

// Item looks up an item by id.
func (r Rubric) Item(id string) (Item, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// UsesGrades reports whether the rubric asks for a letter grade.
func (r Rubric) UsesGrades() bool {
	return len(r.Grades) > 0
}

// ErrInvalidRubric wraps every structural problem found by Validate.
var ErrInvalidRubric = errors.New("invalid rubric")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, id uniqueness and band coverage.
func (r Rubric) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidRubric, r.ID, err)
	}

	seen := make(map[string]struct{}, len(r.Items))
	for _, item := range r.Items {
		id := strings.TrimSpace(item.ID)
		if id != item.ID {
			return fmt.Errorf("%w %q: item id %q has surrounding whitespace", ErrInvalidRubric, r.ID, item.ID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w %q: duplicate item id %q", ErrInvalidRubric, r.ID, id)
		}
		seen[id] = struct{}{}
	}

	for score := r.Scale.Min; score <= r.Scale.Max; score++ {
		if strings.TrimSpace(r.Scale.Bands[score]) == "" {
			return fmt.Errorf("%w %q: no band for score %d", ErrInvalidRubric, r.ID, score)
		}
	}

	return nil
}
