package feedback

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// MissingValue is shown wherever a value could not be read from the model output.
const MissingValue = "-"

// Score is an optional integer score. Values that are absent or not integral stay invalid.
type Score struct {
	Value int
	Valid bool
}

// NewScore returns a valid score.
func NewScore(v int) Score {
	return Score{Value: v, Valid: true}
}

// IsZero lets `omitzero` drop invalid scores when encoding.
func (s Score) IsZero() bool {
	return !s.Valid
}

// String renders the score or MissingValue.
func (s Score) String() string {
	if !s.Valid {
		return MissingValue
	}
	return strconv.Itoa(s.Value)
}

// MarshalJSON encodes an invalid score as null.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(s.Value)), nil
}

// UnmarshalJSON never fails; anything that is not an integer leaves the score invalid.
func (s *Score) UnmarshalJSON(data []byte) error {
	*s = decodeScore(data)
	return nil
}

// ItemScore is the score and explanation for one rubric item.
type ItemScore struct {
	Score       Score  `json:"score,omitzero"`
	Explanation string `json:"explanation"`
}

// Correction is a single spelling, spacing or grammar fix.
type Correction struct {
	Original string `json:"original"`
	Amended  string `json:"amended"`
	Reason   string `json:"reason"`
}

// PraiseKind records which wire shape a praise entry arrived in.
type PraiseKind int

const (
	// PraiseText is a plain string entry.
	PraiseText PraiseKind = iota
	// PraiseQuote is a {quote, reason} entry.
	PraiseQuote
)

// Praise is the normalised praise entry. Plain strings land in Comment with no Quote.
type Praise struct {
	Kind    PraiseKind
	Quote   string
	Comment string
}

// MarshalJSON writes the entry back in the shape it was received in.
func (p Praise) MarshalJSON() ([]byte, error) {
	if p.Kind == PraiseQuote {
		return marshalNoEscape(struct {
			Quote  string `json:"quote"`
			Reason string `json:"reason"`
		}{Quote: p.Quote, Reason: p.Comment})
	}
	return marshalNoEscape(p.Comment)
}

// UnmarshalJSON accepts both wire shapes and never fails.
func (p *Praise) UnmarshalJSON(data []byte) error {
	praise, _ := decodePraise(data)
	*p = praise
	return nil
}

// Improvement is an issue with a suggested fix and an optional rewrite.
type Improvement struct {
	Issue          string `json:"issue"`
	Suggestion     string `json:"suggestion"`
	RewriteExample string `json:"rewrite_example,omitempty"`
}

// Result is the typed evaluation decoded from model output. Every field has a usable
// zero value, so renderers never need to check for absence.
type Result struct {
	Scores         map[string]ItemScore `json:"scores,omitempty"`
	OverallScore   Score                `json:"overall_score,omitzero"`
	Grade          string               `json:"grade,omitempty"`
	Corrections    []Correction         `json:"corrections"`
	Praise         []Praise             `json:"praise"`
	Improvements   []Improvement        `json:"improvements"`
	OverallComment string               `json:"overall_comment,omitempty"`

	// Extra keeps top-level keys outside the schema so re-encoding loses nothing.
	Extra map[string]json.RawMessage `json:"-"`
}

type resultAlias Result

// MarshalJSON encodes the result including Extra keys.
func (r Result) MarshalJSON() ([]byte, error) {
	alias := resultAlias(r)
	if alias.Corrections == nil {
		alias.Corrections = []Correction{}
	}
	if alias.Praise == nil {
		alias.Praise = []Praise{}
	}
	if alias.Improvements == nil {
		alias.Improvements = []Improvement{}
	}

	data, err := marshalNoEscape(alias)
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}

	merged := make(map[string]json.RawMessage, len(r.Extra)+8)
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if _, known := merged[key]; !known {
			merged[key] = value
		}
	}
	return marshalNoEscape(merged)
}

// UnmarshalJSON decodes leniently; it only fails when data is not a JSON object.
func (r *Result) UnmarshalJSON(data []byte) error {
	decoded, err := decodeResult(data)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}

// RawFallback carries model output that could not be structured.
type RawFallback struct {
	Raw string `json:"raw"`
}

func marshalNoEscape(v any) ([]byte, error) {
	buf := bytes.Buffer{}
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
