package feedback

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	errNotObject     = errors.New("model output is not a JSON object")
	errNoSchemaField = errors.New("model output has none of the expected fields")
)

var knownFields = map[string]struct{}{
	"scores":          {},
	"overall_score":   {},
	"grade":           {},
	"corrections":     {},
	"praise":          {},
	"improvements":    {},
	"overall_comment": {},
}

// decodeResult reads a JSON object field by field. A field with an unexpected shape
// keeps its default instead of failing the whole document.
func decodeResult(data []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}

	result := &Result{
		Scores:       map[string]ItemScore{},
		Corrections:  []Correction{},
		Praise:       []Praise{},
		Improvements: []Improvement{},
	}

	matched := false
	for key, raw := range fields {
		if _, ok := knownFields[key]; ok {
			matched = true
		}
		switch key {
		case "scores":
			result.Scores = decodeScores(raw)
		case "overall_score":
			result.OverallScore = decodeScore(raw)
		case "grade":
			result.Grade = decodeString(raw)
		case "corrections":
			result.Corrections = decodeCorrections(raw)
		case "praise":
			result.Praise = decodePraiseList(raw)
		case "improvements":
			result.Improvements = decodeImprovements(raw)
		case "overall_comment":
			result.OverallComment = decodeString(raw)
		default:
			if result.Extra == nil {
				result.Extra = map[string]json.RawMessage{}
			}
			result.Extra[key] = append(json.RawMessage(nil), raw...)
		}
	}

	if !matched {
		return nil, errNoSchemaField
	}
	return result, nil
}

func decodeScores(raw json.RawMessage) map[string]ItemScore {
	scores := map[string]ItemScore{}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return scores
	}

	for id, entry := range entries {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(entry, &obj); err == nil && obj != nil {
			scores[id] = ItemScore{
				Score:       decodeScore(obj["score"]),
				Explanation: decodeString(obj["explanation"]),
			}
			continue
		}
		// a bare number in place of the {score, explanation} object
		scores[id] = ItemScore{Score: decodeScore(entry)}
	}
	return scores
}

func decodeScore(raw json.RawMessage) Score {
	if isNull(raw) {
		return Score{}
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return scoreFromFloat(number)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		text = strings.TrimSpace(text)
		if n, err := strconv.Atoi(text); err == nil {
			return NewScore(n)
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return scoreFromFloat(f)
		}
	}
	return Score{}
}

func scoreFromFloat(f float64) Score {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return Score{}
	}
	return NewScore(int(f))
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String()
	}
	return ""
}

func decodeArray(raw json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func decodeCorrections(raw json.RawMessage) []Correction {
	items := decodeArray(raw)
	out := make([]Correction, 0, len(items))
	for _, item := range items {
		obj, ok := decodeObject(item)
		if !ok {
			continue
		}
		out = append(out, Correction{
			Original: decodeString(obj["original"]),
			Amended:  decodeString(obj["amended"]),
			Reason:   decodeString(obj["reason"]),
		})
	}
	return out
}

func decodePraise(raw json.RawMessage) (Praise, bool) {
	if isNull(raw) {
		return Praise{}, false
	}
	if obj, ok := decodeObject(raw); ok {
		return Praise{
			Kind:    PraiseQuote,
			Quote:   decodeString(obj["quote"]),
			Comment: decodeString(obj["reason"]),
		}, true
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return Praise{Kind: PraiseText, Comment: text}, true
	}
	return Praise{}, false
}

func decodePraiseList(raw json.RawMessage) []Praise {
	items := decodeArray(raw)
	out := make([]Praise, 0, len(items))
	for _, item := range items {
		if praise, ok := decodePraise(item); ok {
			out = append(out, praise)
		}
	}
	return out
}

func decodeImprovements(raw json.RawMessage) []Improvement {
	items := decodeArray(raw)
	out := make([]Improvement, 0, len(items))
	for _, item := range items {
		obj, ok := decodeObject(item)
		if !ok {
			continue
		}
		out = append(out, Improvement{
			Issue:          decodeString(obj["issue"]),
			Suggestion:     decodeString(obj["suggestion"]),
			RewriteExample: decodeString(obj["rewrite_example"]),
		})
	}
	return out
}
