package feedback

import (
	"strings"
	"unicode"
)

// RepairStep names the stage of the fallback chain that produced an Outcome.
type RepairStep int

const (
	StepDirect RepairStep = iota + 1
	StepFenceStripped
	StepBraceExtracted
	StepRawFallback
)

func (s RepairStep) String() string {
	switch s {
	case StepDirect:
		return "direct"
	case StepFenceStripped:
		return "fence_stripped"
	case StepBraceExtracted:
		return "brace_extracted"
	case StepRawFallback:
		return "raw_fallback"
	default:
		return "unknown"
	}
}

// MarshalText encodes the step by name.
func (s RepairStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is exactly one of a structured Result or a RawFallback.
type Outcome struct {
	Result   *Result      `json:"result,omitempty"`
	Fallback *RawFallback `json:"fallback,omitempty"`
	Step     RepairStep   `json:"step"`
}

// Structured reports whether the model output was decoded.
func (o Outcome) Structured() bool {
	return o.Result != nil
}

// Parse converts untrusted model output into an Outcome. It never fails: text that
// cannot be structured by any repair step comes back unchanged as a RawFallback.
func Parse(raw string) Outcome {
	if result, err := decodeResult([]byte(raw)); err == nil {
		return Outcome{Result: result, Step: StepDirect}
	}

	stripped := StripFences(raw)
	if stripped != raw {
		if result, err := decodeResult([]byte(stripped)); err == nil {
			return Outcome{Result: result, Step: StepFenceStripped}
		}
	}

	if candidate, ok := braceSpan(stripped); ok && candidate != stripped {
		if result, err := decodeResult([]byte(candidate)); err == nil {
			return Outcome{Result: result, Step: StepBraceExtracted}
		}
	}

	return Outcome{Fallback: &RawFallback{Raw: raw}, Step: StepRawFallback}
}

// StripFences trims whitespace and a surrounding ``` code fence, including an
// info string such as "json" after the opening marker.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimLeftFunc(text, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
		})
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func braceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
