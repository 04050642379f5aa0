package render

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/noah-isme/gema-essay-evaluator/internal/feedback"
)

// ExportFilename is the suggested name of the downloadable artifact.
const ExportFilename = "evaluation_feedback.json"

// ExportContentType is the media type of the artifact.
const ExportContentType = "application/json; charset=utf-8"

var errEmptyOutcome = errors.New("outcome has neither a result nor a raw fallback")

// Export encodes the outcome as indented UTF-8 JSON. Non-ASCII text and <>& stay literal.
// A raw fallback is exported as {"raw": "..."}.
func Export(outcome feedback.Outcome) ([]byte, error) {
	var payload any
	switch {
	case outcome.Result != nil:
		payload = outcome.Result
	case outcome.Fallback != nil:
		payload = outcome.Fallback
	default:
		return nil, errEmptyOutcome
	}

	// Result.MarshalJSON re-merges Extra keys, so it is encoded first and indented after.
	compact, err := marshal(payload)
	if err != nil {
		return nil, err
	}

	out := bytes.Buffer{}
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func marshal(v any) ([]byte, error) {
	buf := bytes.Buffer{}
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
