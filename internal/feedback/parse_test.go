package feedback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-essay-evaluator/internal/rubric"
)

const fullPayload = `{
  "scores": {
    "understanding": {"score": 4, "explanation": "주제를 잘 이해함"},
    "ideas_arguments": {"score": 3, "explanation": "근거가 부족함"},
    "organization": {"score": 5, "explanation": "구조가 명확함"},
    "expression": {"score": 2, "explanation": "맞춤법 오류"},
    "attitude_integrity": {"score": 4, "explanation": "성실함"}
  },
  "overall_score": 4,
  "corrections": [{"original": "됬다", "amended": "됐다", "reason": "맞춤법"}],
  "praise": ["\"좋았다\"라는 표현이 솔직하다"],
  "improvements": [{"issue": "근거 부족", "suggestion": "예시 추가", "rewrite_example": "예를 들어 <AI> & 학교"}],
  "overall_comment": "전반적으로 좋은 글입니다."
}`

func TestParseDirect(t *testing.T) {
	outcome := Parse(fullPayload)

	require.True(t, outcome.Structured())
	require.Nil(t, outcome.Fallback)
	require.Equal(t, StepDirect, outcome.Step)

	result := outcome.Result
	require.Len(t, result.Scores, 5)
	require.Equal(t, NewScore(4), result.Scores["understanding"].Score)
	require.Equal(t, "맞춤법 오류", result.Scores["expression"].Explanation)
	require.Equal(t, NewScore(4), result.OverallScore)
	require.Equal(t, []Correction{{Original: "됬다", Amended: "됐다", Reason: "맞춤법"}}, result.Corrections)
	require.Equal(t, PraiseText, result.Praise[0].Kind)
	require.Equal(t, "\"좋았다\"라는 표현이 솔직하다", result.Praise[0].Comment)
	require.Equal(t, "예를 들어 <AI> & 학교", result.Improvements[0].RewriteExample)
	require.Equal(t, "전반적으로 좋은 글입니다.", result.OverallComment)
	require.Empty(t, Deviations(rubric.FivePoint(), result))
}

func TestParseRoundTripIsLossless(t *testing.T) {
	payloads := []string{
		fullPayload,
		`{"grade":"A0","corrections":[],"praise":[{"quote":"나는","reason":"solid start"}],"improvements":[{"issue":"i","suggestion":"s"}],"model_notes":{"tokens":12}}`,
	}

	for _, payload := range payloads {
		outcome := Parse(payload)
		require.True(t, outcome.Structured())

		encoded, err := json.Marshal(outcome.Result)
		require.NoError(t, err)
		require.JSONEq(t, payload, string(encoded))

		again := Parse(string(encoded))
		require.Equal(t, outcome.Result, again.Result)
	}
}

func TestParseFencedPayload(t *testing.T) {
	raw := "```json\n{\"grade\":\"A0\",\"corrections\":[],\"praise\":[],\"improvements\":[]}\n```"

	outcome := Parse(raw)
	require.True(t, outcome.Structured())
	require.Equal(t, StepFenceStripped, outcome.Step)
	require.Equal(t, "A0", outcome.Result.Grade)
	require.NotNil(t, outcome.Result.Corrections)
	require.Empty(t, outcome.Result.Corrections)
	require.Empty(t, outcome.Result.Praise)
	require.Empty(t, outcome.Result.Improvements)
}

func TestParseBraceExtraction(t *testing.T) {
	raw := "Here is the evaluation you asked for:\n{\"overall_score\": 3, \"praise\": [\"clear thesis\"]}\nHope this helps!"

	outcome := Parse(raw)
	require.True(t, outcome.Structured())
	require.Equal(t, StepBraceExtracted, outcome.Step)
	require.Equal(t, NewScore(3), outcome.Result.OverallScore)
	require.Equal(t, "clear thesis", outcome.Result.Praise[0].Comment)
}

func TestParseFallsBackToRaw(t *testing.T) {
	cases := []string{
		"Sorry, I cannot help.",
		"",
		"   ",
		"```json\n{\"scores\": {\n```",
		"null",
		`"just a string"`,
		`[1, 2, 3]`,
		`{"message": "no schema fields here"}`,
		"{ broken } and { also broken }",
	}

	for _, raw := range cases {
		outcome := Parse(raw)
		require.False(t, outcome.Structured(), raw)
		require.Equal(t, StepRawFallback, outcome.Step)
		require.Equal(t, RawFallback{Raw: raw}, *outcome.Fallback)
	}
}

func TestParseLenientFields(t *testing.T) {
	raw := `{
	  "scores": {
	    "understanding": {"score": "5", "explanation": "ok"},
	    "ideas_arguments": {"score": 3.5},
	    "organization": 4,
	    "expression": {"score": null, "explanation": 7},
	    "attitude_integrity": "bad"
	  },
	  "overall_score": "four",
	  "corrections": "none",
	  "praise": [{"quote": "q", "reason": "r"}, "plain", 42, null],
	  "improvements": [{"issue": "x"}, "not-an-object"],
	  "overall_comment": null
	}`

	outcome := Parse(raw)
	require.True(t, outcome.Structured())

	result := outcome.Result
	require.Equal(t, NewScore(5), result.Scores["understanding"].Score)
	require.False(t, result.Scores["ideas_arguments"].Score.Valid)
	require.Equal(t, NewScore(4), result.Scores["organization"].Score)
	require.False(t, result.Scores["expression"].Score.Valid)
	require.Equal(t, "7", result.Scores["expression"].Explanation)
	require.False(t, result.Scores["attitude_integrity"].Score.Valid)
	require.Equal(t, MissingValue, result.OverallScore.String())
	require.NotNil(t, result.Corrections)
	require.Empty(t, result.Corrections)
	require.Equal(t, []Praise{
		{Kind: PraiseQuote, Quote: "q", Comment: "r"},
		{Kind: PraiseText, Comment: "plain"},
	}, result.Praise)
	require.Equal(t, []Improvement{{Issue: "x"}}, result.Improvements)
	require.Empty(t, result.OverallComment)
}

func TestStripFences(t *testing.T) {
	require.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, StripFences("  ```JSON {\"a\":1}```  "))
	require.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}\n```\n"))
	require.Equal(t, "plain", StripFences("\n plain \n"))
}

func TestDeviations(t *testing.T) {
	outcome := Parse(`{"scores": {"understanding": {"score": 9}, "style": {"score": 2}}, "grade": "Z"}`)
	require.True(t, outcome.Structured())

	deviations := Deviations(rubric.FourBand(), outcome.Result)
	require.Contains(t, deviations, "score 9 for understanding outside 1-4")
	require.Contains(t, deviations, "missing score for organization")
	require.Contains(t, deviations, "unknown rubric item style")
	require.Contains(t, deviations, "missing overall score")
	require.Contains(t, deviations, `unexpected grade "Z"`)

	require.Nil(t, Deviations(rubric.FivePoint(), nil))
}

func TestResultUnmarshalJSON(t *testing.T) {
	var result Result
	require.NoError(t, json.Unmarshal([]byte(`{"overall_score": 2, "praise": ["nice"]}`), &result))
	require.Equal(t, NewScore(2), result.OverallScore)
	require.Equal(t, "nice", result.Praise[0].Comment)

	require.Error(t, json.Unmarshal([]byte(`["not", "an", "object"]`), &result))
}
