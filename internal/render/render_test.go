package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-essay-evaluator/internal/feedback"
	"github.com/noah-isme/gema-essay-evaluator/internal/prompt"
	"github.com/noah-isme/gema-essay-evaluator/internal/rubric"
)

func fourBandResult() *feedback.Result {
	return &feedback.Result{
		Scores: map[string]feedback.ItemScore{
			"understanding":      {Score: feedback.NewScore(4), Explanation: "핵심을 정확히 이해함"},
			"ideas_arguments":    {Score: feedback.NewScore(3), Explanation: "근거가 다소 부족함"},
			"organization":       {Score: feedback.NewScore(3), Explanation: "문단 연결이 자연스러움"},
			"expression":         {Score: feedback.NewScore(2), Explanation: "띄어쓰기 오류 <3건>"},
			"attitude_integrity": {Score: feedback.NewScore(4), Explanation: "성실함"},
		},
		OverallScore: feedback.NewScore(3),
		Grade:        "A0",
		Corrections: []feedback.Correction{
			{Original: "좋았다 .", Amended: "좋았다.", Reason: "문장부호 앞 띄어쓰기"},
		},
		Praise: []feedback.Praise{
			{Kind: feedback.PraiseQuote, Quote: "나는 이 영화가 좋았다.", Comment: "솔직한 감상"},
		},
		Improvements: []feedback.Improvement{
			{Issue: "근거 부족", Suggestion: "구체적 장면을 인용하세요"},
		},
		OverallComment: "전반적으로 좋습니다.\n\n근거를 보완하세요.",
	}
}

func TestBuildReportStructured(t *testing.T) {
	r := rubric.FivePoint()
	result := &feedback.Result{
		Scores: map[string]feedback.ItemScore{
			"understanding": {Score: feedback.NewScore(5), Explanation: " 훌륭함 "},
			"expression":    {Score: feedback.Score{}, Explanation: "점수 누락"},
			"organization":  {Score: feedback.NewScore(9), Explanation: "범위 밖"},
		},
		OverallScore: feedback.NewScore(4),
		Praise: []feedback.Praise{
			{Kind: feedback.PraiseText, Comment: "주제 의식이 분명함"},
			{Kind: feedback.PraiseText},
		},
	}

	report := BuildReport(r, feedback.Outcome{Result: result, Step: feedback.StepDirect})

	require.True(t, report.Structured)
	require.Empty(t, report.Notice)
	require.Equal(t, "4/5", report.OverallScore)
	require.Equal(t, "우수/Strong", report.OverallBand)
	require.False(t, report.ShowGrade)
	require.Len(t, report.Rows, len(r.Items))

	rows := map[string]Row{}
	for _, row := range report.Rows {
		rows[row.ItemID] = row
	}
	require.Equal(t, Row{ItemID: "understanding", Label: r.Items[0].Label, Score: "5", Band: "탁월/Excellent", Explanation: "훌륭함"}, rows["understanding"])
	require.Equal(t, "-", rows["expression"].Score)
	require.Equal(t, "-", rows["expression"].Band)
	require.Equal(t, "9", rows["organization"].Score)
	require.Equal(t, "-", rows["organization"].Band)
	require.Equal(t, "-", rows["attitude_integrity"].Score)
	require.Empty(t, rows["attitude_integrity"].Explanation)

	require.Equal(t, []PraiseLine{{Comment: "주제 의식이 분명함"}}, report.Praise)
	require.NotNil(t, report.Improvements)
	require.NotNil(t, report.Corrections)
}

func TestBuildReportGradeVariant(t *testing.T) {
	report := BuildReport(rubric.FourBand(), feedback.Outcome{Result: fourBandResult(), Step: feedback.StepFenceStripped})
	require.True(t, report.ShowGrade)
	require.Equal(t, "A0", report.Grade)
	require.Equal(t, "3/4", report.OverallScore)
	require.Equal(t, []PraiseLine{{Quote: "나는 이 영화가 좋았다.", Comment: "솔직한 감상"}}, report.Praise)

	missing := fourBandResult()
	missing.Grade = ""
	missing.OverallScore = feedback.Score{}
	report = BuildReport(rubric.FourBand(), feedback.Outcome{Result: missing, Step: feedback.StepDirect})
	require.Equal(t, "-", report.Grade)
	require.Equal(t, "-", report.OverallScore)
	require.Equal(t, "-", report.OverallBand)
}

func TestBuildReportRawFallback(t *testing.T) {
	outcome := feedback.Parse("Sorry, I cannot help.")
	report := BuildReport(rubric.FivePoint(), outcome)

	require.False(t, report.Structured)
	require.Equal(t, FallbackNotice, report.Notice)
	require.Equal(t, "Sorry, I cannot help.", report.Raw)
	require.Empty(t, report.Rows)
	require.Equal(t, "-", report.OverallScore)
}

func TestExportKeepsTextLiteral(t *testing.T) {
	data, err := Export(feedback.Outcome{Result: fourBandResult(), Step: feedback.StepDirect})
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "나는 이 영화가 좋았다.")
	assert.Contains(t, text, "띄어쓰기 오류 <3건>")
	assert.NotContains(t, text, `\u003c`)
	assert.True(t, strings.HasPrefix(text, "{\n  \""))
	assert.True(t, strings.HasSuffix(text, "}\n"))

	reparsed := feedback.Parse(text)
	require.Equal(t, feedback.StepDirect, reparsed.Step)
	require.Equal(t, fourBandResult(), reparsed.Result)
}

func TestExportRawFallback(t *testing.T) {
	data, err := Export(feedback.Outcome{Fallback: &feedback.RawFallback{Raw: "not json & <b>"}, Step: feedback.StepRawFallback})
	require.NoError(t, err)
	require.JSONEq(t, `{"raw":"not json & <b>"}`, string(data))
	require.Contains(t, string(data), "not json & <b>")

	_, err = Export(feedback.Outcome{})
	require.Error(t, err)
}

func TestExportMatchesOutputSchema(t *testing.T) {
	for _, r := range []rubric.Rubric{rubric.FivePoint(), rubric.FourBand()} {
		t.Run(r.ID, func(t *testing.T) {
			schemaJSON, err := json.Marshal(prompt.OutputSchema(r))
			require.NoError(t, err)
			schemaJSON = dropNulls(t, schemaJSON)

			compiler := jsonschema.NewCompiler()
			require.NoError(t, compiler.AddResource("output.schema.json", bytes.NewReader(schemaJSON)))
			schema, err := compiler.Compile("output.schema.json")
			require.NoError(t, err)

			result := fourBandResult()
			if r.ID == rubric.FivePointID {
				result.Grade = ""
				result.Praise = []feedback.Praise{{Kind: feedback.PraiseText, Comment: "솔직한 감상"}}
				result.Improvements[0].RewriteExample = "영화의 마지막 장면에서 주인공이 보여 준 용기가 인상 깊었다."
			}

			data, err := Export(feedback.Outcome{Result: result, Step: feedback.StepDirect})
			require.NoError(t, err)

			var payload any
			require.NoError(t, json.Unmarshal(data, &payload))
			require.NoError(t, schema.Validate(payload))
		})
	}
}

// dropNulls removes null members, which go-openai emits for nested leaf definitions.
func dropNulls(t *testing.T, data []byte) []byte {
	t.Helper()
	var doc any
	require.NoError(t, json.Unmarshal(data, &doc))

	var walk func(v any)
	walk = func(v any) {
		switch node := v.(type) {
		case map[string]any:
			for key, child := range node {
				if child == nil {
					delete(node, key)
					continue
				}
				walk(child)
			}
		case []any:
			for _, child := range node {
				walk(child)
			}
		}
	}
	walk(doc)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return out
}

func TestPagesRenderResult(t *testing.T) {
	pages, err := NewPages()
	require.NoError(t, err)

	form := FormView{
		Title:            "Student Writing Evaluator",
		Topics:           []Option{{Value: "AI", Label: "AI", Selected: true}},
		CustomTopicValue: prompt.CustomTopic,
		Essay:            "나는 이 영화가 좋았다.",
	}

	result := fourBandResult()
	result.OverallComment = "<script>alert(1)</script>좋아요"
	outcome := feedback.Outcome{Result: result, Step: feedback.StepDirect}
	export, err := Export(outcome)
	require.NoError(t, err)

	buf := bytes.Buffer{}
	require.NoError(t, pages.Result(&buf, ResultView{
		Form:        form,
		Topic:       "AI",
		Report:      BuildReport(rubric.FourBand(), outcome),
		DownloadURI: DownloadURI(export),
		Filename:    ExportFilename,
	}))

	html := buf.String()
	assert.Contains(t, html, "3/4")
	assert.Contains(t, html, "A0")
	assert.Contains(t, html, "좋아요")
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, `download="evaluation_feedback.json"`)
	assert.Contains(t, html, "data:application/json;charset=utf-8;base64,")
	assert.Contains(t, html, "나는 이 영화가 좋았다.")
}

func TestPagesRenderFallbackNotice(t *testing.T) {
	pages, err := NewPages()
	require.NoError(t, err)

	outcome := feedback.Parse("<b>plain</b> answer")
	buf := bytes.Buffer{}
	require.NoError(t, pages.Result(&buf, ResultView{
		Form:   FormView{Title: "Evaluator"},
		Report: BuildReport(rubric.FivePoint(), outcome),
	}))

	html := buf.String()
	assert.Contains(t, html, FallbackNotice)
	assert.Contains(t, html, "&lt;b&gt;plain&lt;/b&gt; answer")
}

func TestPagesRenderForm(t *testing.T) {
	pages, err := NewPages()
	require.NoError(t, err)

	buf := bytes.Buffer{}
	require.NoError(t, pages.Form(&buf, FormView{Title: "Evaluator", Error: "essay is empty"}))
	assert.Contains(t, buf.String(), "essay is empty")
	assert.NotContains(t, buf.String(), FallbackNotice)
}
