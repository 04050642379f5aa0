package prompt

import (
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/noah-isme/gema-essay-evaluator/internal/rubric"
)

// SchemaName identifies the output schema when it is sent to a provider.
const SchemaName = "essay_evaluation"

// OutputSchema describes the JSON object the model must return for the rubric.
// Providers that support structured output receive it verbatim.
func OutputSchema(r rubric.Rubric) *jsonschema.Definition {
	scoreProps := make(map[string]jsonschema.Definition, len(r.Items))
	scoreRequired := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		scoreProps[item.ID] = jsonschema.Definition{
			Type:        jsonschema.Object,
			Description: item.Label,
			Properties: map[string]jsonschema.Definition{
				"score":       {Type: jsonschema.Integer},
				"explanation": {Type: jsonschema.String},
			},
			Required: []string{"score", "explanation"},
		}
		scoreRequired = append(scoreRequired, item.ID)
	}

	praise := jsonschema.Definition{Type: jsonschema.String}
	if r.PraiseStyle == rubric.PraiseQuote {
		praise = jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"quote":  {Type: jsonschema.String},
				"reason": {Type: jsonschema.String},
			},
			Required: []string{"quote", "reason"},
		}
	}

	improvementRequired := []string{"issue", "suggestion"}
	if r.RewriteRequired {
		improvementRequired = append(improvementRequired, "rewrite_example")
	}

	props := map[string]jsonschema.Definition{
		"scores": {
			Type:       jsonschema.Object,
			Properties: scoreProps,
			Required:   scoreRequired,
		},
		"overall_score": {Type: jsonschema.Integer},
		"corrections": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"original": {Type: jsonschema.String},
					"amended":  {Type: jsonschema.String},
					"reason":   {Type: jsonschema.String},
				},
				Required: []string{"original", "amended", "reason"},
			},
		},
		"praise": {Type: jsonschema.Array, Items: &praise},
		"improvements": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"issue":           {Type: jsonschema.String},
					"suggestion":      {Type: jsonschema.String},
					"rewrite_example": {Type: jsonschema.String},
				},
				Required: improvementRequired,
			},
		},
		"overall_comment": {Type: jsonschema.String},
	}
	required := []string{"scores", "overall_score", "corrections", "praise", "improvements", "overall_comment"}

	if r.UsesGrades() {
		props["grade"] = jsonschema.Definition{Type: jsonschema.String, Enum: append([]string(nil), r.Grades...)}
		required = append(required, "grade")
	}

	return &jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: props,
		Required:   required,
	}
}
