package dto

import (
	"github.com/noah-isme/gema-essay-evaluator/internal/feedback"
	"github.com/noah-isme/gema-essay-evaluator/internal/render"
	"github.com/noah-isme/gema-essay-evaluator/pkg/ai"
)

// Evaluation statuses.
const (
	StatusStructured  = "structured"
	StatusRawFallback = "raw_fallback"
)

// EvaluationRequest is the payload accepted by the evaluation endpoints.
type EvaluationRequest struct {
	Topic       string `json:"topic" form:"topic" validate:"omitempty,max=300"`
	CustomTopic string `json:"custom_topic" form:"custom_topic" validate:"omitempty,max=300"`
	Language    string `json:"language" form:"language" validate:"omitempty,max=32"`
	Rubric      string `json:"rubric" form:"rubric" validate:"omitempty,max=64"`
	Provider    string `json:"provider" form:"provider" validate:"omitempty,max=32"`
	Model       string `json:"model" form:"model" validate:"omitempty,max=100"`
	Essay       string `json:"essay" form:"essay" validate:"max=50000"`
}

// EvaluationResponse is the serialized outcome of one evaluation.
type EvaluationResponse struct {
	Status     string           `json:"status"`
	Topic      string           `json:"topic"`
	Language   string           `json:"language"`
	Rubric     string           `json:"rubric"`
	Step       string           `json:"step"`
	Result     *feedback.Result `json:"result,omitempty"`
	Raw        string           `json:"raw,omitempty"`
	Notice     string           `json:"notice,omitempty"`
	Deviations []string         `json:"deviations,omitempty"`
	Completion ai.Completion    `json:"completion"`
	Report     render.Report    `json:"report"`

	// Export is the downloadable artifact; it is served separately.
	Export []byte `json:"-"`
}

// RubricOption describes a selectable rubric.
type RubricOption struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ScaleMin int    `json:"scale_min"`
	ScaleMax int    `json:"scale_max"`
	Grades   bool   `json:"grades"`
	Default  bool   `json:"default"`
}

// LanguageOption describes a selectable feedback language.
type LanguageOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionsResponse lists the choices offered by the submission form.
type OptionsResponse struct {
	Topics       []string         `json:"topics"`
	CustomTopic  string           `json:"custom_topic"`
	Languages    []LanguageOption `json:"languages"`
	Rubrics      []RubricOption   `json:"rubrics"`
	Providers    []string         `json:"providers"`
	Provider     string           `json:"default_provider"`
	DefaultModel string           `json:"default_model"`
}
