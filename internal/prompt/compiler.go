package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/gema-essay-evaluator/internal/rubric"
)

// ErrEmptyEssay indicates the essay text is blank.
var ErrEmptyEssay = errors.New("essay is empty")

// Request carries the per-submission inputs of the compiler.
type Request struct {
	Topic       string
	CustomTopic string
	Essay       string
	Language    Language
}

// Prompt is the compiled system/user instruction pair.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
	Topic  string `json:"topic"`
}

const systemPrompt = "You are a meticulous Korean middle-school writing evaluator and editor. " +
	"Follow the rubric strictly and produce exhaustive, actionable feedback. " +
	"When correcting grammar/spelling/spacing, list *every* error with 'Original → Amended' and a short reason. " +
	"Your entire reply must be one valid JSON object that matches the requested schema, with no text before or after it."

// Compiler turns a rubric and a submission into prompt text. It holds no mutable
// state, so one value can be shared across requests.
type Compiler struct {
	rubric rubric.Rubric
	topics []string
}

// NewCompiler builds a compiler for the given rubric and candidate topics.
func NewCompiler(r rubric.Rubric, topics []string) Compiler {
	if len(topics) == 0 {
		topics = DefaultTopics()
	}
	return Compiler{rubric: r, topics: append([]string(nil), topics...)}
}

// Rubric returns the rubric the compiler embeds.
func (c Compiler) Rubric() rubric.Rubric {
	return c.rubric
}

// Compile produces the instruction pair. Identical requests always yield identical text.
func (c Compiler) Compile(req Request) (Prompt, error) {
	if strings.TrimSpace(req.Essay) == "" {
		return Prompt{}, ErrEmptyEssay
	}

	topic, err := ResolveTopic(req.Topic, req.CustomTopic, c.topics)
	if err != nil {
		return Prompt{}, err
	}

	return Prompt{
		System: systemPrompt,
		User:   c.userPrompt(topic, req.Essay, req.Language),
		Topic:  topic,
	}, nil
}

func (c Compiler) userPrompt(topic, essay string, lang Language) string {
	r := c.rubric
	scale := r.Scale

	b := strings.Builder{}
	b.WriteString("You will evaluate a student's essay according to the following rubric and output **valid JSON only**.\n\n")
	fmt.Fprintf(&b, "Topic: \"%s\"\n\n", topic)

	fmt.Fprintf(&b, "Rubric: %s (%d–%d scale per item):\n", r.Title, scale.Min, scale.Max)
	for _, item := range r.Items {
		fmt.Fprintf(&b, "- %s: %s", item.ID, item.Label)
		if item.Summary != "" {
			fmt.Fprintf(&b, " — %s", item.Summary)
		}
		if item.Description != "" {
			fmt.Fprintf(&b, " (%s)", item.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nScore bands:\n")
	for _, score := range scale.Descending() {
		fmt.Fprintf(&b, "- %d = %s\n", score, scale.Band(score))
	}

	b.WriteString("\n**Feedback requirements:**\n")
	b.WriteString("1) Corrections (spell, spacing, grammar): list every error as objects with fields `original`, `amended`, `reason`.\n")
	if r.PraiseStyle == rubric.PraiseQuote {
		b.WriteString("2) Praise: objects with `quote` (the exact phrase copied from the student's text) and `reason` (why it works). No vague praise.\n")
	} else {
		b.WriteString("2) Praise: concrete compliments referencing exact phrases/parts from the student's text (no vague praise).\n")
	}
	if r.RewriteRequired {
		b.WriteString("3) Improvements: clear, specific fixes with a concrete `rewrite_example` for each issue.\n")
	} else {
		b.WriteString("3) Improvements: clear, specific fixes; add a `rewrite_example` wherever a rewrite helps.\n")
	}
	fmt.Fprintf(&b, "4) Scores: integer %d–%d for each rubric item with short `explanation` per item, and `overall_score` (%d–%d).\n",
		scale.Min, scale.Max, scale.Min, scale.Max)
	if r.UsesGrades() {
		fmt.Fprintf(&b, "5) Grade: one letter grade out of %s.\n", strings.Join(r.Grades, ", "))
		b.WriteString("6) Overall comment: brief summary.\n")
	} else {
		b.WriteString("5) Overall comment: brief summary.\n")
	}

	fmt.Fprintf(&b, "\n**Language for outputs:** %s\n\n", lang.Label())

	b.WriteString("Student essay begins below (between triple backticks):\n")
	b.WriteString("```essay\n")
	b.WriteString(essay)
	b.WriteString("\n```\n\n")

	b.WriteString("Return **ONLY** a single JSON object with this schema:\n")
	b.WriteString(SchemaExample(r))
	return b.String()
}

// SchemaExample renders the literal structural example of the expected JSON object.
func SchemaExample(r rubric.Rubric) string {
	b := strings.Builder{}
	b.WriteString("{\n")
	b.WriteString("  \"scores\": {\n")
	for i, item := range r.Items {
		fmt.Fprintf(&b, "    %q: {\"score\": int, \"explanation\": string}", item.ID)
		if i < len(r.Items)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  },\n")
	b.WriteString("  \"overall_score\": int,\n")
	if r.UsesGrades() {
		quoted := make([]string, 0, len(r.Grades))
		for _, grade := range r.Grades {
			quoted = append(quoted, fmt.Sprintf("%q", grade))
		}
		fmt.Fprintf(&b, "  \"grade\": %s,\n", strings.Join(quoted, " | "))
	}
	b.WriteString("  \"corrections\": [ {\"original\": string, \"amended\": string, \"reason\": string}, ... ],\n")
	if r.PraiseStyle == rubric.PraiseQuote {
		b.WriteString("  \"praise\": [ {\"quote\": string, \"reason\": string}, ... ],\n")
	} else {
		b.WriteString("  \"praise\": [ string, ... ],\n")
	}
	if r.RewriteRequired {
		b.WriteString("  \"improvements\": [ {\"issue\": string, \"suggestion\": string, \"rewrite_example\": string}, ... ],\n")
	} else {
		b.WriteString("  \"improvements\": [ {\"issue\": string, \"suggestion\": string, \"rewrite_example\": string (optional)}, ... ],\n")
	}
	b.WriteString("  \"overall_comment\": string\n")
	b.WriteString("}\n")
	return b.String()
}
