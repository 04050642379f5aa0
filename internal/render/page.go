package render

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

// Option is one entry of a form select.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// FormView is the data of the submission form.
type FormView struct {
	Title            string
	Topics           []Option
	Languages        []Option
	Rubrics          []Option
	Providers        []Option
	CustomTopicValue string
	CustomSelected   bool
	CustomTopic      string
	Model            string
	ModelPlaceholder string
	Essay            string
	Error            string
}

// ResultView is the data of the result page.
type ResultView struct {
	Form        FormView
	Topic       string
	Model       string
	Report      Report
	DownloadURI template.URL
	Filename    string
}

// Pages renders the HTML views from the embedded templates.
type Pages struct {
	tmpl *template.Template
}

// NewPages parses the embedded templates.
func NewPages() (*Pages, error) {
	policy := bluemonday.StrictPolicy()
	funcs := template.FuncMap{
		"paragraphs": func(text string) []template.HTML {
			return Paragraphs(policy, text)
		},
		"inc": func(i int) int { return i + 1 },
	}

	tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}

	return &Pages{tmpl: tmpl}, nil
}

// Form writes the submission form.
func (p *Pages) Form(w io.Writer, view FormView) error {
	return p.tmpl.ExecuteTemplate(w, "layout.html", pageData{Form: view})
}

// Result writes the evaluation result followed by the form, prefilled.
func (p *Pages) Result(w io.Writer, view ResultView) error {
	return p.tmpl.ExecuteTemplate(w, "layout.html", pageData{Form: view.Form, Result: &view})
}

type pageData struct {
	Form   FormView
	Result *ResultView
}

// DownloadURI embeds an exported artifact in a data URI so the page needs no server state.
func DownloadURI(export []byte) template.URL {
	return template.URL("data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(export))
}

// Paragraphs splits model text on line breaks and strips any markup through policy.
func Paragraphs(policy *bluemonday.Policy, text string) []template.HTML {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]template.HTML, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// StrictPolicy escapes text content, so the result is safe to inline.
		out = append(out, template.HTML(policy.Sanitize(line)))
	}
	return out
}
