package handler

import (
	"bytes"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-essay-evaluator/internal/dto"
	"github.com/noah-isme/gema-essay-evaluator/internal/prompt"
	"github.com/noah-isme/gema-essay-evaluator/internal/render"
	"github.com/noah-isme/gema-essay-evaluator/internal/service"
)

const pageTitle = "Student Writing Evaluator"

// PageHandler serves the HTML form and result pages.
type PageHandler struct {
	service        service.EvaluationService
	pages          *render.Pages
	maxUploadBytes int64
	logger         zerolog.Logger
}

// NewPageHandler constructs a page handler.
func NewPageHandler(service service.EvaluationService, pages *render.Pages, maxUploadBytes int64, logger zerolog.Logger) *PageHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 1 << 20
	}
	return &PageHandler{
		service:        service,
		pages:          pages,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("component", "page_handler").Logger(),
	}
}

// Register wires the page routes. Guards run before a submission is evaluated.
func (h *PageHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/", h.form)
	handlers := append(append([]fiber.Handler{}, guards...), h.submit)
	router.Post("/", handlers...)
}

func (h *PageHandler) form(c *fiber.Ctx) error {
	view := h.formView(dto.EvaluationRequest{})
	buf := bytes.Buffer{}
	if err := h.pages.Form(&buf, view); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to render form")
		return fiber.ErrInternalServerError
	}
	return h.sendHTML(c, fiber.StatusOK, buf.Bytes())
}

func (h *PageHandler) submit(c *fiber.Ctx) error {
	var payload dto.EvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return h.renderError(c, payload, errorMapping{fiber.StatusBadRequest, codeInputError, "invalid payload"})
	}

	if header, err := c.FormFile("essay_file"); err == nil && header.Size > 0 {
		text, err := readEssayFile(header, h.maxUploadBytes)
		if err != nil {
			if !errors.Is(err, ErrEssayFileType) && !errors.Is(err, ErrEssayFileTooLarge) {
				requestLogger(h.logger, c).Error().Err(err).Msg("failed to read essay file")
			}
			return h.renderError(c, payload, mapError(err))
		}
		payload.Essay = text
	}

	response, err := h.service.Evaluate(c.UserContext(), payload, credentialFrom(c, "api_key"))
	if err != nil {
		mapped := mapError(err)
		if mapped.status >= fiber.StatusInternalServerError {
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to evaluate essay")
		}
		return h.renderError(c, payload, mapped)
	}

	buf := bytes.Buffer{}
	if err := h.pages.Result(&buf, render.ResultView{
		Form:        h.formView(payload),
		Topic:       response.Topic,
		Model:       response.Completion.Model,
		Report:      response.Report,
		DownloadURI: render.DownloadURI(response.Export),
		Filename:    render.ExportFilename,
	}); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to render result")
		return fiber.ErrInternalServerError
	}
	return h.sendHTML(c, fiber.StatusOK, buf.Bytes())
}

func (h *PageHandler) renderError(c *fiber.Ctx, payload dto.EvaluationRequest, mapped errorMapping) error {
	view := h.formView(payload)
	view.Error = mapped.message

	buf := bytes.Buffer{}
	if err := h.pages.Form(&buf, view); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to render form")
		return fiber.ErrInternalServerError
	}
	return h.sendHTML(c, mapped.status, buf.Bytes())
}

func (h *PageHandler) sendHTML(c *fiber.Ctx, status int, body []byte) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(body)
}

// formView builds the form, keeping the previous submission selected.
func (h *PageHandler) formView(req dto.EvaluationRequest) render.FormView {
	options := h.service.Options()

	view := render.FormView{
		Title:            pageTitle,
		CustomTopicValue: options.CustomTopic,
		CustomTopic:      req.CustomTopic,
		Model:            strings.TrimSpace(req.Model),
		ModelPlaceholder: options.DefaultModel,
		Essay:            req.Essay,
		CustomSelected:   prompt.IsCustomSelection(req.Topic),
	}

	topic := strings.TrimSpace(req.Topic)
	for i, candidate := range options.Topics {
		view.Topics = append(view.Topics, render.Option{
			Value:    candidate,
			Label:    candidate,
			Selected: candidate == topic || (topic == "" && i == 0),
		})
	}

	language := strings.TrimSpace(req.Language)
	for i, lang := range options.Languages {
		view.Languages = append(view.Languages, render.Option{
			Value:    lang.Value,
			Label:    lang.Label,
			Selected: strings.EqualFold(lang.Value, language) || (language == "" && i == 0),
		})
	}

	rubricID := strings.TrimSpace(req.Rubric)
	for _, r := range options.Rubrics {
		view.Rubrics = append(view.Rubrics, render.Option{
			Value:    r.ID,
			Label:    r.Title,
			Selected: r.ID == rubricID || (rubricID == "" && r.Default),
		})
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = options.Provider
	}
	for _, p := range options.Providers {
		view.Providers = append(view.Providers, render.Option{Value: p, Label: p, Selected: p == provider})
	}

	return view
}
