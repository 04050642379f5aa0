package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-essay-evaluator/internal/dto"
	"github.com/noah-isme/gema-essay-evaluator/internal/render"
	"github.com/noah-isme/gema-essay-evaluator/internal/service"
	"github.com/noah-isme/gema-essay-evaluator/internal/utils"
)

// EvaluationHandler serves the JSON evaluation API.
type EvaluationHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewEvaluationHandler constructs an evaluation handler.
func NewEvaluationHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires evaluation routes. Guards run before the evaluation itself.
func (h *EvaluationHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	handlers := append(append([]fiber.Handler{}, guards...), h.evaluate)
	router.Post("/evaluations", handlers...)
	router.Get("/options", h.options)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, codeInputError, "invalid payload")
	}

	response, err := h.service.Evaluate(c.UserContext(), payload, credentialFrom(c, ""))
	if err != nil {
		mapped := mapError(err)
		if mapped.status >= fiber.StatusInternalServerError {
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to evaluate essay")
		}
		return utils.SendErrorCode(c, mapped.status, mapped.code, mapped.message)
	}

	if c.QueryBool("download") {
		return utils.SendAttachment(c, render.ExportFilename, render.ExportContentType, response.Export)
	}

	message := "essay evaluated"
	if response.Status == dto.StatusRawFallback {
		message = render.FallbackNotice
	}
	return utils.SendSuccess(c, message, response)
}

func (h *EvaluationHandler) options(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "evaluation options", h.service.Options())
}
