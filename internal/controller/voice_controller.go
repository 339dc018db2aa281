// FILE: internal/controller/voice_controller.go
package controller

import (
	"errors"

	"ai-waiter-service/internal/dto"
	"ai-waiter-service/internal/pkg/serverutils"
	"ai-waiter-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type IVoiceController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	StartCapture(ctx *fiber.Ctx) error
	StopCapture(ctx *fiber.Ctx) error
	EndSession(ctx *fiber.Ctx) error
	GetConversation(ctx *fiber.Ctx) error
	GetCart(ctx *fiber.Ctx) error
	GetTranscript(ctx *fiber.Ctx) error
}

type voiceController struct {
	service  service.IVoiceSessionService
	validate *validator.Validate
}

func NewVoiceController(svc service.IVoiceSessionService) IVoiceController {
	return &voiceController{
		service:  svc,
		validate: validator.New(),
	}
}

func (c *voiceController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/voice")
	h.Post("/sessions", c.CreateSession)
	h.Get("/sessions/:id", c.GetSession)
	h.Post("/sessions/:id/capture/start", c.StartCapture)
	h.Post("/sessions/:id/capture/stop", c.StopCapture)
	h.Delete("/sessions/:id", c.EndSession)
	h.Get("/sessions/:id/conversation", c.GetConversation)
	h.Get("/sessions/:id/cart", c.GetCart)
	h.Get("/sessions/:id/transcript", c.GetTranscript)
}

func (c *voiceController) CreateSession(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid request body"))
	}
	if err := c.validate.Struct(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.service.CreateSession(ctx.Context(), req)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.Status(fiber.StatusCreated).JSON(res)
}

func (c *voiceController) GetSession(ctx *fiber.Ctx) error {
	res, err := c.service.GetSession(ctx.Params("id"))
	if err != nil {
		return c.mapError(ctx, err)
	}
	return ctx.JSON(res)
}

func (c *voiceController) StartCapture(ctx *fiber.Ctx) error {
	if err := c.service.StartCapture(ctx.Context(), ctx.Params("id")); err != nil {
		return c.mapError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusAccepted)
}

func (c *voiceController) StopCapture(ctx *fiber.Ctx) error {
	if err := c.service.StopCapture(ctx.Context(), ctx.Params("id")); err != nil {
		return c.mapError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusAccepted)
}

func (c *voiceController) EndSession(ctx *fiber.Ctx) error {
	if err := c.service.EndSession(ctx.Context(), ctx.Params("id")); err != nil {
		return c.mapError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *voiceController) GetConversation(ctx *fiber.Ctx) error {
	res, err := c.service.Conversation(ctx.Params("id"))
	if err != nil {
		return c.mapError(ctx, err)
	}
	return ctx.JSON(res)
}

func (c *voiceController) GetCart(ctx *fiber.Ctx) error {
	res, err := c.service.CartState(ctx.Params("id"))
	if err != nil {
		return c.mapError(ctx, err)
	}
	return ctx.JSON(res)
}

func (c *voiceController) GetTranscript(ctx *fiber.Ctx) error {
	res, err := c.service.Transcript(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return c.mapError(ctx, err)
	}
	return ctx.JSON(res)
}

func (c *voiceController) mapError(ctx *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrSessionNotFound) {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
	}
	return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
}
