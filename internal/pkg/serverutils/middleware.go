// FILE: internal/pkg/serverutils/middleware.go
package serverutils

import (
	"github.com/gofiber/fiber/v2"
)

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func ErrorResponse(code int, message string) APIError {
	return APIError{Code: code, Message: message}
}

// ErrorHandlerMiddleware converts panics and unhandled fiber errors into a
// uniform JSON error body. Nothing in the voice core is allowed to take the
// process down; worst case is a 500 plus a session reset.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				_ = ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(500, "internal server error"))
			}
		}()

		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := fiber.StatusInternalServerError
		if fe, ok := err.(*fiber.Error); ok {
			code = fe.Code
		}
		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}
