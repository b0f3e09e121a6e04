package handlers

import (
	"errors"
	"log"

	"vinted/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const (
	MsgPageNotFound  = "This page does not exist"
	MsgInternalError = "Something went wrong"
)

func success(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func failure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// StatusFor maps a service error kind to an HTTP status.
func StatusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindOutOfRange, services.KindConflict, services.KindInvalidFilter:
		return fiber.StatusBadRequest
	case services.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case services.KindNotFound:
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

// respondError renders a service error. Only the client-safe message leaves
// the process; the cause is logged.
func respondError(c *fiber.Ctx, err error) error {
	var se *services.Error
	if !errors.As(err, &se) {
		log.Printf("Unexpected error on %s %s: %v", c.Method(), c.Path(), err)
		return failure(c, fiber.StatusInternalServerError, MsgInternalError)
	}
	status := StatusFor(se.Kind)
	if status >= fiber.StatusInternalServerError {
		log.Printf("Error on %s %s: %v", c.Method(), c.Path(), err)
		if se.Kind == services.KindInternal {
			return failure(c, status, MsgInternalError)
		}
	}
	return failure(c, status, se.Message)
}

// ErrorHandler renders errors that escaped a handler in the response envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code == fiber.StatusNotFound {
			return failure(c, fe.Code, MsgPageNotFound)
		}
		if fe.Code < fiber.StatusInternalServerError {
			return failure(c, fe.Code, fe.Message)
		}
	}
	log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	return failure(c, fiber.StatusInternalServerError, MsgInternalError)
}

// NotFound answers any route no handler matched.
func NotFound(c *fiber.Ctx) error {
	return failure(c, fiber.StatusNotFound, MsgPageNotFound)
}

// validationMessage returns the message of the first failing field, falling
// back to fallback for fields without one.
func validationMessage(err error, messages map[string]string, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			if msg, ok := messages[e.StructField()]; ok {
				return msg
			}
		}
	}
	return fallback
}
