package handlers

import (
	"errors"

	"github.com/anjiri1684/school_cbt/logger"
	"github.com/anjiri1684/school_cbt/services"
	"github.com/anjiri1684/school_cbt/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

type errorClass struct {
	target error
	status int
	code   string
}

// Order matters: refined errors are matched by their class.
var errorClasses = []errorClass{
	{services.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{services.ErrBatchNotFound, fiber.StatusNotFound, "not_found"},
	{services.ErrForbidden, fiber.StatusForbidden, "forbidden"},
	{services.ErrInvalidState, fiber.StatusUnprocessableEntity, "invalid_state"},
	{services.ErrExpired, fiber.StatusGone, "expired"},
	{services.ErrAlreadyInUse, fiber.StatusConflict, "already_in_use"},
	{services.ErrAlreadyConsumed, fiber.StatusConflict, "already_consumed"},
	{services.ErrConflict, fiber.StatusConflict, "conflict"},
	{services.ErrInsufficientQuestions, fiber.StatusUnprocessableEntity, "insufficient_questions"},
	{services.ErrValidation, fiber.StatusBadRequest, "validation_error"},
	{utils.ErrInvalidFlag, fiber.StatusBadRequest, "validation_error"},
}

func respondError(c *fiber.Ctx, err error) error {
	for _, ec := range errorClasses {
		if errors.Is(err, ec.target) {
			return c.Status(ec.status).JSON(fiber.Map{"error": err.Error(), "code": ec.code})
		}
	}

	logger.Log.WithFields(logrus.Fields{
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.Locals("requestid"),
	}).WithError(err).Error("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error", "code": "internal"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": "validation_error"})
}
