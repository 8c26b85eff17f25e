package handlers

import (
	"github.com/anjiri1684/school_cbt/middleware"
	"github.com/anjiri1684/school_cbt/services"
	"github.com/gofiber/fiber/v2"
)

type ExamHandler struct {
	exams *services.ExamService
}

func NewExamHandler(exams *services.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

type TestCodeRequest struct {
	TestCode string `json:"test_code" query:"test_code" validate:"required,alphanum,max=16"`
}

func (h *ExamHandler) RedeemCode(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}

	var req TestCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	paper, err := h.exams.Redeem(c.UserContext(), req.TestCode, user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(paper)
}

func (h *ExamHandler) GetPaper(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}

	var req TestCodeRequest
	if err := c.QueryParser(&req); err != nil {
		return badRequest(c, "Invalid query")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	paper, err := h.exams.Deliver(c.UserContext(), req.TestCode, user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(paper)
}
