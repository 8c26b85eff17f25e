package routes

import (
	"github.com/anjiri1684/school_cbt/handlers"
	"github.com/anjiri1684/school_cbt/middleware"
	"github.com/gofiber/fiber/v2"
)

func ExamRoutes(app *fiber.App, h *handlers.ExamHandler, redeemLimit int) {
	api := app.Group("/api/v1")

	exams := api.Group("/exams", middleware.Protected(), middleware.StudentRequired())
	exams.Post("/redeem", middleware.RedeemRateLimiter(redeemLimit), h.RedeemCode)
	exams.Get("/paper", h.GetPaper)
}
