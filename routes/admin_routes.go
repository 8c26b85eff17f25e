package routes

import (
	"github.com/anjiri1684/school_cbt/handlers"
	"github.com/anjiri1684/school_cbt/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, h *handlers.TestCodeHandler) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())

	batches := admin.Group("/test-codes/batches")
	batches.Post("", h.GenerateBatch)
	batches.Get("/:batchId", h.GetBatch)
	batches.Put("/:batchId/activation", h.SetBatchActivation)
	batches.Patch("/:batchId", h.UpdateBatch)
	batches.Delete("/:batchId", h.DeleteBatch)
}
