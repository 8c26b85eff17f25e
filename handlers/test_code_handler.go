package handlers

import (
	"github.com/anjiri1684/school_cbt/middleware"
	"github.com/anjiri1684/school_cbt/services"
	"github.com/anjiri1684/school_cbt/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type TestCodeHandler struct {
	registry *services.CodeRegistry
}

func NewTestCodeHandler(registry *services.CodeRegistry) *TestCodeHandler {
	return &TestCodeHandler{registry: registry}
}

type ActivationRequest struct {
	IsActivated any `json:"is_activated"`
}

func batchIDParam(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("batchId"))
	return id, err == nil
}

func (h *TestCodeHandler) GenerateBatch(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}

	var spec services.BatchSpec
	if err := c.BodyParser(&spec); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}

	codes, err := h.registry.GenerateBatch(c.UserContext(), spec, user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"batch_id": codes[0].BatchID,
		"count":    len(codes),
		"codes":    codes,
	})
}

func (h *TestCodeHandler) GetBatch(c *fiber.Ctx) error {
	batchID, ok := batchIDParam(c)
	if !ok {
		return badRequest(c, "Invalid batch id")
	}

	codes, err := h.registry.ListBatch(c.UserContext(), batchID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"batch_id": batchID, "count": len(codes), "codes": codes})
}

func (h *TestCodeHandler) SetBatchActivation(c *fiber.Ctx) error {
	batchID, ok := batchIDParam(c)
	if !ok {
		return badRequest(c, "Invalid batch id")
	}

	var req ActivationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	activate, err := utils.ParseActivationFlag(req.IsActivated)
	if err != nil {
		return respondError(c, err)
	}

	count, err := h.registry.ActivateBatch(c.UserContext(), batchID, activate)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"batch_id": batchID, "is_activated": activate, "updated": count})
}

func (h *TestCodeHandler) UpdateBatch(c *fiber.Ctx) error {
	batchID, ok := batchIDParam(c)
	if !ok {
		return badRequest(c, "Invalid batch id")
	}

	var patch services.BatchPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}

	count, err := h.registry.UpdateBatch(c.UserContext(), batchID, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"batch_id": batchID, "updated": count})
}

func (h *TestCodeHandler) DeleteBatch(c *fiber.Ctx) error {
	batchID, ok := batchIDParam(c)
	if !ok {
		return badRequest(c, "Invalid batch id")
	}

	count, err := h.registry.DeleteBatch(c.UserContext(), batchID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"batch_id": batchID, "deleted": count})
}
