package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// ServicesHandler lists the service catalog.
type ServicesHandler struct {
	services repository.ServiceRepository
}

// NewServicesHandler constructs handler.
func NewServicesHandler(services repository.ServiceRepository) *ServicesHandler {
	return &ServicesHandler{services: services}
}

// List GET /services returns active catalog entries.
func (h *ServicesHandler) List(c *fiber.Ctx) error {
	if _, err := requireActor(c); err != nil {
		return err
	}
	entries, err := h.services.List(c.UserContext(), true)
	if err != nil {
		return err
	}
	items := make([]dto.ServiceResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.ServiceResponse{
			ID:                     entry.ID,
			Category:               entry.Category,
			Subcategory:            entry.Subcategory,
			TargetHours:            entry.TargetHours,
			MaxHours:               entry.MaxHours,
			RequiresApprovalLetter: entry.RequiresApprovalLetter,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
