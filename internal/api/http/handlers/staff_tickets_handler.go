package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// StaffTicketsHandler exposes the technician and administrator ticket views.
type StaffTicketsHandler struct {
	service *service.TicketService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(ticketService *service.TicketService) *StaffTicketsHandler {
	return &StaffTicketsHandler{service: ticketService}
}

// ListEscalated GET /staff/tickets/escalated.
func (h *StaffTicketsHandler) ListEscalated(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	limit, offset := parsePagination(c)
	tickets, err := h.service.ListEscalatedTickets(c.UserContext(), actor, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// ListReopened GET /staff/tickets/reopened.
func (h *StaffTicketsHandler) ListReopened(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	limit, offset := parsePagination(c)
	tickets, err := h.service.ListReopenedTickets(c.UserContext(), actor, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// ListTechnicians GET /staff/technicians.
func (h *StaffTicketsHandler) ListTechnicians(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	technicians, err := h.service.ListTechnicians(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(technicians))
	for _, tech := range technicians {
		items = append(items, dto.UserResponse{
			ID:    tech.ID,
			Name:  tech.Name,
			Email: tech.Email,
			Role:  tech.Role,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
