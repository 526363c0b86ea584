package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		ServiceID:   req.ServiceID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	limit, offset := parsePagination(c)
	tickets, err := h.service.ListMyTickets(c.UserContext(), actor, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(detail)})
}

// ChangeStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Status) == "" {
		return apperrors.NewValidationError("status required", nil)
	}

	ticket, err := h.service.ChangeStatus(c.UserContext(), actor, c.Params("id"), service.StatusChangeInput{
		NewStatus:      req.Status,
		Motive:         req.Motive,
		ResumeEstimate: req.ResumeEstimate,
		Observation:    req.Observation,
		Comment:        req.Comment,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Escalate POST /tickets/:id/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Escalate(c.UserContext(), actor, c.Params("id"), req.TechnicianID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// SubmitEvaluation POST /tickets/:id/evaluation.
func (h *TicketsHandler) SubmitEvaluation(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.EvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	evaluation, err := h.service.SubmitEvaluation(c.UserContext(), actor, c.Params("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": evaluationResponse(evaluation)})
}

// AttachReopeningCause POST /tickets/:id/reopenings/cause.
func (h *TicketsHandler) AttachReopeningCause(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.ReopeningCauseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	record, err := h.service.AttachReopeningCause(c.UserContext(), actor, c.Params("id"), req.Cause)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reopeningResponse(record)})
}

func requireActor(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.User, nil
}

func parsePagination(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	return pageSize, (page - 1) * pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:           ticket.ID,
		ServiceID:    ticket.ServiceID,
		RequesterID:  ticket.RequesterID,
		TechnicianID: ticket.TechnicianID,
		Title:        ticket.Title,
		Status:       ticket.Status,
		Priority:     ticket.Priority,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
}

func ticketSummaries(tickets []domain.Ticket) []dto.TicketSummary {
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return items
}

func ticketDetail(detail *service.TicketDetail) dto.TicketDetailResponse {
	ticket := detail.Ticket
	escalations := make([]dto.EscalationResponse, 0, len(detail.Escalations))
	for _, entry := range detail.Escalations {
		escalations = append(escalations, dto.EscalationResponse{
			FromTechnicianID: entry.FromTechnicianID,
			ToTechnicianID:   entry.ToTechnicianID,
			Reason:           entry.Reason,
			CreatedAt:        entry.CreatedAt,
		})
	}
	reopenings := make([]dto.ReopeningResponse, 0, len(detail.Reopenings))
	for i := range detail.Reopenings {
		reopenings = append(reopenings, reopeningResponse(&detail.Reopenings[i]))
	}
	evaluations := make([]dto.EvaluationResponse, 0, len(detail.Evaluations))
	for i := range detail.Evaluations {
		evaluations = append(evaluations, evaluationResponse(&detail.Evaluations[i]))
	}
	return dto.TicketDetailResponse{
		ID:                 ticket.ID,
		ServiceID:          ticket.ServiceID,
		RequesterID:        ticket.RequesterID,
		TechnicianID:       ticket.TechnicianID,
		Title:              ticket.Title,
		Description:        ticket.Description,
		Status:             ticket.Status,
		Priority:           ticket.Priority,
		CreatedAt:          ticket.CreatedAt,
		AssignedAt:         ticket.AssignedAt,
		AttentionStartedAt: ticket.AttentionStartedAt,
		FinalizedAt:        ticket.FinalizedAt,
		ClosedAt:           ticket.ClosedAt,
		RemainingSeconds:   ticket.RemainingSeconds,
		AttentionSeconds:   ticket.AttentionSeconds,
		WithinTarget:       detail.WithinTarget,
		Evaluable:          detail.Evaluable,
		PendingMotive:      ticket.PendingMotive,
		PendingResumeAt:    ticket.PendingResumeAt,
		SystemClosed:       ticket.SystemClosed,
		UpdatedAt:          ticket.UpdatedAt,
		Escalations:        escalations,
		Reopenings:         reopenings,
		Evaluations:        evaluations,
	}
}

func reopeningResponse(entry *domain.Reopening) dto.ReopeningResponse {
	return dto.ReopeningResponse{
		Observation:     entry.Observation,
		PreviousStatus:  entry.PreviousStatus,
		TechnicianID:    entry.TechnicianID,
		TechnicianCause: entry.TechnicianCause,
		RespondedAt:     entry.RespondedAt,
		CreatedAt:       entry.CreatedAt,
	}
}

func evaluationResponse(entry *domain.Evaluation) dto.EvaluationResponse {
	return dto.EvaluationResponse{
		Rating:    entry.Rating,
		Comment:   entry.Comment,
		CreatedAt: entry.CreatedAt,
	}
}
