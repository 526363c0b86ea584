package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketService is the ticket lifecycle engine: it validates and applies
// transitions, enforces role permissions, records side-effect timestamps and
// drives assignment, escalation, reopening and evaluation bookkeeping.
type TicketService struct {
	tx          repository.TxManager
	tickets     repository.TicketRepository
	escalations repository.EscalationRepository
	reopenings  repository.ReopeningRepository
	evaluations repository.EvaluationRepository
	users       repository.UserRepository
	catalog     repository.ServiceRepository
	approvals   repository.ApprovalDocumentRepository
	assigner    Assigner
	reminders   persistence.ReminderStore
	dispatcher  events.Dispatcher
	logger      *zap.Logger

	assignTimeout time.Duration
	reminderTTL   time.Duration
	now           func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TxManager      repository.TxManager
	TicketRepo     repository.TicketRepository
	EscalationRepo repository.EscalationRepository
	ReopeningRepo  repository.ReopeningRepository
	EvaluationRepo repository.EvaluationRepository
	UserRepo       repository.UserRepository
	ServiceRepo    repository.ServiceRepository
	ApprovalRepo   repository.ApprovalDocumentRepository
	Assigner       Assigner
	Reminders      persistence.ReminderStore
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	AssignTimeout  time.Duration
	ReminderTTL    time.Duration
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	ServiceID   string
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// StatusChangeInput describes a requested transition.
type StatusChangeInput struct {
	NewStatus string
	// Motive and ResumeEstimate are required when entering Pendiente through
	// the technician path.
	Motive         string
	ResumeEstimate *time.Time
	// Observation is the requester's text on the reopen path.
	Observation string
	// Comment is the admin's technician-visible note when returning an
	// escalated ticket.
	Comment string
}

// TicketDetail is the full projection returned to authorized viewers.
type TicketDetail struct {
	Ticket      *domain.Ticket
	Escalations []domain.Escalation
	Reopenings  []domain.Reopening
	Evaluations []domain.Evaluation
	// WithinTarget is derived on read: nil until closure or when the service
	// has no target configured.
	WithinTarget *bool
	// Evaluable reports whether the current closure cycle still admits an
	// evaluation, so clients can render the affordance without submitting.
	Evaluable bool
}

// ApprovalDocumentInput describes an approval letter upload.
type ApprovalDocumentInput struct {
	FileName string
	MimeType string
	Content  []byte
}

// NewTicketService constructs the engine.
func NewTicketService(deps TicketDependencies) *TicketService {
	assignTimeout := deps.AssignTimeout
	if assignTimeout <= 0 {
		assignTimeout = 3 * time.Second
	}
	reminderTTL := deps.ReminderTTL
	if reminderTTL <= 0 {
		reminderTTL = 72 * time.Hour
	}
	return &TicketService{
		tx:            deps.TxManager,
		tickets:       deps.TicketRepo,
		escalations:   deps.EscalationRepo,
		reopenings:    deps.ReopeningRepo,
		evaluations:   deps.EvaluationRepo,
		users:         deps.UserRepo,
		catalog:       deps.ServiceRepo,
		approvals:     deps.ApprovalRepo,
		assigner:      deps.Assigner,
		reminders:     deps.Reminders,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		assignTimeout: assignTimeout,
		reminderTTL:   reminderTTL,
		now:           time.Now,
	}
}

// CreateTicket creates a ticket for a requester. The first persisted state is
// Pendiente regardless of assignment outcome. Assignment resolution runs
// under a hard timeout; on failure or expiry the deterministic fallback is
// consulted and the ticket is created unassigned rather than blocking.
func (s *TicketService) CreateTicket(ctx context.Context, requester *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.ServiceID) == "" {
		return nil, apperrors.NewValidationError("service_id and title required", nil)
	}

	svc, err := s.catalog.GetByID(ctx, input.ServiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("service", map[string]any{"service_id": input.ServiceID})
		}
		return nil, apperrors.MapError(err)
	}
	if !svc.Active {
		return nil, apperrors.NewConflict("service inactive", map[string]any{"service_id": svc.ID})
	}

	priority := input.Priority
	if strings.TrimSpace(string(priority)) == "" {
		priority = domain.TicketPriorityMedia
	}
	normalized, ok := domain.NormalizePriority(priority)
	if !ok {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	technicianID, resolvedPriority := s.resolveAssignment(ctx, svc, normalized)

	ticket := &domain.Ticket{
		ServiceID:        svc.ID,
		RequesterID:      requester.ID,
		TechnicianID:     technicianID,
		Title:            title,
		Description:      strings.TrimSpace(input.Description),
		Status:           domain.TicketStatusPendiente,
		Priority:         resolvedPriority,
		RemainingSeconds: RemainingToFinalize(svc.TargetHours, svc.MaxHours),
	}
	if technicianID != nil {
		now := s.now()
		ticket.AssignedAt = &now
	}

	// Creation and assignment commit atomically: no technician can observe a
	// ticket that ends up assigned elsewhere.
	if err := s.tx.InTx(ctx, func(r repository.Repos) error {
		return r.Tickets.Create(ctx, ticket)
	}); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: requester.ID, Role: requester.Role},
		Payload: events.TicketCreatedPayload{
			ServiceID:    ticket.ServiceID,
			Priority:     ticket.Priority,
			TechnicianID: ticket.TechnicianID,
			Title:        ticket.Title,
		},
	})
	if ticket.TechnicianID != nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Actor:    events.Actor{UserID: requester.ID, Role: requester.Role},
			Payload:  events.TicketAssignedPayload{TechnicianID: ticket.TechnicianID},
		})
	}
	return ticket, nil
}

// resolveAssignment runs the automated resolver under its budget, falling
// back to the name-match policy. Resolver failures are absorbed here; they
// never surface to the caller.
func (s *TicketService) resolveAssignment(ctx context.Context, svc *domain.Service, priority domain.TicketPriority) (*string, domain.TicketPriority) {
	resolveCtx, cancel := context.WithTimeout(ctx, s.assignTimeout)
	resolution, err := s.assigner.Resolve(resolveCtx, svc, priority)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("assignment resolution timed out; falling back",
				zap.String("service_id", svc.ID))
		} else {
			s.logger.Warn("assignment resolution failed; falling back",
				zap.String("service_id", svc.ID), zap.Error(err))
		}
		fallbackCtx, cancelFb := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancelFb()
		return s.assigner.Fallback(fallbackCtx, svc), priority
	}

	normalized, ok := domain.NormalizePriority(resolution.Priority)
	if !ok {
		normalized = priority
	}
	if resolution.Priority != normalized {
		s.logger.Info("resolver priority collapsed",
			zap.String("computed", string(resolution.Priority)),
			zap.String("stored", string(normalized)))
	}
	return resolution.TechnicianID, normalized
}

// ChangeStatus validates and applies a transition. The whole transition runs
// in one transaction holding the ticket row lock, so concurrent requests
// against the same ticket serialize and a rejected transition leaves the
// ticket untouched.
func (s *TicketService) ChangeStatus(ctx context.Context, actor *domain.User, ticketID string, input StatusChangeInput) (*domain.Ticket, error) {
	newStatus, ok := domain.NormalizeStatus(input.NewStatus)
	if !ok {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": input.NewStatus})
	}
	if newStatus == domain.TicketStatusEscalado {
		return nil, apperrors.NewValidationError("escalation requires a destination technician; use the escalate operation", nil)
	}

	var updated *domain.Ticket
	var emitted []events.Event
	err := s.tx.InTx(ctx, func(r repository.Repos) error {
		ticket, err := s.lockVisible(ctx, r, actor, ticketID)
		if err != nil {
			return err
		}

		oldStatus := ticket.Status
		now := s.now()

		switch {
		case oldStatus == domain.TicketStatusCerrado && newStatus == domain.TicketStatusPendiente:
			// Reopen path: the single transition a closed ticket accepts.
			if ticket.RequesterID != actor.ID {
				return apperrors.NewForbidden("only the requester may reopen a closed ticket")
			}
			observation := strings.TrimSpace(input.Observation)
			if observation == "" {
				observation = domain.DefaultReopeningObservation
			}
			record := &domain.Reopening{
				TicketID:       ticket.ID,
				RequesterID:    actor.ID,
				TechnicianID:   ticket.TechnicianID,
				Observation:    observation,
				PreviousStatus: oldStatus,
			}
			if err := r.Reopenings.Append(ctx, record); err != nil {
				return err
			}
			// Prior finalized/closed timestamps and pending fields stay as
			// historical record.
			ticket.Status = domain.TicketStatusPendiente
			emitted = append(emitted, events.Event{
				Type:     events.EventTicketReopened,
				TicketID: ticket.ID,
				Actor:    events.Actor{UserID: actor.ID, Role: actor.Role},
				Payload: events.TicketReopenedPayload{
					ReopeningID:    record.ID,
					Observation:    record.Observation,
					PreviousStatus: record.PreviousStatus,
					TechnicianID:   record.TechnicianID,
				},
			})

		case oldStatus == domain.TicketStatusCerrado:
			return apperrors.NewConflict("closed tickets only accept reopening by the requester", nil)

		case newStatus == domain.TicketStatusCerrado:
			// Closing happens through evaluation submission or the auto-close
			// sweep, never as a direct transition.
			return apperrors.NewForbidden("tickets close through evaluation, not directly")

		case newStatus == domain.TicketStatusPendiente:
			if !s.canOperate(actor, ticket) {
				return apperrors.NewForbidden("only the assigned technician or an administrator may change this ticket")
			}
			motive := strings.TrimSpace(input.Motive)
			if motive == "" || input.ResumeEstimate == nil {
				return apperrors.NewValidationError("pending requires motive and resume estimate", nil)
			}
			ticket.Status = domain.TicketStatusPendiente
			ticket.PendingMotive = &motive
			ticket.PendingResumeAt = input.ResumeEstimate
			actorID := actor.ID
			ticket.PendingSetBy = &actorID
			ticket.PendingSetAt = &now
			// attention-started-at is deliberately untouched: Pendiente does
			// not pause the SLA clock.

		case newStatus == domain.TicketStatusEnProgreso:
			switch oldStatus {
			case domain.TicketStatusPendiente:
				if !s.canOperate(actor, ticket) {
					return apperrors.NewForbidden("only the assigned technician or an administrator may change this ticket")
				}
				if ticket.AttentionStartedAt == nil {
					ticket.AttentionStartedAt = &now
				}
				ticket.ClearPending()
			case domain.TicketStatusEscalado:
				if !actor.IsAdmin() {
					return apperrors.NewForbidden("only an administrator may return an escalated ticket")
				}
				if ticket.AttentionStartedAt == nil {
					ticket.AttentionStartedAt = &now
				}
				if ticket.TechnicianID != nil {
					emitted = append(emitted, events.Event{
						Type:     events.EventTicketReturned,
						TicketID: ticket.ID,
						Actor:    events.Actor{UserID: actor.ID, Role: actor.Role},
						Payload: events.TicketReturnedPayload{
							TechnicianID: *ticket.TechnicianID,
							Comment:      strings.TrimSpace(input.Comment),
						},
					})
				}
			default:
				return apperrors.NewConflict("invalid status transition", map[string]any{
					"from": oldStatus, "to": newStatus,
				})
			}
			ticket.Status = domain.TicketStatusEnProgreso

		case newStatus == domain.TicketStatusFinalizado:
			if oldStatus == domain.TicketStatusFinalizado {
				return apperrors.NewConflict("ticket already finalized", nil)
			}
			if !s.canOperate(actor, ticket) {
				return apperrors.NewForbidden("only the assigned technician or an administrator may finalize this ticket")
			}
			if err := s.requireApprovalLetter(ctx, ticket); err != nil {
				return err
			}
			if ticket.FinalizedAt == nil {
				ticket.FinalizedAt = &now
			}
			if ticket.ClosedAt == nil {
				ticket.ClosedAt = &now
			}
			if ticket.AttentionSeconds == nil {
				ticket.AttentionSeconds = AttentionSeconds(ticket.AttentionStartedAt, now)
			}
			ticket.ClearPending()
			ticket.Status = domain.TicketStatusFinalizado

		default:
			return apperrors.NewConflict("invalid status transition", map[string]any{
				"from": oldStatus, "to": newStatus,
			})
		}

		if err := r.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		updated = ticket
		emitted = append(emitted, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    events.Actor{UserID: actor.ID, Role: actor.Role},
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
				Details:   strings.TrimSpace(input.Motive + " " + input.Comment),
			},
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if updated.Status == domain.TicketStatusFinalizado {
		// Evaluation-reminder bookkeeping; failures degrade, never surface.
		if err := s.reminders.Set(ctx, updated.ID, s.reminderTTL); err != nil {
			s.logger.Warn("reminder bookkeeping failed", zap.Error(err), zap.String("ticket_id", updated.ID))
		}
	}
	for _, event := range emitted {
		s.publishEvent(ctx, event)
	}
	return updated, nil
}

// Escalate reassigns the ticket to another technician, recording the handoff
// in the escalation ledger. Only the currently assigned technician may
// escalate, only from En Progreso or Pendiente, and never to themselves.
func (s *TicketService) Escalate(ctx context.Context, actor *domain.User, ticketID, targetID, reason string) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" || strings.TrimSpace(targetID) == "" {
		return nil, apperrors.NewValidationError("destination technician and reason required", nil)
	}
	if targetID == actor.ID {
		return nil, apperrors.NewValidationError("cannot escalate a ticket to yourself", nil)
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": targetID})
		}
		return nil, apperrors.MapError(err)
	}
	if !target.Active || !target.IsTechnician() {
		return nil, apperrors.NewConflict("escalation target must be an active technician or administrator", nil)
	}

	var updated *domain.Ticket
	var escalation *domain.Escalation
	err = s.tx.InTx(ctx, func(r repository.Repos) error {
		ticket, err := s.lockVisible(ctx, r, actor, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status == domain.TicketStatusCerrado {
			return apperrors.NewConflict("closed tickets only accept reopening by the requester", nil)
		}
		if !ticket.AssignedTo(actor.ID) {
			return apperrors.NewForbidden("only the assigned technician may escalate")
		}
		if ticket.Status != domain.TicketStatusEnProgreso && ticket.Status != domain.TicketStatusPendiente {
			return apperrors.NewConflict("invalid status transition", map[string]any{
				"from": ticket.Status, "to": domain.TicketStatusEscalado,
			})
		}

		escalation = &domain.Escalation{
			TicketID:         ticket.ID,
			FromTechnicianID: actor.ID,
			ToTechnicianID:   target.ID,
			Reason:           reason,
		}
		if err := r.Escalations.Append(ctx, escalation); err != nil {
			return err
		}
		if ticket.Status == domain.TicketStatusPendiente {
			ticket.ClearPending()
		}
		targetUserID := target.ID
		ticket.TechnicianID = &targetUserID
		ticket.Status = domain.TicketStatusEscalado
		if err := r.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: updated.ID,
		Actor:    events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.TicketEscalatedPayload{
			FromTechnicianID: escalation.FromTechnicianID,
			ToTechnicianID:   escalation.ToTechnicianID,
			Reason:           escalation.Reason,
		},
	})
	return updated, nil
}

// SubmitEvaluation couples evaluation submission to closure. A ticket is
// evaluable while Finalizado, or while Cerrado by the auto-close sweep; each
// closure cycle admits exactly one evaluation.
func (s *TicketService) SubmitEvaluation(ctx context.Context, actor *domain.User, ticketID string, rating int, comment *string) (*domain.Evaluation, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", nil)
	}

	var evaluation *domain.Evaluation
	var updated *domain.Ticket
	err := s.tx.InTx(ctx, func(r repository.Repos) error {
		ticket, err := s.lockVisible(ctx, r, actor, ticketID)
		if err != nil {
			return err
		}
		if ticket.RequesterID != actor.ID {
			return apperrors.NewForbidden("only the requester may evaluate the ticket")
		}

		switch {
		case ticket.Status == domain.TicketStatusFinalizado:
		case ticket.Status == domain.TicketStatusCerrado && ticket.SystemClosed:
		case ticket.Status == domain.TicketStatusCerrado:
			return apperrors.NewConflict("ticket already evaluated for this closure cycle", nil)
		default:
			return apperrors.NewConflict("ticket is not awaiting evaluation", nil)
		}

		latestEval, err := r.Evaluations.Latest(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if latestEval != nil {
			latestReopen, err := r.Reopenings.Latest(ctx, ticket.ID)
			if err != nil {
				return err
			}
			if !evaluationCycleOpen(latestEval, latestReopen) {
				return apperrors.NewConflict("ticket already evaluated for this closure cycle", nil)
			}
		}

		evaluation = &domain.Evaluation{
			TicketID: ticket.ID,
			Rating:   rating,
			Comment:  comment,
		}
		if err := r.Evaluations.Create(ctx, evaluation); err != nil {
			return err
		}
		now := s.now()
		if ticket.ClosedAt == nil {
			ticket.ClosedAt = &now
		}
		ticket.Status = domain.TicketStatusCerrado
		ticket.SystemClosed = false
		if err := r.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if err := s.reminders.Clear(ctx, updated.ID); err != nil {
		s.logger.Warn("reminder bookkeeping failed", zap.Error(err), zap.String("ticket_id", updated.ID))
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketEvaluated,
		TicketID: updated.ID,
		Actor:    events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload:  events.TicketEvaluatedPayload{Rating: rating},
	})
	return evaluation, nil
}

// AttachReopeningCause records the technician's explanation on the latest
// reopening. The latest row is re-resolved inside the transaction so a
// concurrent second reopen cannot be answered through a stale reference.
func (s *TicketService) AttachReopeningCause(ctx context.Context, actor *domain.User, ticketID, cause string) (*domain.Reopening, error) {
	cause = strings.TrimSpace(cause)
	if cause == "" {
		return nil, apperrors.NewValidationError("cause required", nil)
	}

	var record *domain.Reopening
	err := s.tx.InTx(ctx, func(r repository.Repos) error {
		ticket, err := s.lockVisible(ctx, r, actor, ticketID)
		if err != nil {
			return err
		}
		latest, err := r.Reopenings.Latest(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if latest == nil {
			return apperrors.NewConflict("ticket has no reopenings", nil)
		}

		allowed := actor.IsAdmin() || ticket.AssignedTo(actor.ID) ||
			(latest.TechnicianID != nil && *latest.TechnicianID == actor.ID)
		if !allowed {
			return apperrors.NewForbidden("only the responsible technician or an administrator may respond to a reopening")
		}

		respondedAt := s.now()
		if err := r.Reopenings.SetTechnicianCause(ctx, latest.ID, cause, respondedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewConflict("reopening cause already recorded", nil)
			}
			return err
		}
		latest.TechnicianCause = &cause
		latest.RespondedAt = &respondedAt
		record = latest
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return record, nil
}

// ListMyTickets returns the caller's tickets: requested ones for employees,
// assigned ones for technicians, everything for administrators.
func (s *TicketService) ListMyTickets(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{Limit: limit, Offset: offset}
	switch actor.Role {
	case domain.RoleTecnico:
		filter.TechnicianID = &actor.ID
	case domain.RoleAdministrador:
	default:
		filter.RequesterID = &actor.ID
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket returns the full projection for an authorized viewer.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*TicketDetail, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	visible, err := s.canView(ctx, s.escalations, actor, ticket)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !visible {
		// Existence is not confirmed to unauthorized callers.
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}

	escalations, err := s.escalations.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	reopenings, err := s.reopenings.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	evaluations, err := s.evaluations.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	var withinTarget *bool
	if svc, err := s.catalog.GetByID(ctx, ticket.ServiceID); err == nil {
		withinTarget = IsWithinTarget(ticket.CreatedAt, ticket.ClosedAt, svc.TargetHours)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	latestEval, err := s.evaluations.Latest(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	latestReopen, err := s.reopenings.Latest(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &TicketDetail{
		Ticket:       ticket,
		Escalations:  escalations,
		Reopenings:   reopenings,
		Evaluations:  evaluations,
		WithinTarget: withinTarget,
		Evaluable:    CanEvaluate(ticket, latestEval, latestReopen),
	}, nil
}

// ListTechnicians returns active technicians and administrators, used to
// pick escalation targets.
func (s *TicketService) ListTechnicians(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if !actor.IsTechnician() {
		return nil, apperrors.NewForbidden("technician role required")
	}
	active := true
	users, err := s.users.List(ctx, repository.UserFilter{
		Roles:  []domain.Role{domain.RoleTecnico, domain.RoleAdministrador},
		Active: &active,
		Limit:  500,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// ListEscalatedTickets returns tickets carrying at least one escalation.
// Technicians see their own; administrators see all.
func (s *TicketService) ListEscalatedTickets(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	return s.listFlagged(ctx, actor, repository.TicketFilter{Escalated: true, Limit: limit, Offset: offset})
}

// ListReopenedTickets returns tickets carrying at least one reopening.
func (s *TicketService) ListReopenedTickets(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	return s.listFlagged(ctx, actor, repository.TicketFilter{Reopened: true, Limit: limit, Offset: offset})
}

func (s *TicketService) listFlagged(ctx context.Context, actor *domain.User, filter repository.TicketFilter) ([]domain.Ticket, error) {
	switch actor.Role {
	case domain.RoleAdministrador:
	case domain.RoleTecnico:
		filter.TechnicianID = &actor.ID
	default:
		return nil, apperrors.NewForbidden("technician role required")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// AttachApprovalDocument stores the approval letter for a ticket. Visibility
// is stricter than ticket visibility: requester, assigned technician or
// administrator only.
func (s *TicketService) AttachApprovalDocument(ctx context.Context, actor *domain.User, ticketID string, input ApprovalDocumentInput) (*domain.ApprovalDocument, error) {
	if strings.TrimSpace(input.FileName) == "" || len(input.Content) == 0 {
		return nil, apperrors.NewValidationError("file name and content required", nil)
	}
	ticket, err := s.approvalVisibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	doc := &domain.ApprovalDocument{
		TicketID:   ticket.ID,
		UploadedBy: actor.ID,
		FileName:   input.FileName,
		MimeType:   input.MimeType,
		Content:    input.Content,
	}
	if err := s.approvals.Store(ctx, doc); err != nil {
		return nil, apperrors.MapError(err)
	}
	return doc, nil
}

// GetApprovalDocument fetches the approval letter for a ticket.
func (s *TicketService) GetApprovalDocument(ctx context.Context, actor *domain.User, ticketID string) (*domain.ApprovalDocument, error) {
	ticket, err := s.approvalVisibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	doc, err := s.approvals.GetByTicket(ctx, ticket.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("approval document", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return doc, nil
}

func (s *TicketService) approvalVisibleTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !actor.IsAdmin() && ticket.RequesterID != actor.ID && !ticket.AssignedTo(actor.ID) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// lockVisible locks the ticket row and applies the information-hiding rule:
// callers who are neither requester, technician, escalation participant nor
// administrator get not-found, not forbidden.
func (s *TicketService) lockVisible(ctx context.Context, r repository.Repos, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := r.Tickets.GetForUpdate(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	visible, err := s.canView(ctx, r.Escalations, actor, ticket)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func (s *TicketService) canView(ctx context.Context, escalations repository.EscalationRepository, actor *domain.User, ticket *domain.Ticket) (bool, error) {
	if actor.IsAdmin() || ticket.RequesterID == actor.ID || ticket.AssignedTo(actor.ID) {
		return true, nil
	}
	if actor.IsTechnician() {
		return escalations.IsParticipant(ctx, ticket.ID, actor.ID)
	}
	return false, nil
}

func (s *TicketService) canOperate(actor *domain.User, ticket *domain.Ticket) bool {
	return actor.IsAdmin() || ticket.AssignedTo(actor.ID)
}

// requireApprovalLetter blocks finalization of tickets whose catalog entry
// demands an approval letter until one has been attached.
func (s *TicketService) requireApprovalLetter(ctx context.Context, ticket *domain.Ticket) error {
	svc, err := s.catalog.GetByID(ctx, ticket.ServiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if !svc.RequiresApprovalLetter {
		return nil
	}
	if _, err := s.approvals.GetByTicket(ctx, ticket.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewConflict("service requires an approval letter before finalization", map[string]any{
				"service_id": svc.ID,
			})
		}
		return err
	}
	return nil
}

// CanEvaluate reports whether the ticket currently admits an evaluation:
// Finalizado, or Cerrado by the auto-close sweep, with the closure cycle not
// already consumed by an earlier evaluation.
func CanEvaluate(ticket *domain.Ticket, latestEval *domain.Evaluation, latestReopen *domain.Reopening) bool {
	switch {
	case ticket.Status == domain.TicketStatusFinalizado:
	case ticket.Status == domain.TicketStatusCerrado && ticket.SystemClosed:
	default:
		return false
	}
	return evaluationCycleOpen(latestEval, latestReopen)
}

// evaluationCycleOpen reports whether a new evaluation row is admissible. An
// evaluation is consumed once recorded; only a reopening that postdates it
// opens another cycle.
func evaluationCycleOpen(latestEval *domain.Evaluation, latestReopen *domain.Reopening) bool {
	if latestEval == nil {
		return true
	}
	return latestReopen != nil && !latestReopen.CreatedAt.Before(latestEval.CreatedAt)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
