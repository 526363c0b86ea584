package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

type fixture struct {
	svc         *TicketService
	tickets     *memTicketRepo
	escalations *memEscalationRepo
	reopenings  *memReopeningRepo
	evaluations *memEvaluationRepo
	users       *memUserRepo
	catalog     *memServiceRepo
	approvals   *memApprovalRepo
	dispatcher  *recordingDispatcher
	reminders   *fakeReminderStore
	assigner    *fakeAssigner
	clock       time.Time

	requester  *domain.User
	technician *domain.User
	otherTech  *domain.User
	admin      *domain.User
	stranger   *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }

	f.tickets = newMemTicketRepo(now)
	f.escalations = newMemEscalationRepo(now)
	f.reopenings = newMemReopeningRepo(now)
	f.evaluations = newMemEvaluationRepo(now)
	f.users = &memUserRepo{}
	f.dispatcher = &recordingDispatcher{}
	f.reminders = newFakeReminderStore()
	f.assigner = &fakeAssigner{}

	target := 4
	max := 8
	f.catalog = &memServiceRepo{services: map[string]domain.Service{
		"svc-1": {ID: "svc-1", Category: "Hardware", Subcategory: "Laptop",
			TargetHours: &target, MaxHours: &max, Active: true},
		"svc-off": {ID: "svc-off", Category: "Legacy", Subcategory: "Fax", Active: false},
	}}

	f.requester = &domain.User{ID: "emp-1", Name: "Laura", Role: domain.RoleEmpleado, Active: true}
	f.technician = &domain.User{ID: "tech-1", Name: "Marco", Role: domain.RoleTecnico, Active: true}
	f.otherTech = &domain.User{ID: "tech-2", Name: "Sofia", Role: domain.RoleTecnico, Active: true}
	f.admin = &domain.User{ID: "admin-1", Name: "Elena", Role: domain.RoleAdministrador, Active: true}
	f.stranger = &domain.User{ID: "emp-2", Name: "Nora", Role: domain.RoleEmpleado, Active: true}
	for _, user := range []*domain.User{f.requester, f.technician, f.otherTech, f.admin, f.stranger} {
		require.NoError(t, f.users.Create(context.Background(), user))
	}

	tx := &fakeTxManager{repos: repository.Repos{
		Tickets:     f.tickets,
		Escalations: f.escalations,
		Reopenings:  f.reopenings,
		Evaluations: f.evaluations,
	}}
	f.approvals = &memApprovalRepo{}

	f.svc = NewTicketService(TicketDependencies{
		TxManager:      tx,
		TicketRepo:     f.tickets,
		EscalationRepo: f.escalations,
		ReopeningRepo:  f.reopenings,
		EvaluationRepo: f.evaluations,
		UserRepo:       f.users,
		ServiceRepo:    f.catalog,
		ApprovalRepo:   f.approvals,
		Assigner:       f.assigner,
		Reminders:      f.reminders,
		Dispatcher:     f.dispatcher,
		Logger:         zap.NewNop(),
		AssignTimeout:  time.Second,
		ReminderTTL:    72 * time.Hour,
	})
	f.svc.now = now
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) createAssigned(t *testing.T) *domain.Ticket {
	t.Helper()
	techID := f.technician.ID
	f.assigner.resolveFn = func(context.Context, *domain.Service, domain.TicketPriority) (AssignmentResolution, error) {
		return AssignmentResolution{TechnicianID: &techID, Priority: domain.TicketPriorityMedia}, nil
	}
	ticket, err := f.svc.CreateTicket(context.Background(), f.requester, TicketCreateInput{
		ServiceID: "svc-1", Title: "Laptop no enciende", Description: "Pantalla negra",
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) finalize(t *testing.T, ticketID string) *domain.Ticket {
	t.Helper()
	_, err := f.svc.ChangeStatus(context.Background(), f.technician, ticketID,
		StatusChangeInput{NewStatus: "En Progreso"})
	require.NoError(t, err)
	ticket, err := f.svc.ChangeStatus(context.Background(), f.technician, ticketID,
		StatusChangeInput{NewStatus: "Finalizado"})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicketAssigned(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)

	assert.Equal(t, domain.TicketStatusPendiente, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedia, ticket.Priority)
	require.NotNil(t, ticket.TechnicianID)
	assert.Equal(t, "tech-1", *ticket.TechnicianID)
	require.NotNil(t, ticket.AssignedAt)
	require.NotNil(t, ticket.RemainingSeconds)
	// max hours win over target hours
	assert.Equal(t, int64(8*3600), *ticket.RemainingSeconds)
	assert.Nil(t, ticket.AttentionStartedAt)

	assert.Len(t, f.dispatcher.byType(events.EventTicketCreated), 1)
	assert.Len(t, f.dispatcher.byType(events.EventTicketAssigned), 1)
}

func TestCreateTicketResolverFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	f.assigner.resolveFn = func(context.Context, *domain.Service, domain.TicketPriority) (AssignmentResolution, error) {
		return AssignmentResolution{}, ErrNoTechniciansAvailable
	}
	fallbackID := f.otherTech.ID
	f.assigner.fallbackFn = func(context.Context, *domain.Service) *string { return &fallbackID }

	ticket, err := f.svc.CreateTicket(context.Background(), f.requester, TicketCreateInput{
		ServiceID: "svc-1", Title: "VPN caida",
	})
	require.NoError(t, err)
	require.NotNil(t, ticket.TechnicianID)
	assert.Equal(t, "tech-2", *ticket.TechnicianID)
}

func TestCreateTicketUnassignedWhenFallbackEmpty(t *testing.T) {
	f := newFixture(t)
	f.assigner.resolveFn = func(ctx context.Context, _ *domain.Service, _ domain.TicketPriority) (AssignmentResolution, error) {
		return AssignmentResolution{}, context.DeadlineExceeded
	}

	ticket, err := f.svc.CreateTicket(context.Background(), f.requester, TicketCreateInput{
		ServiceID: "svc-1", Title: "Sin responsable",
	})
	require.NoError(t, err)
	assert.Nil(t, ticket.TechnicianID)
	assert.Nil(t, ticket.AssignedAt)
	assert.Equal(t, domain.TicketStatusPendiente, ticket.Status)
	assert.Empty(t, f.dispatcher.byType(events.EventTicketAssigned))
}

func TestCreateTicketCollapsesCritica(t *testing.T) {
	f := newFixture(t)
	techID := f.technician.ID
	f.assigner.resolveFn = func(context.Context, *domain.Service, domain.TicketPriority) (AssignmentResolution, error) {
		return AssignmentResolution{TechnicianID: &techID, Priority: domain.TicketPriorityCritica}, nil
	}
	ticket, err := f.svc.CreateTicket(context.Background(), f.requester, TicketCreateInput{
		ServiceID: "svc-1", Title: "Servidor caido", Priority: domain.TicketPriorityAlta,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityAlta, ticket.Priority)
}

func TestCreateTicketRejectsInactiveServiceAndBadPriority(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateTicket(context.Background(), f.requester, TicketCreateInput{
		ServiceID: "svc-off", Title: "Fax roto",
	})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	_, err = f.svc.CreateTicket(context.Background(), f.requester, TicketCreateInput{
		ServiceID: "svc-1", Title: "x", Priority: "Urgentisima",
	})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = f.svc.CreateTicket(context.Background(), f.requester, TicketCreateInput{
		ServiceID: "missing", Title: "x",
	})
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestAttentionClockStartsOnceAndSurvivesPending(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)

	f.advance(30 * time.Minute)
	updated, err := f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	require.NoError(t, err)
	require.NotNil(t, updated.AttentionStartedAt)
	startedAt := *updated.AttentionStartedAt

	// back to pending with motive, then resume; the start timestamp must not move
	resume := f.clock.Add(2 * time.Hour)
	f.advance(10 * time.Minute)
	updated, err = f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "Pendiente", Motive: "Esperando repuesto", ResumeEstimate: &resume})
	require.NoError(t, err)
	assert.Equal(t, startedAt, *updated.AttentionStartedAt)
	require.NotNil(t, updated.PendingMotive)

	f.advance(50 * time.Minute)
	updated, err = f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	require.NoError(t, err)
	assert.Equal(t, startedAt, *updated.AttentionStartedAt)
	assert.Nil(t, updated.PendingMotive)

	f.advance(time.Hour)
	updated, err = f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "Finalizado"})
	require.NoError(t, err)
	require.NotNil(t, updated.AttentionSeconds)
	// whole span since first En Progreso counts, pending included
	assert.Equal(t, int64((10*time.Minute+50*time.Minute+time.Hour)/time.Second), *updated.AttentionSeconds)
	require.NotNil(t, updated.FinalizedAt)
	require.NotNil(t, updated.ClosedAt)
	assert.True(t, f.reminders.isSet(ticket.ID))
}

func TestPendingRequiresMotiveAndEstimate(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)
	_, err := f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "Pendiente", Motive: "  "})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestTransitionPermissions(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)

	// a technician who is not assigned gets a permission error
	_, err := f.svc.ChangeStatus(context.Background(), f.otherTech, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"), "non-participant technician cannot even see the ticket")

	// the requester can see the ticket but cannot work it
	_, err = f.svc.ChangeStatus(context.Background(), f.requester, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	// an unrelated employee is told the ticket does not exist
	_, err = f.svc.ChangeStatus(context.Background(), f.stranger, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	// admins operate any ticket
	_, err = f.svc.ChangeStatus(context.Background(), f.admin, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	assert.NoError(t, err)
}

func TestDirectCloseRejected(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)
	f.finalize(t, ticket.ID)

	for _, actor := range []*domain.User{f.requester, f.technician, f.admin} {
		_, err := f.svc.ChangeStatus(context.Background(), actor, ticket.ID,
			StatusChangeInput{NewStatus: "Cerrado"})
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"), "role %s", actor.Role)
	}
}

func TestInvalidTransitionsConflict(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)

	// Pendiente -> Finalizado is allowed; Finalizado -> Finalizado is not
	f.finalize(t, ticket.ID)
	_, err := f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "Finalizado"})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	// unknown status is a validation failure, not a conflict
	_, err = f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "Congelado"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	// Escalado via the generic endpoint is redirected to the escalate operation
	_, err = f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "Escalado"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestEscalationFlow(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)
	_, err := f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	require.NoError(t, err)

	// self-escalation rejected
	_, err = f.svc.Escalate(context.Background(), f.technician, ticket.ID, f.technician.ID, "ayuda")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	// only the assigned technician escalates
	_, err = f.svc.Escalate(context.Background(), f.admin, ticket.ID, f.otherTech.ID, "reasignar")
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	updated, err := f.svc.Escalate(context.Background(), f.technician, ticket.ID, f.otherTech.ID, "fuera de mi alcance")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalado, updated.Status)
	assert.Equal(t, "tech-2", *updated.TechnicianID)
	assert.Len(t, f.dispatcher.byType(events.EventTicketEscalated), 1)

	// the original technician remains a viewer through the ledger
	detail, err := f.svc.GetTicket(context.Background(), f.technician, ticket.ID)
	require.NoError(t, err)
	require.Len(t, detail.Escalations, 1)
	assert.Equal(t, "tech-1", detail.Escalations[0].FromTechnicianID)

	// but cannot operate it anymore
	_, err = f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	// the admin returns it with a technician-visible comment
	returned, err := f.svc.ChangeStatus(context.Background(), f.admin, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso", Comment: "Revisar con mas detalle"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEnProgreso, returned.Status)

	returnedEvents := f.dispatcher.byType(events.EventTicketReturned)
	require.Len(t, returnedEvents, 1)
	payload, ok := returnedEvents[0].Payload.(events.TicketReturnedPayload)
	require.True(t, ok)
	assert.Equal(t, "tech-2", payload.TechnicianID)
	assert.Equal(t, "Revisar con mas detalle", payload.Comment)
}

func TestEscalateInvalidStates(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)
	f.finalize(t, ticket.ID)

	_, err := f.svc.Escalate(context.Background(), f.technician, ticket.ID, f.otherTech.ID, "tarde")
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	// inactive target
	f.otherTech.Active = false
	require.NoError(t, f.users.Update(context.Background(), f.otherTech))
	ticket2 := f.createAssigned(t)
	_, err = f.svc.Escalate(context.Background(), f.technician, ticket2.ID, f.otherTech.ID, "apagado")
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestReopenFlowAndLedger(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)
	finalized := f.finalize(t, ticket.ID)
	finalizedAt := *finalized.FinalizedAt

	// only the requester may evaluate, which closes the ticket
	_, err := f.svc.SubmitEvaluation(context.Background(), f.requester, ticket.ID, 4, nil)
	require.NoError(t, err)

	// closed tickets reject everything but the reopening transition
	_, err = f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	// technician cannot reopen on the requester's behalf
	_, err = f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "Pendiente"})
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	f.advance(time.Hour)
	reopened, err := f.svc.ChangeStatus(context.Background(), f.requester, ticket.ID,
		StatusChangeInput{NewStatus: "Pendiente", Observation: ""})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPendiente, reopened.Status)
	// historical timestamps survive the reopening
	require.NotNil(t, reopened.FinalizedAt)
	assert.Equal(t, finalizedAt, *reopened.FinalizedAt)

	detail, err := f.svc.GetTicket(context.Background(), f.requester, ticket.ID)
	require.NoError(t, err)
	require.Len(t, detail.Reopenings, 1)
	assert.Equal(t, domain.DefaultReopeningObservation, detail.Reopenings[0].Observation)
	assert.Equal(t, domain.TicketStatusCerrado, detail.Reopenings[0].PreviousStatus)
	require.NotNil(t, detail.Reopenings[0].TechnicianID)
	assert.Equal(t, "tech-1", *detail.Reopenings[0].TechnicianID)
	assert.Len(t, f.dispatcher.byType(events.EventTicketReopened), 1)
}

func TestReopeningCauseUpdateOnce(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)
	f.finalize(t, ticket.ID)
	_, err := f.svc.SubmitEvaluation(context.Background(), f.requester, ticket.ID, 3, nil)
	require.NoError(t, err)
	_, err = f.svc.ChangeStatus(context.Background(), f.requester, ticket.ID,
		StatusChangeInput{NewStatus: "Pendiente", Observation: "Sigue fallando"})
	require.NoError(t, err)

	// no cause yet: a stranger technician cannot respond
	_, err = f.svc.AttachReopeningCause(context.Background(), f.otherTech, ticket.ID, "no fue culpa mia")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	record, err := f.svc.AttachReopeningCause(context.Background(), f.technician, ticket.ID, "Faltaba un parche")
	require.NoError(t, err)
	require.NotNil(t, record.TechnicianCause)
	assert.Equal(t, "Faltaba un parche", *record.TechnicianCause)
	require.NotNil(t, record.RespondedAt)

	// the cause is written exactly once
	_, err = f.svc.AttachReopeningCause(context.Background(), f.admin, ticket.ID, "otro texto")
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestReopeningCauseWithoutReopenings(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)
	_, err := f.svc.AttachReopeningCause(context.Background(), f.technician, ticket.ID, "nada que responder")
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestEvaluationGate(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)

	// not finalized yet
	_, err := f.svc.SubmitEvaluation(context.Background(), f.requester, ticket.ID, 5, nil)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	f.finalize(t, ticket.ID)

	// only the requester evaluates
	_, err = f.svc.SubmitEvaluation(context.Background(), f.technician, ticket.ID, 5, nil)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = f.svc.SubmitEvaluation(context.Background(), f.requester, ticket.ID, 0, nil)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	comment := "Buen servicio"
	evaluation, err := f.svc.SubmitEvaluation(context.Background(), f.requester, ticket.ID, 5, &comment)
	require.NoError(t, err)
	assert.Equal(t, 5, evaluation.Rating)

	closed, err := f.svc.GetTicket(context.Background(), f.requester, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCerrado, closed.Ticket.Status)
	assert.False(t, closed.Ticket.SystemClosed)
	assert.False(t, f.reminders.isSet(ticket.ID))

	// one evaluation per closure cycle
	_, err = f.svc.SubmitEvaluation(context.Background(), f.requester, ticket.ID, 4, nil)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestEvaluationAfterReopenCycle(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)
	f.finalize(t, ticket.ID)
	_, err := f.svc.SubmitEvaluation(context.Background(), f.requester, ticket.ID, 2, nil)
	require.NoError(t, err)

	f.advance(time.Minute)
	_, err = f.svc.ChangeStatus(context.Background(), f.requester, ticket.ID,
		StatusChangeInput{NewStatus: "Pendiente", Observation: "No quedo resuelto"})
	require.NoError(t, err)

	// mid-cycle the ticket is not evaluable again
	_, err = f.svc.SubmitEvaluation(context.Background(), f.requester, ticket.ID, 1, nil)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	f.advance(time.Minute)
	f.finalize(t, ticket.ID)
	evaluation, err := f.svc.SubmitEvaluation(context.Background(), f.requester, ticket.ID, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, evaluation.Rating)
}

func TestEvaluationOnSystemClosedTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)
	f.finalize(t, ticket.ID)

	// simulate the auto-close sweep
	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	stored.Status = domain.TicketStatusCerrado
	stored.SystemClosed = true
	require.NoError(t, f.tickets.Update(context.Background(), stored))

	evaluation, err := f.svc.SubmitEvaluation(context.Background(), f.requester, ticket.ID, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, evaluation.Rating)

	closed, err := f.svc.GetTicket(context.Background(), f.requester, ticket.ID)
	require.NoError(t, err)
	assert.False(t, closed.Ticket.SystemClosed, "an explicit evaluation supersedes the system closure")
}

func TestVisibilityHidesExistence(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)

	_, err := f.svc.GetTicket(context.Background(), f.stranger, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	_, err = f.svc.GetTicket(context.Background(), f.otherTech, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	_, err = f.svc.GetTicket(context.Background(), f.requester, ticket.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetTicket(context.Background(), f.admin, ticket.ID)
	assert.NoError(t, err)
}

func TestListMyTicketsPerRole(t *testing.T) {
	f := newFixture(t)
	first := f.createAssigned(t)
	second := f.createAssigned(t)
	_ = second

	mine, err := f.svc.ListMyTickets(context.Background(), f.requester, 20, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	techView, err := f.svc.ListMyTickets(context.Background(), f.technician, 20, 0)
	require.NoError(t, err)
	assert.Len(t, techView, 2)

	strangerView, err := f.svc.ListMyTickets(context.Background(), f.stranger, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, strangerView)

	// escalated listing
	_, err = f.svc.ChangeStatus(context.Background(), f.technician, first.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	require.NoError(t, err)
	_, err = f.svc.Escalate(context.Background(), f.technician, first.ID, f.otherTech.ID, "derivar")
	require.NoError(t, err)

	escalated, err := f.svc.ListEscalatedTickets(context.Background(), f.admin, 20, 0)
	require.NoError(t, err)
	require.Len(t, escalated, 1)
	assert.Equal(t, first.ID, escalated[0].ID)

	_, err = f.svc.ListEscalatedTickets(context.Background(), f.requester, 20, 0)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestApprovalDocumentRoundTrip(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)

	_, err := f.svc.AttachApprovalDocument(context.Background(), f.stranger, ticket.ID, ApprovalDocumentInput{
		FileName: "carta.pdf", Content: []byte("%PDF"),
	})
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	doc, err := f.svc.AttachApprovalDocument(context.Background(), f.requester, ticket.ID, ApprovalDocumentInput{
		FileName: "carta.pdf", MimeType: "application/pdf", Content: []byte("%PDF"),
	})
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, doc.TicketID)

	fetched, err := f.svc.GetApprovalDocument(context.Background(), f.technician, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "carta.pdf", fetched.FileName)
	assert.Equal(t, []byte("%PDF"), fetched.Content)
}

func TestReminderFailureDoesNotBlockFinalize(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)
	f.reminders.setErr = errors.New("redis down")

	updated := f.finalize(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusFinalizado, updated.Status)
}

func TestFinalizeRequiresApprovalLetter(t *testing.T) {
	f := newFixture(t)
	f.catalog.services["svc-compra"] = domain.Service{
		ID: "svc-compra", Category: "Compras", Subcategory: "Licencias",
		RequiresApprovalLetter: true, Active: true,
	}
	techID := f.technician.ID
	f.assigner.resolveFn = func(context.Context, *domain.Service, domain.TicketPriority) (AssignmentResolution, error) {
		return AssignmentResolution{TechnicianID: &techID, Priority: domain.TicketPriorityMedia}, nil
	}
	ticket, err := f.svc.CreateTicket(context.Background(), f.requester, TicketCreateInput{
		ServiceID: "svc-compra", Title: "Licencia de oficina",
	})
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "En Progreso"})
	require.NoError(t, err)

	// no letter attached yet: finalization is blocked, state untouched
	_, err = f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "Finalizado"})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEnProgreso, stored.Status)
	assert.Nil(t, stored.FinalizedAt)

	_, err = f.svc.AttachApprovalDocument(context.Background(), f.requester, ticket.ID, ApprovalDocumentInput{
		FileName: "carta-aprobacion.pdf", MimeType: "application/pdf", Content: []byte("%PDF"),
	})
	require.NoError(t, err)

	updated, err := f.svc.ChangeStatus(context.Background(), f.technician, ticket.ID,
		StatusChangeInput{NewStatus: "Finalizado"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusFinalizado, updated.Status)
}

func TestTicketDetailReportsEvaluable(t *testing.T) {
	f := newFixture(t)
	ticket := f.createAssigned(t)

	detail, err := f.svc.GetTicket(context.Background(), f.requester, ticket.ID)
	require.NoError(t, err)
	assert.False(t, detail.Evaluable)

	f.finalize(t, ticket.ID)
	detail, err = f.svc.GetTicket(context.Background(), f.requester, ticket.ID)
	require.NoError(t, err)
	assert.True(t, detail.Evaluable)

	_, err = f.svc.SubmitEvaluation(context.Background(), f.requester, ticket.ID, 5, nil)
	require.NoError(t, err)
	detail, err = f.svc.GetTicket(context.Background(), f.requester, ticket.ID)
	require.NoError(t, err)
	assert.False(t, detail.Evaluable, "the closure cycle is consumed")

	f.advance(time.Minute)
	_, err = f.svc.ChangeStatus(context.Background(), f.requester, ticket.ID,
		StatusChangeInput{NewStatus: "Pendiente", Observation: "Sigue fallando"})
	require.NoError(t, err)
	detail, err = f.svc.GetTicket(context.Background(), f.requester, ticket.ID)
	require.NoError(t, err)
	assert.False(t, detail.Evaluable, "mid-cycle tickets are not evaluable")

	f.advance(time.Minute)
	f.finalize(t, ticket.ID)
	detail, err = f.svc.GetTicket(context.Background(), f.requester, ticket.ID)
	require.NoError(t, err)
	assert.True(t, detail.Evaluable, "a reopening postdating the evaluation opens a new cycle")
}
