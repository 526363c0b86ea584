package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func assignmentFixture(t *testing.T) (*AssignmentService, *memTicketRepo, *memUserRepo) {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	tickets := newMemTicketRepo(now)
	users := &memUserRepo{}
	svc := NewAssignmentService(AssignmentDependencies{
		TicketRepo:        tickets,
		UserRepo:          users,
		HighLoadThreshold: 3,
		Logger:            zap.NewNop(),
	})
	return svc, tickets, users
}

func addUser(t *testing.T, users *memUserRepo, id, name string, role domain.Role, active bool) {
	t.Helper()
	require.NoError(t, users.Create(context.Background(), &domain.User{
		ID: id, Name: name, Role: role, Active: active,
	}))
}

func addAssignedTicket(t *testing.T, tickets *memTicketRepo, techID string, status domain.TicketStatus) {
	t.Helper()
	require.NoError(t, tickets.Create(context.Background(), &domain.Ticket{
		ServiceID: "svc-1", RequesterID: "emp-1", TechnicianID: &techID,
		Title: "t", Status: status, Priority: domain.TicketPriorityMedia,
	}))
}

func TestResolvePicksLeastLoaded(t *testing.T) {
	svc, tickets, users := assignmentFixture(t)
	addUser(t, users, "tech-1", "Marco", domain.RoleTecnico, true)
	addUser(t, users, "tech-2", "Sofia", domain.RoleTecnico, true)
	addAssignedTicket(t, tickets, "tech-1", domain.TicketStatusEnProgreso)
	addAssignedTicket(t, tickets, "tech-1", domain.TicketStatusPendiente)

	resolution, err := svc.Resolve(context.Background(), &domain.Service{ID: "svc-1"}, domain.TicketPriorityMedia)
	require.NoError(t, err)
	require.NotNil(t, resolution.TechnicianID)
	assert.Equal(t, "tech-2", *resolution.TechnicianID)
	assert.Equal(t, domain.TicketPriorityMedia, resolution.Priority)
}

func TestResolveIgnoresClosedTicketsInLoad(t *testing.T) {
	svc, tickets, users := assignmentFixture(t)
	addUser(t, users, "tech-1", "Marco", domain.RoleTecnico, true)
	addUser(t, users, "tech-2", "Sofia", domain.RoleTecnico, true)
	addAssignedTicket(t, tickets, "tech-1", domain.TicketStatusCerrado)
	addAssignedTicket(t, tickets, "tech-2", domain.TicketStatusEnProgreso)

	resolution, err := svc.Resolve(context.Background(), &domain.Service{ID: "svc-1"}, domain.TicketPriorityBaja)
	require.NoError(t, err)
	assert.Equal(t, "tech-1", *resolution.TechnicianID)
}

func TestResolveBumpsPriorityUnderHighLoad(t *testing.T) {
	svc, tickets, users := assignmentFixture(t)
	addUser(t, users, "tech-1", "Marco", domain.RoleTecnico, true)
	for i := 0; i < 3; i++ {
		addAssignedTicket(t, tickets, "tech-1", domain.TicketStatusEnProgreso)
	}

	resolution, err := svc.Resolve(context.Background(), &domain.Service{ID: "svc-1"}, domain.TicketPriorityMedia)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityAlta, resolution.Priority)

	// Alta bumps to the transient Critica level
	resolution, err = svc.Resolve(context.Background(), &domain.Service{ID: "svc-1"}, domain.TicketPriorityAlta)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityCritica, resolution.Priority)
}

func TestResolveNoTechnicians(t *testing.T) {
	svc, _, users := assignmentFixture(t)
	addUser(t, users, "emp-1", "Laura", domain.RoleEmpleado, true)
	addUser(t, users, "tech-off", "Pedro", domain.RoleTecnico, false)

	_, err := svc.Resolve(context.Background(), &domain.Service{ID: "svc-1"}, domain.TicketPriorityMedia)
	assert.ErrorIs(t, err, ErrNoTechniciansAvailable)
}

func TestFallbackMatchOrder(t *testing.T) {
	svc, _, users := assignmentFixture(t)
	addUser(t, users, "tech-1", "Maria Lopez", domain.RoleTecnico, true)
	addUser(t, users, "tech-2", " maria lopez ", domain.RoleTecnico, true)
	addUser(t, users, "admin-1", "Ana Maria Lopez Diaz", domain.RoleAdministrador, true)

	// exact beats case-insensitive and substring
	got := svc.Fallback(context.Background(), &domain.Service{InitialResponsible: "Maria Lopez"})
	require.NotNil(t, got)
	assert.Equal(t, "tech-1", *got)

	// case-insensitive trimmed match
	got = svc.Fallback(context.Background(), &domain.Service{InitialResponsible: "MARIA LOPEZ"})
	require.NotNil(t, got)
	assert.Equal(t, "tech-1", *got)

	// substring match
	got = svc.Fallback(context.Background(), &domain.Service{InitialResponsible: "Lopez Diaz"})
	require.NotNil(t, got)
	assert.Equal(t, "admin-1", *got)

	// nothing matches: unassigned
	got = svc.Fallback(context.Background(), &domain.Service{InitialResponsible: "Juan Perez"})
	assert.Nil(t, got)

	// no label configured: unassigned
	got = svc.Fallback(context.Background(), &domain.Service{InitialResponsible: "  "})
	assert.Nil(t, got)
}
