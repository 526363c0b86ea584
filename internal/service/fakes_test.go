package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// In-memory collaborators backing the service tests.

type memTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]domain.Ticket
	now     func() time.Time
}

func newMemTicketRepo(now func() time.Time) *memTicketRepo {
	return &memTicketRepo{tickets: map[string]domain.Ticket{}, now: now}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.CreatedAt = r.now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = r.now()
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := ticket
	return &copied, nil
}

func (r *memTicketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.TechnicianID != nil && !ticket.AssignedTo(*filter.TechnicianID) {
			continue
		}
		result = append(result, ticket)
	}
	return result, nil
}

func (r *memTicketRepo) ListFinalizedBefore(_ context.Context, cutoff time.Time, _ int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status == domain.TicketStatusFinalizado &&
			ticket.FinalizedAt != nil && ticket.FinalizedAt.Before(cutoff) {
			result = append(result, ticket)
		}
	}
	return result, nil
}

func (r *memTicketRepo) CountOpenByTechnician(_ context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loads := map[string]int{}
	for _, ticket := range r.tickets {
		if ticket.Assigned() && ticket.Status != domain.TicketStatusCerrado {
			loads[*ticket.TechnicianID]++
		}
	}
	return loads, nil
}

type memEscalationRepo struct {
	mu      sync.Mutex
	seq     int
	entries []domain.Escalation
	now     func() time.Time
}

func newMemEscalationRepo(now func() time.Time) *memEscalationRepo {
	return &memEscalationRepo{now: now}
}

func (r *memEscalationRepo) Append(_ context.Context, escalation *domain.Escalation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	escalation.ID = fmt.Sprintf("escalation-%d", r.seq)
	escalation.CreatedAt = r.now()
	r.entries = append(r.entries, *escalation)
	return nil
}

func (r *memEscalationRepo) Latest(_ context.Context, ticketID string) (*domain.Escalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].TicketID == ticketID {
			copied := r.entries[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memEscalationRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Escalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Escalation
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *memEscalationRepo) IsParticipant(_ context.Context, ticketID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.TicketID == ticketID &&
			(entry.FromTechnicianID == userID || entry.ToTechnicianID == userID) {
			return true, nil
		}
	}
	return false, nil
}

type memReopeningRepo struct {
	mu      sync.Mutex
	seq     int
	entries []domain.Reopening
	now     func() time.Time
}

func newMemReopeningRepo(now func() time.Time) *memReopeningRepo {
	return &memReopeningRepo{now: now}
}

func (r *memReopeningRepo) Append(_ context.Context, reopening *domain.Reopening) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	reopening.ID = fmt.Sprintf("reopening-%d", r.seq)
	reopening.CreatedAt = r.now()
	r.entries = append(r.entries, *reopening)
	return nil
}

func (r *memReopeningRepo) Latest(_ context.Context, ticketID string) (*domain.Reopening, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].TicketID == ticketID {
			copied := r.entries[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memReopeningRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Reopening, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Reopening
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *memReopeningRepo) SetTechnicianCause(_ context.Context, reopeningID, cause string, respondedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == reopeningID {
			if r.entries[i].TechnicianCause != nil {
				return pgx.ErrNoRows
			}
			r.entries[i].TechnicianCause = &cause
			r.entries[i].RespondedAt = &respondedAt
			return nil
		}
	}
	return pgx.ErrNoRows
}

type memEvaluationRepo struct {
	mu      sync.Mutex
	seq     int
	entries []domain.Evaluation
	now     func() time.Time
}

func newMemEvaluationRepo(now func() time.Time) *memEvaluationRepo {
	return &memEvaluationRepo{now: now}
}

func (r *memEvaluationRepo) Create(_ context.Context, evaluation *domain.Evaluation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	evaluation.ID = fmt.Sprintf("evaluation-%d", r.seq)
	evaluation.CreatedAt = r.now()
	r.entries = append(r.entries, *evaluation)
	return nil
}

func (r *memEvaluationRepo) Latest(_ context.Context, ticketID string) (*domain.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].TicketID == ticketID {
			copied := r.entries[i]
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memEvaluationRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Evaluation
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	seq   int
	users []domain.User
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", r.seq)
	}
	r.users = append(r.users, *user)
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].ID == user.ID {
			r.users[i] = *user
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.ID == id {
			copied := user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			copied := user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if filter.Active != nil && user.Active != *filter.Active {
			continue
		}
		if len(filter.Roles) > 0 {
			matched := false
			for _, role := range filter.Roles {
				if user.Role == role {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		result = append(result, user)
	}
	return result, nil
}

type memServiceRepo struct {
	services map[string]domain.Service
}

func (r *memServiceRepo) GetByID(_ context.Context, id string) (*domain.Service, error) {
	svc, ok := r.services[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := svc
	return &copied, nil
}

func (r *memServiceRepo) List(_ context.Context, activeOnly bool) ([]domain.Service, error) {
	var result []domain.Service
	for _, svc := range r.services {
		if activeOnly && !svc.Active {
			continue
		}
		result = append(result, svc)
	}
	return result, nil
}

type memApprovalRepo struct {
	mu   sync.Mutex
	docs map[string]domain.ApprovalDocument
}

func (r *memApprovalRepo) Store(_ context.Context, doc *domain.ApprovalDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.docs == nil {
		r.docs = map[string]domain.ApprovalDocument{}
	}
	doc.ID = "approval-" + doc.TicketID
	r.docs[doc.TicketID] = *doc
	return nil
}

func (r *memApprovalRepo) GetByTicket(_ context.Context, ticketID string) (*domain.ApprovalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := doc
	return &copied, nil
}

// fakeTxManager passes the shared in-memory repositories to every InTx body;
// the tests exercise transition semantics, not transaction isolation.
type fakeTxManager struct {
	repos repository.Repos
}

func (m *fakeTxManager) InTx(_ context.Context, fn func(r repository.Repos) error) error {
	return fn(m.repos)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

type fakeReminderStore struct {
	mu      sync.Mutex
	active  map[string]bool
	setErr  error
	lastTTL time.Duration
}

func newFakeReminderStore() *fakeReminderStore {
	return &fakeReminderStore{active: map[string]bool{}}
}

func (s *fakeReminderStore) Set(_ context.Context, ticketID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.active[ticketID] = true
	s.lastTTL = ttl
	return nil
}

func (s *fakeReminderStore) Clear(_ context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, ticketID)
	return nil
}

func (s *fakeReminderStore) isSet(ticketID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[ticketID]
}

type fakeAssigner struct {
	resolveFn  func(ctx context.Context, svc *domain.Service, priority domain.TicketPriority) (AssignmentResolution, error)
	fallbackFn func(ctx context.Context, svc *domain.Service) *string
}

func (a *fakeAssigner) Resolve(ctx context.Context, svc *domain.Service, priority domain.TicketPriority) (AssignmentResolution, error) {
	if a.resolveFn == nil {
		return AssignmentResolution{Priority: priority}, nil
	}
	return a.resolveFn(ctx, svc, priority)
}

func (a *fakeAssigner) Fallback(ctx context.Context, svc *domain.Service) *string {
	if a.fallbackFn == nil {
		return nil
	}
	return a.fallbackFn(ctx, svc)
}
