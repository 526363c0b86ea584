package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// ErrNoTechniciansAvailable signals that automated resolution found nobody to
// assign. The creation transition recovers by falling back.
var ErrNoTechniciansAvailable = errors.New("no active technicians available")

// AssignmentResolution is the resolver outcome. Priority may carry the
// transient Critica level; the caller re-normalizes before persisting.
type AssignmentResolution struct {
	TechnicianID *string
	Priority     domain.TicketPriority
}

// Assigner chooses a technician for a new ticket. Resolve is the automated
// load-based path; Fallback is the deterministic name-match path consulted
// when Resolve fails or times out.
type Assigner interface {
	Resolve(ctx context.Context, svc *domain.Service, priority domain.TicketPriority) (AssignmentResolution, error)
	Fallback(ctx context.Context, svc *domain.Service) *string
}

// AssignmentService implements automatic technician resolution.
type AssignmentService struct {
	tickets           repository.TicketRepository
	users             repository.UserRepository
	highLoadThreshold int
	logger            *zap.Logger
}

// AssignmentDependencies bundles repositories for the assignment service.
type AssignmentDependencies struct {
	TicketRepo        repository.TicketRepository
	UserRepo          repository.UserRepository
	HighLoadThreshold int
	Logger            *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	threshold := deps.HighLoadThreshold
	if threshold <= 0 {
		threshold = 8
	}
	return &AssignmentService{
		tickets:           deps.TicketRepo,
		users:             deps.UserRepo,
		highLoadThreshold: threshold,
		logger:            deps.Logger,
	}
}

// Resolve picks the least-loaded active technician. Ties break on account
// age (oldest first). When even the least-loaded technician sits at or above
// the high-load threshold, the computed priority is bumped one level; the
// bump may produce Critica, which the caller collapses to Alta.
func (s *AssignmentService) Resolve(ctx context.Context, svc *domain.Service, priority domain.TicketPriority) (AssignmentResolution, error) {
	active := true
	technicians, err := s.users.List(ctx, repository.UserFilter{
		Roles:  []domain.Role{domain.RoleTecnico},
		Active: &active,
		Limit:  500,
	})
	if err != nil {
		return AssignmentResolution{}, err
	}
	if len(technicians) == 0 {
		return AssignmentResolution{}, ErrNoTechniciansAvailable
	}

	loads, err := s.tickets.CountOpenByTechnician(ctx)
	if err != nil {
		return AssignmentResolution{}, err
	}

	chosen := technicians[0]
	chosenLoad := loads[chosen.ID]
	for _, tech := range technicians[1:] {
		if loads[tech.ID] < chosenLoad {
			chosen = tech
			chosenLoad = loads[tech.ID]
		}
	}

	resolved := priority
	if chosenLoad >= s.highLoadThreshold {
		resolved = bumpPriority(priority)
	}

	s.logger.Info("assignment resolved",
		zap.String("technician_id", chosen.ID),
		zap.Int("open_tickets", chosenLoad),
		zap.String("priority", string(resolved)),
	)
	techID := chosen.ID
	return AssignmentResolution{TechnicianID: &techID, Priority: resolved}, nil
}

// Fallback consults the service's configured initial responsible label and
// matches it against active technician and administrator names. Tie-break
// policy, in order: exact match, case-insensitive trimmed match,
// case-insensitive substring, unassigned. The branch that fired is logged.
func (s *AssignmentService) Fallback(ctx context.Context, svc *domain.Service) *string {
	label := strings.TrimSpace(svc.InitialResponsible)
	if label == "" {
		s.logger.Info("assignment fallback: no initial responsible configured",
			zap.String("service_id", svc.ID))
		return nil
	}

	active := true
	candidates, err := s.users.List(ctx, repository.UserFilter{
		Roles:  []domain.Role{domain.RoleTecnico, domain.RoleAdministrador},
		Active: &active,
		Limit:  500,
	})
	if err != nil {
		s.logger.Warn("assignment fallback: listing candidates failed", zap.Error(err))
		return nil
	}

	for _, candidate := range candidates {
		if candidate.Name == label {
			s.logger.Info("assignment fallback: exact match",
				zap.String("technician_id", candidate.ID))
			return &candidate.ID
		}
	}
	lowered := strings.ToLower(label)
	for _, candidate := range candidates {
		if strings.ToLower(strings.TrimSpace(candidate.Name)) == lowered {
			s.logger.Info("assignment fallback: case-insensitive match",
				zap.String("technician_id", candidate.ID))
			return &candidate.ID
		}
	}
	for _, candidate := range candidates {
		if strings.Contains(strings.ToLower(candidate.Name), lowered) {
			s.logger.Info("assignment fallback: substring match",
				zap.String("technician_id", candidate.ID))
			return &candidate.ID
		}
	}

	s.logger.Info("assignment fallback: unassigned", zap.String("service_id", svc.ID))
	return nil
}

func bumpPriority(priority domain.TicketPriority) domain.TicketPriority {
	switch priority {
	case domain.TicketPriorityBaja:
		return domain.TicketPriorityMedia
	case domain.TicketPriorityMedia:
		return domain.TicketPriorityAlta
	case domain.TicketPriorityAlta:
		return domain.TicketPriorityCritica
	default:
		return priority
	}
}
