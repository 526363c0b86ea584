package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const ticketColumns = `id, service_id, requester_id, technician_id, title, description, status, priority,
               created_at, assigned_at, attention_started_at, finalized_at, closed_at,
               remaining_seconds, attention_seconds,
               pending_motive, pending_resume_at, pending_set_by, pending_set_at,
               system_closed, updated_at`

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID  *string
	TechnicianID *string
	Statuses     []domain.TicketStatus
	// Escalated selects tickets with at least one escalation row; Reopened
	// selects tickets with at least one reopening row.
	Escalated bool
	Reopened  bool
	Limit     int
	Offset    int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate locks the ticket row for the current transaction. It is
	// only meaningful on a repository bound to a pgx.Tx.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListFinalizedBefore returns tickets still in Finalizado whose
	// finalization predates the cutoff; used by the auto-close sweep.
	ListFinalizedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error)
	CountOpenByTechnician(ctx context.Context) (map[string]int, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (service_id, requester_id, technician_id, title, description, status, priority,
                             assigned_at, remaining_seconds)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.ServiceID,
		ticket.RequesterID,
		ticket.TechnicianID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedAt,
		ticket.RemainingSeconds,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET technician_id=$1, status=$2, priority=$3,
            assigned_at=$4, attention_started_at=$5, finalized_at=$6, closed_at=$7,
            attention_seconds=$8,
            pending_motive=$9, pending_resume_at=$10, pending_set_by=$11, pending_set_at=$12,
            system_closed=$13, updated_at=NOW()
        WHERE id=$14`
	cmd, err := r.db.Exec(ctx, query,
		ticket.TechnicianID,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedAt,
		ticket.AttentionStartedAt,
		ticket.FinalizedAt,
		ticket.ClosedAt,
		ticket.AttentionSeconds,
		ticket.PendingMotive,
		ticket.PendingResumeAt,
		ticket.PendingSetBy,
		ticket.PendingSetAt,
		ticket.SystemClosed,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 FOR UPDATE`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Escalated {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM escalations e WHERE e.ticket_id=tickets.id)")
	}
	if filter.Reopened {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM reopenings r WHERE r.ticket_id=tickets.id)")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListFinalizedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets
        WHERE status=$1 AND finalized_at IS NOT NULL AND finalized_at < $2
        ORDER BY finalized_at ASC LIMIT %d`, ticketColumns, limit)
	rows, err := r.db.Query(ctx, query, domain.TicketStatusFinalizado, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// CountOpenByTechnician returns the number of not-yet-closed tickets per
// assigned technician; the assignment resolver uses it as the load signal.
func (r *ticketRepository) CountOpenByTechnician(ctx context.Context) (map[string]int, error) {
	const query = `
        SELECT technician_id, COUNT(*) FROM tickets
        WHERE technician_id IS NOT NULL AND status <> $1
        GROUP BY technician_id`
	rows, err := r.db.Query(ctx, query, domain.TicketStatusCerrado)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loads := make(map[string]int)
	for rows.Next() {
		var techID string
		var count int
		if err := rows.Scan(&techID, &count); err != nil {
			return nil, err
		}
		loads[techID] = count
	}
	return loads, rows.Err()
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.ServiceID,
		&ticket.RequesterID,
		&ticket.TechnicianID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.AssignedAt,
		&ticket.AttentionStartedAt,
		&ticket.FinalizedAt,
		&ticket.ClosedAt,
		&ticket.RemainingSeconds,
		&ticket.AttentionSeconds,
		&ticket.PendingMotive,
		&ticket.PendingResumeAt,
		&ticket.PendingSetBy,
		&ticket.PendingSetAt,
		&ticket.SystemClosed,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
