package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EscalationRepository persists the append-only escalation ledger.
type EscalationRepository interface {
	Append(ctx context.Context, escalation *domain.Escalation) error
	// Latest resolves the current escalation for a ticket, backed by the
	// (ticket_id, created_at) index. Returns nil when the ticket was never
	// escalated.
	Latest(ctx context.Context, ticketID string) (*domain.Escalation, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error)
	// IsParticipant reports whether the user appears as source or target of
	// any escalation of the ticket.
	IsParticipant(ctx context.Context, ticketID, userID string) (bool, error)
}

type escalationRepository struct {
	db DBTX
}

// NewEscalationRepository instantiates the repository.
func NewEscalationRepository(db DBTX) EscalationRepository {
	return &escalationRepository{db: db}
}

func (r *escalationRepository) Append(ctx context.Context, escalation *domain.Escalation) error {
	const query = `
        INSERT INTO escalations (ticket_id, from_technician_id, to_technician_id, reason)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		escalation.TicketID,
		escalation.FromTechnicianID,
		escalation.ToTechnicianID,
		escalation.Reason,
	).Scan(&escalation.ID, &escalation.CreatedAt)
}

func (r *escalationRepository) Latest(ctx context.Context, ticketID string) (*domain.Escalation, error) {
	const query = `
        SELECT id, ticket_id, from_technician_id, to_technician_id, reason, created_at
        FROM escalations WHERE ticket_id=$1
        ORDER BY created_at DESC LIMIT 1`
	var esc domain.Escalation
	err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&esc.ID,
		&esc.TicketID,
		&esc.FromTechnicianID,
		&esc.ToTechnicianID,
		&esc.Reason,
		&esc.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &esc, nil
}

func (r *escalationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	const query = `
        SELECT id, ticket_id, from_technician_id, to_technician_id, reason, created_at
        FROM escalations WHERE ticket_id=$1
        ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Escalation
	for rows.Next() {
		var esc domain.Escalation
		if err := rows.Scan(
			&esc.ID,
			&esc.TicketID,
			&esc.FromTechnicianID,
			&esc.ToTechnicianID,
			&esc.Reason,
			&esc.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, esc)
	}
	return result, rows.Err()
}

func (r *escalationRepository) IsParticipant(ctx context.Context, ticketID, userID string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM escalations
            WHERE ticket_id=$1 AND (from_technician_id=$2 OR to_technician_id=$2)
        )`
	var exists bool
	if err := r.db.QueryRow(ctx, query, ticketID, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
