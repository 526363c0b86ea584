package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ReopeningRepository persists the append-only reopening ledger.
type ReopeningRepository interface {
	Append(ctx context.Context, reopening *domain.Reopening) error
	// Latest resolves the most recent reopening for a ticket, or nil when the
	// ticket was never reopened.
	Latest(ctx context.Context, ticketID string) (*domain.Reopening, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Reopening, error)
	// SetTechnicianCause attaches the cause to the given reopening row only
	// if no cause was recorded yet; returns pgx.ErrNoRows otherwise.
	SetTechnicianCause(ctx context.Context, reopeningID, cause string, respondedAt time.Time) error
}

type reopeningRepository struct {
	db DBTX
}

// NewReopeningRepository instantiates the repository.
func NewReopeningRepository(db DBTX) ReopeningRepository {
	return &reopeningRepository{db: db}
}

func (r *reopeningRepository) Append(ctx context.Context, reopening *domain.Reopening) error {
	const query = `
        INSERT INTO reopenings (ticket_id, requester_id, technician_id, observation, previous_status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		reopening.TicketID,
		reopening.RequesterID,
		reopening.TechnicianID,
		reopening.Observation,
		reopening.PreviousStatus,
	).Scan(&reopening.ID, &reopening.CreatedAt)
}

func (r *reopeningRepository) Latest(ctx context.Context, ticketID string) (*domain.Reopening, error) {
	const query = `
        SELECT id, ticket_id, requester_id, technician_id, observation, previous_status,
               technician_cause, responded_at, created_at
        FROM reopenings WHERE ticket_id=$1
        ORDER BY created_at DESC LIMIT 1`
	var rec domain.Reopening
	err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&rec.ID,
		&rec.TicketID,
		&rec.RequesterID,
		&rec.TechnicianID,
		&rec.Observation,
		&rec.PreviousStatus,
		&rec.TechnicianCause,
		&rec.RespondedAt,
		&rec.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *reopeningRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Reopening, error) {
	const query = `
        SELECT id, ticket_id, requester_id, technician_id, observation, previous_status,
               technician_cause, responded_at, created_at
        FROM reopenings WHERE ticket_id=$1
        ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Reopening
	for rows.Next() {
		var rec domain.Reopening
		if err := rows.Scan(
			&rec.ID,
			&rec.TicketID,
			&rec.RequesterID,
			&rec.TechnicianID,
			&rec.Observation,
			&rec.PreviousStatus,
			&rec.TechnicianCause,
			&rec.RespondedAt,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *reopeningRepository) SetTechnicianCause(ctx context.Context, reopeningID, cause string, respondedAt time.Time) error {
	const query = `
        UPDATE reopenings SET technician_cause=$1, responded_at=$2
        WHERE id=$3 AND technician_cause IS NULL`
	cmd, err := r.db.Exec(ctx, query, cause, respondedAt, reopeningID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
