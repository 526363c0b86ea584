package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EvaluationRepository persists requester evaluations.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *domain.Evaluation) error
	// Latest returns the most recent evaluation for a ticket, or nil.
	Latest(ctx context.Context, ticketID string) (*domain.Evaluation, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Evaluation, error)
}

type evaluationRepository struct {
	db DBTX
}

// NewEvaluationRepository instantiates the repository.
func NewEvaluationRepository(db DBTX) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *domain.Evaluation) error {
	const query = `
        INSERT INTO evaluations (ticket_id, rating, comment)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		evaluation.TicketID,
		evaluation.Rating,
		evaluation.Comment,
	).Scan(&evaluation.ID, &evaluation.CreatedAt)
}

func (r *evaluationRepository) Latest(ctx context.Context, ticketID string) (*domain.Evaluation, error) {
	const query = `
        SELECT id, ticket_id, rating, comment, created_at
        FROM evaluations WHERE ticket_id=$1
        ORDER BY created_at DESC LIMIT 1`
	var eval domain.Evaluation
	err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&eval.ID,
		&eval.TicketID,
		&eval.Rating,
		&eval.Comment,
		&eval.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &eval, nil
}

func (r *evaluationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Evaluation, error) {
	const query = `
        SELECT id, ticket_id, rating, comment, created_at
        FROM evaluations WHERE ticket_id=$1
        ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Evaluation
	for rows.Next() {
		var eval domain.Evaluation
		if err := rows.Scan(
			&eval.ID,
			&eval.TicketID,
			&eval.Rating,
			&eval.Comment,
			&eval.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, eval)
	}
	return result, rows.Err()
}
