package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx, letting every
// repository run either directly against the pool or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repos bundles the transaction-scoped repositories handed to an InTx body.
type Repos struct {
	Tickets     TicketRepository
	Escalations EscalationRepository
	Reopenings  ReopeningRepository
	Evaluations EvaluationRepository
}

// TxManager runs a function inside a single database transaction. Every
// ticket transition goes through it so that the row lock taken by
// GetForUpdate serializes concurrent writers per ticket.
type TxManager interface {
	InTx(ctx context.Context, fn func(r Repos) error) error
}

type pgxTxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager builds a pgx-backed transaction manager.
func NewTxManager(pool *pgxpool.Pool) TxManager {
	return &pgxTxManager{pool: pool}
}

func (m *pgxTxManager) InTx(ctx context.Context, fn func(r Repos) error) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		return fn(Repos{
			Tickets:     NewTicketRepository(tx),
			Escalations: NewEscalationRepository(tx),
			Reopenings:  NewReopeningRepository(tx),
			Evaluations: NewEvaluationRepository(tx),
		})
	})
}
