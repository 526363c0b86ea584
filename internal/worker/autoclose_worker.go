package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

const sweepBatchSize = 100

// AutoCloseWorker sweeps tickets left in Finalizado past the evaluation grace
// window and closes them on the requester's behalf. System-closed tickets
// remain evaluable until an evaluation arrives.
type AutoCloseWorker struct {
	cfg        config.AutoCloseConfig
	tx         repository.TxManager
	tickets    repository.TicketRepository
	reminders  persistence.ReminderStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewAutoCloseWorker constructs the worker.
func NewAutoCloseWorker(
	cfg config.AutoCloseConfig,
	tx repository.TxManager,
	tickets repository.TicketRepository,
	reminders persistence.ReminderStore,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *AutoCloseWorker {
	return &AutoCloseWorker{
		cfg:        cfg,
		tx:         tx,
		tickets:    tickets,
		reminders:  reminders,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Run sweeps on the configured cadence until the context is canceled.
func (w *AutoCloseWorker) Run(ctx context.Context) error {
	if !w.cfg.Enabled {
		w.logger.Info("auto-close worker disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(w.cfg.SweepInterval())
	defer ticker.Stop()

	w.logger.Info("auto-close worker started",
		zap.Duration("grace_window", w.cfg.GraceWindow()),
		zap.Duration("sweep_interval", w.cfg.SweepInterval()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if closed, err := w.Sweep(ctx); err != nil {
				w.logger.Error("auto-close sweep failed", zap.Error(err))
			} else if closed > 0 {
				w.logger.Info("auto-close sweep done", zap.Int("closed", closed))
			}
		}
	}
}

// Sweep closes every finalized ticket whose grace window elapsed. Each ticket
// is re-checked under its row lock so a requester evaluating or reopening
// concurrently always wins.
func (w *AutoCloseWorker) Sweep(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.cfg.GraceWindow())
	candidates, err := w.tickets.ListFinalizedBefore(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, candidate := range candidates {
		ok, finalizedAt, err := w.closeOne(ctx, candidate.ID, cutoff)
		if err != nil {
			w.logger.Error("auto-close failed",
				zap.String("ticket_id", candidate.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		closed++
		if err := w.reminders.Clear(ctx, candidate.ID); err != nil {
			w.logger.Warn("reminder bookkeeping failed",
				zap.String("ticket_id", candidate.ID), zap.Error(err))
		}
		w.publish(ctx, candidate.ID, finalizedAt)
	}
	return closed, nil
}

func (w *AutoCloseWorker) closeOne(ctx context.Context, ticketID string, cutoff time.Time) (bool, time.Time, error) {
	var finalizedAt time.Time
	applied := false
	err := w.tx.InTx(ctx, func(r repository.Repos) error {
		ticket, err := r.Tickets.GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		// The listing ran without the lock; the ticket may have been
		// evaluated or reopened since.
		if ticket.Status != domain.TicketStatusFinalizado ||
			ticket.FinalizedAt == nil || !ticket.FinalizedAt.Before(cutoff) {
			return nil
		}
		now := w.now()
		if ticket.ClosedAt == nil {
			ticket.ClosedAt = &now
		}
		ticket.Status = domain.TicketStatusCerrado
		ticket.SystemClosed = true
		if err := r.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		finalizedAt = *ticket.FinalizedAt
		applied = true
		return nil
	})
	return applied, finalizedAt, err
}

func (w *AutoCloseWorker) publish(ctx context.Context, ticketID string, finalizedAt time.Time) {
	if w.dispatcher == nil {
		return
	}
	_ = w.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketAutoClosed,
		TicketID:  ticketID,
		Actor:     events.Actor{},
		Timestamp: w.now(),
		Payload:   events.TicketAutoClosedPayload{FinalizedAt: finalizedAt},
	})
}
