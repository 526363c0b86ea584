package domain

import "time"

// DefaultReopeningObservation is stored when the requester reopens without
// providing observation text.
const DefaultReopeningObservation = "Sin observaciones del usuario"

// Reopening is an append-only record of a closed ticket being reactivated by
// its requester. Only TechnicianCause is ever updated, once, on the latest
// row for the ticket.
type Reopening struct {
	ID          string
	TicketID    string
	RequesterID string
	// TechnicianID snapshots the assignee at reopen time; the ticket may have
	// been auto-closed while unassigned.
	TechnicianID *string
	Observation  string
	// PreviousStatus snapshots the ticket state immediately before reopening.
	PreviousStatus  TicketStatus
	TechnicianCause *string
	RespondedAt     *time.Time
	CreatedAt       time.Time
}
