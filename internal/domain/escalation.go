package domain

import "time"

// Escalation is an append-only record of a technician handoff. The row with
// the latest CreatedAt for a ticket is its current escalation; the ticket's
// technician field always matches that row's destination.
type Escalation struct {
	ID               string
	TicketID         string
	FromTechnicianID string
	ToTechnicianID   string
	Reason           string
	CreatedAt        time.Time
}
