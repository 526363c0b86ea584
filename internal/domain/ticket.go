package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusAbierto    TicketStatus = "Abierto"
	TicketStatusPendiente  TicketStatus = "Pendiente"
	TicketStatusEnProgreso TicketStatus = "En Progreso"
	TicketStatusEscalado   TicketStatus = "Escalado"
	TicketStatusFinalizado TicketStatus = "Finalizado"
	TicketStatusCerrado    TicketStatus = "Cerrado"
)

// TicketPriority enumerates SLA urgency. The persisted enumeration has three
// levels; "Critica" is accepted as resolver output and collapsed to Alta by
// NormalizePriority before any value reaches storage.
type TicketPriority string

const (
	TicketPriorityBaja  TicketPriority = "Baja"
	TicketPriorityMedia TicketPriority = "Media"
	TicketPriorityAlta  TicketPriority = "Alta"

	// TicketPriorityCritica is a transient value the assignment resolver may
	// compute under load. It never survives normalization.
	TicketPriorityCritica TicketPriority = "Critica"
)

// Ticket is the aggregate for help-desk requests.
type Ticket struct {
	ID          string
	ServiceID   string
	RequesterID string
	// TechnicianID always points at the most recent escalation target once
	// any escalation happened.
	TechnicianID *string
	Title        string
	Description  string
	Status       TicketStatus
	Priority     TicketPriority

	// Each timestamp below is set at most once (set-if-null).
	CreatedAt          time.Time
	AssignedAt         *time.Time
	AttentionStartedAt *time.Time
	FinalizedAt        *time.Time
	ClosedAt           *time.Time

	// SLA accounting. RemainingSeconds is computed once at creation,
	// AttentionSeconds once at finalization.
	RemainingSeconds *int64
	AttentionSeconds *int64

	// Pending sub-state. Cleared whenever the ticket leaves Pendiente through
	// any path other than a reopening.
	PendingMotive   *string
	PendingResumeAt *time.Time
	PendingSetBy    *string
	PendingSetAt    *time.Time

	// SystemClosed records whether the most recent closure was driven by the
	// auto-close sweep instead of an explicit evaluation.
	SystemClosed bool

	UpdatedAt time.Time
}

// Assigned reports whether the ticket has a responsible technician.
func (t *Ticket) Assigned() bool {
	return t.TechnicianID != nil && *t.TechnicianID != ""
}

// AssignedTo reports whether the given user is the current technician.
func (t *Ticket) AssignedTo(userID string) bool {
	return t.TechnicianID != nil && *t.TechnicianID == userID
}

// ClearPending wipes the pending sub-state fields.
func (t *Ticket) ClearPending() {
	t.PendingMotive = nil
	t.PendingResumeAt = nil
	t.PendingSetBy = nil
	t.PendingSetAt = nil
}
