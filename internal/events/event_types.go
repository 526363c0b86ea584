package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketReturned      EventType = "ticket_returned"
	EventTicketReopened      EventType = "ticket_reopened"
	EventTicketEvaluated     EventType = "ticket_evaluated"
	EventTicketAutoClosed    EventType = "ticket_auto_closed"
)

// AllTypes lists every lifecycle event type, for observers that subscribe to
// the whole stream.
var AllTypes = []EventType{
	EventTicketCreated,
	EventTicketAssigned,
	EventTicketStatusChanged,
	EventTicketEscalated,
	EventTicketReturned,
	EventTicketReopened,
	EventTicketEvaluated,
	EventTicketAutoClosed,
}

// Actor encapsulates actor metadata for an event. System-driven events carry
// an empty UserID.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ServiceID    string                `json:"service_id"`
	Priority     domain.TicketPriority `json:"priority"`
	TechnicianID *string               `json:"technician_id,omitempty"`
	Title        string                `json:"title"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TechnicianID *string `json:"technician_id,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Details   string              `json:"details,omitempty"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	FromTechnicianID string `json:"from_technician_id"`
	ToTechnicianID   string `json:"to_technician_id"`
	Reason           string `json:"reason"`
}

// TicketReturnedPayload carries the admin's technician-visible comment when a
// ticket leaves Escalado back to its technician.
type TicketReturnedPayload struct {
	TechnicianID string `json:"technician_id"`
	Comment      string `json:"comment,omitempty"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	ReopeningID    string              `json:"reopening_id"`
	Observation    string              `json:"observation"`
	PreviousStatus domain.TicketStatus `json:"previous_status"`
	TechnicianID   *string             `json:"technician_id,omitempty"`
}

// TicketEvaluatedPayload payload.
type TicketEvaluatedPayload struct {
	Rating int `json:"rating"`
}

// TicketAutoClosedPayload payload.
type TicketAutoClosedPayload struct {
	FinalizedAt time.Time `json:"finalized_at"`
}
