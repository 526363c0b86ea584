package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ServiceID   string                `json:"service_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// ChangeStatusRequest payload. Motive and resume_estimate apply to the
// technician pending path, observation to the requester reopen path, comment
// to the administrator escalation-return path.
type ChangeStatusRequest struct {
	Status         string     `json:"status"`
	Motive         string     `json:"motive,omitempty"`
	ResumeEstimate *time.Time `json:"resume_estimate,omitempty"`
	Observation    string     `json:"observation,omitempty"`
	Comment        string     `json:"comment,omitempty"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	TechnicianID string `json:"technician_id"`
	Reason       string `json:"reason"`
}

// EvaluationRequest payload.
type EvaluationRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty"`
}

// ReopeningCauseRequest payload.
type ReopeningCauseRequest struct {
	Cause string `json:"cause"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           string                `json:"id"`
	ServiceID    string                `json:"service_id"`
	RequesterID  string                `json:"requester_id"`
	TechnicianID *string               `json:"technician_id,omitempty"`
	Title        string                `json:"title"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides the full ticket projection.
type TicketDetailResponse struct {
	ID                 string                `json:"id"`
	ServiceID          string                `json:"service_id"`
	RequesterID        string                `json:"requester_id"`
	TechnicianID       *string               `json:"technician_id,omitempty"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	Status             domain.TicketStatus   `json:"status"`
	Priority           domain.TicketPriority `json:"priority"`
	CreatedAt          time.Time             `json:"created_at"`
	AssignedAt         *time.Time            `json:"assigned_at,omitempty"`
	AttentionStartedAt *time.Time            `json:"attention_started_at,omitempty"`
	FinalizedAt        *time.Time            `json:"finalized_at,omitempty"`
	ClosedAt           *time.Time            `json:"closed_at,omitempty"`
	RemainingSeconds   *int64                `json:"remaining_seconds,omitempty"`
	AttentionSeconds   *int64                `json:"attention_seconds,omitempty"`
	WithinTarget       *bool                 `json:"within_target,omitempty"`
	Evaluable          bool                  `json:"evaluable"`
	PendingMotive      *string               `json:"pending_motive,omitempty"`
	PendingResumeAt    *time.Time            `json:"pending_resume_at,omitempty"`
	SystemClosed       bool                  `json:"system_closed"`
	UpdatedAt          time.Time             `json:"updated_at"`
	Escalations        []EscalationResponse  `json:"escalations"`
	Reopenings         []ReopeningResponse   `json:"reopenings"`
	Evaluations        []EvaluationResponse  `json:"evaluations"`
}

// EscalationResponse is a ledger entry projection. Internal row identifiers
// are not exposed.
type EscalationResponse struct {
	FromTechnicianID string    `json:"from_technician_id"`
	ToTechnicianID   string    `json:"to_technician_id"`
	Reason           string    `json:"reason"`
	CreatedAt        time.Time `json:"created_at"`
}

// ReopeningResponse is a ledger entry projection.
type ReopeningResponse struct {
	Observation     string              `json:"observation"`
	PreviousStatus  domain.TicketStatus `json:"previous_status"`
	TechnicianID    *string             `json:"technician_id,omitempty"`
	TechnicianCause *string             `json:"technician_cause,omitempty"`
	RespondedAt     *time.Time          `json:"responded_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// EvaluationResponse is a ledger entry projection.
type EvaluationResponse struct {
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ApprovalDocumentResponse metadata; content travels as the response body on
// the download endpoint.
type ApprovalDocumentResponse struct {
	TicketID  string    `json:"ticket_id"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
