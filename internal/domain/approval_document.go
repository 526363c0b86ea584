package domain

import "time"

// ApprovalDocument is an approval letter attached to a ticket whose service
// requires one. Visibility is restricted to the requester, the assigned
// technician and administrators.
type ApprovalDocument struct {
	ID         string
	TicketID   string
	UploadedBy string
	FileName   string
	MimeType   string
	Content    []byte
	CreatedAt  time.Time
}
