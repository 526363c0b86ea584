package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ApprovalDocumentRepository stores approval letters attached to tickets.
type ApprovalDocumentRepository interface {
	Store(ctx context.Context, doc *domain.ApprovalDocument) error
	GetByTicket(ctx context.Context, ticketID string) (*domain.ApprovalDocument, error)
}

type approvalDocumentRepository struct {
	db DBTX
}

// NewApprovalDocumentRepository instantiates the repository.
func NewApprovalDocumentRepository(db DBTX) ApprovalDocumentRepository {
	return &approvalDocumentRepository{db: db}
}

func (r *approvalDocumentRepository) Store(ctx context.Context, doc *domain.ApprovalDocument) error {
	const query = `
        INSERT INTO approval_documents (ticket_id, uploaded_by, file_name, mime_type, content)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (ticket_id) DO UPDATE
            SET uploaded_by=EXCLUDED.uploaded_by, file_name=EXCLUDED.file_name,
                mime_type=EXCLUDED.mime_type, content=EXCLUDED.content
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		doc.TicketID,
		doc.UploadedBy,
		doc.FileName,
		doc.MimeType,
		doc.Content,
	).Scan(&doc.ID, &doc.CreatedAt)
}

func (r *approvalDocumentRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.ApprovalDocument, error) {
	const query = `
        SELECT id, ticket_id, uploaded_by, file_name, mime_type, content, created_at
        FROM approval_documents WHERE ticket_id=$1`
	var doc domain.ApprovalDocument
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&doc.ID,
		&doc.TicketID,
		&doc.UploadedBy,
		&doc.FileName,
		&doc.MimeType,
		&doc.Content,
		&doc.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &doc, nil
}
