package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

const maxApprovalDocumentBytes = 5 << 20

// ApprovalsHandler manages approval letter upload and download.
type ApprovalsHandler struct {
	service *service.TicketService
}

// NewApprovalsHandler constructs handler.
func NewApprovalsHandler(ticketService *service.TicketService) *ApprovalsHandler {
	return &ApprovalsHandler{service: ticketService}
}

// Upload PUT /tickets/:id/approval-document. The raw body is the document;
// file name travels in a header so binary uploads need no multipart framing.
func (h *ApprovalsHandler) Upload(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	body := c.Body()
	if len(body) > maxApprovalDocumentBytes {
		return apperrors.NewValidationError("document too large", map[string]any{"max_bytes": maxApprovalDocumentBytes})
	}
	content := make([]byte, len(body))
	copy(content, body)

	doc, err := h.service.AttachApprovalDocument(c.UserContext(), actor, c.Params("id"), service.ApprovalDocumentInput{
		FileName: c.Get("X-File-Name"),
		MimeType: c.Get(fiber.HeaderContentType),
		Content:  content,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.ApprovalDocumentResponse{
		TicketID:  doc.TicketID,
		FileName:  doc.FileName,
		MimeType:  doc.MimeType,
		SizeBytes: len(doc.Content),
		CreatedAt: doc.CreatedAt,
	}})
}

// Download GET /tickets/:id/approval-document.
func (h *ApprovalsHandler) Download(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	doc, err := h.service.GetApprovalDocument(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	if doc.MimeType != "" {
		c.Set(fiber.HeaderContentType, doc.MimeType)
	}
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+doc.FileName+`"`)
	return c.Send(doc.Content)
}
