package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-gateway/internal/api/dto"
	"github.com/spec-kit/helpdesk-gateway/internal/auth"
	"github.com/spec-kit/helpdesk-gateway/internal/helpdesk"
	"github.com/spec-kit/helpdesk-gateway/internal/service"
	apperrors "github.com/spec-kit/helpdesk-gateway/pkg/util/errorutil"
)

// CasesHandler manages the portal's case and message endpoints.
type CasesHandler struct {
	service *service.CaseService
}

// NewCasesHandler constructs handler.
func NewCasesHandler(caseService *service.CaseService) *CasesHandler {
	return &CasesHandler{service: caseService}
}

// CreateCase POST /cases.
func (h *CasesHandler) CreateCase(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	created, err := h.service.CreateCase(c.UserContext(), identity, service.CaseCreateInput{
		Subject:      req.Subject,
		Content:      req.Content,
		ContentHTML:  req.ContentHTML,
		UserFullName: req.UserFullName,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": caseSummary(created)})
}

// ListCases GET /cases.
func (h *CasesHandler) ListCases(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return err
	}
	query := service.CaseListQuery{
		Page:   page,
		Limit:  limit,
		Status: c.Query("status"),
		Sort:   c.Query("sort", "updated_at_desc"),
	}

	cases, total, err := h.service.ListCases(c.UserContext(), identity, query)
	if err != nil {
		return err
	}
	items := make([]dto.CaseSummary, 0, len(cases))
	for i := range cases {
		items = append(items, caseSummary(&cases[i]))
	}
	return c.JSON(fiber.Map{"data": dto.CaseListResponse{Cases: items, TotalCount: total}})
}

// GetMessages GET /cases/:caseId/messages.
func (h *CasesHandler) GetMessages(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	caseID, err := paramCaseID(c)
	if err != nil {
		return err
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		return err
	}
	query := service.MessageListQuery{
		Page:  page,
		Limit: limit,
		Order: c.Query("order", "asc"),
	}

	messages, total, err := h.service.GetMessages(c.UserContext(), identity, caseID, query)
	if err != nil {
		return err
	}
	items := make([]dto.MessageResponse, 0, len(messages))
	for i := range messages {
		items = append(items, messageResponse(&messages[i]))
	}
	return c.JSON(fiber.Map{"data": dto.MessageListResponse{Messages: items, TotalCount: total}})
}

// SendMessage POST /cases/:caseId/messages. Accepts multipart/form-data with
// zero or more attachment files, or an equivalent JSON body.
func (h *CasesHandler) SendMessage(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	caseID, err := paramCaseID(c)
	if err != nil {
		return err
	}

	var input service.MessageSendInput
	var uploads []service.Upload
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewValidationError("invalid multipart payload", nil)
		}
		input.Content = firstValue(form.Value["content"])
		input.ContentHTML = firstValue(form.Value["content_html"])
		uploads, err = readUploads(form.File["attachments"])
		if err != nil {
			return err
		}
	} else {
		var req dto.SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		input.Content = req.Content
		input.ContentHTML = req.ContentHTML
	}

	sent, err := h.service.SendMessage(c.UserContext(), identity, caseID, input, uploads)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(sent)})
}

func paramCaseID(c *fiber.Ctx) (int64, error) {
	caseID, err := strconv.ParseInt(c.Params("caseId"), 10, 64)
	if err != nil || caseID <= 0 {
		return 0, apperrors.NewValidationError("caseId must be a positive integer", nil)
	}
	return caseID, nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("%s must be an integer", key), nil)
	}
	return parsed, nil
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func readUploads(headers []*multipart.FileHeader) ([]service.Upload, error) {
	uploads := make([]service.Upload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, apperrors.NewValidationError("unreadable attachment", map[string]any{"file_name": header.Filename})
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, apperrors.NewValidationError("unreadable attachment", map[string]any{"file_name": header.Filename})
		}
		uploads = append(uploads, service.Upload{
			FileName:    header.Filename,
			ContentType: header.Header.Get(fiber.HeaderContentType),
			Data:        data,
		})
	}
	return uploads, nil
}

func caseSummary(record *helpdesk.Case) dto.CaseSummary {
	return dto.CaseSummary{
		CaseID:     record.CaseID,
		CaseNumber: record.CaseNumber,
		Subject:    record.Subject,
		Status:     record.Status,
		Priority:   record.Priority,
		Channel:    record.Channel,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
		UserID:     record.UserID,
	}
}

func messageResponse(record *helpdesk.Message) dto.MessageResponse {
	attachments := make([]dto.AttachmentResponse, 0, len(record.Attachments))
	for _, attachment := range record.Attachments {
		attachments = append(attachments, dto.AttachmentResponse{
			FileID:   attachment.FileID,
			FileName: attachment.FileName,
			FileSize: attachment.FileSize,
			MimeType: attachment.MimeType,
			URL:      attachment.URL,
		})
	}
	return dto.MessageResponse{
		MessageID:   record.MessageID,
		UserID:      record.UserID,
		StaffID:     record.StaffID,
		Content:     record.Content,
		ContentHTML: record.ContentHTML,
		Attachments: attachments,
		Note:        record.Note,
		CreatedAt:   record.CreatedAt,
	}
}
