package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-gateway/internal/auth"
	"github.com/spec-kit/helpdesk-gateway/internal/helpdesk"
	apperrors "github.com/spec-kit/helpdesk-gateway/pkg/util/errorutil"
)

// CaseService translates portal operations into backend calls. It owns no
// state beyond the injected client; every request maps to one backend call,
// plus the resolution and ownership lookups where those apply.
type CaseService struct {
	client           *helpdesk.Client
	validate         *validator.Validate
	enforceOwnership bool
	logger           *zap.Logger
}

// NewCaseService constructs the service around the shared backend client.
func NewCaseService(client *helpdesk.Client, enforceOwnership bool, logger *zap.Logger) *CaseService {
	return &CaseService{
		client:           client,
		validate:         validator.New(),
		enforceOwnership: enforceOwnership,
		logger:           logger,
	}
}

// CaseCreateInput carries the portal's create-case fields. Exactly one of
// Content/ContentHTML is forwarded, HTML preferred.
type CaseCreateInput struct {
	Subject      string `validate:"required"`
	Content      string `validate:"required_without=ContentHTML"`
	ContentHTML  string
	UserFullName string
}

// CaseListQuery bounds match the backend's documented limits; violations are
// rejected before any backend call.
type CaseListQuery struct {
	Page   int `validate:"min=1,max=500"`
	Limit  int `validate:"min=1,max=100"`
	Status string
	Sort   string
}

// MessageListQuery paginates a case's thread.
type MessageListQuery struct {
	Page  int    `validate:"min=1"`
	Limit int    `validate:"min=1,max=100"`
	Order string `validate:"oneof=asc desc"`
}

// MessageSendInput carries the reply text.
type MessageSendInput struct {
	Content     string `validate:"required_without=ContentHTML"`
	ContentHTML string
}

// Upload is one portal-submitted file to re-stream to the backend.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// CreateCase creates a support case under the caller's verified email; a
// client-supplied email is never trusted.
func (s *CaseService) CreateCase(ctx context.Context, identity *auth.Identity, input CaseCreateInput) (*helpdesk.Case, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, invalidInput(err)
	}

	payload := map[string]any{
		"user_email": identity.Email,
		"subject":    input.Subject,
	}
	if input.ContentHTML != "" {
		payload["content_html"] = input.ContentHTML
	} else {
		payload["content"] = input.Content
	}
	if input.UserFullName != "" {
		payload["user_full_name"] = input.UserFullName
	}

	data, err := s.client.PostJSON(ctx, "/cases.json", map[string]any{"case": payload})
	if err != nil {
		return nil, err
	}
	created, err := helpdesk.DecodeCase(data)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailable(err)
	}
	return created, nil
}

// ListCases returns the caller's cases in backend order plus the total count.
func (s *CaseService) ListCases(ctx context.Context, identity *auth.Identity, query CaseListQuery) ([]helpdesk.Case, int64, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, 0, invalidInput(err)
	}

	params := url.Values{
		"user_email": {identity.Email},
		"page":       {strconv.Itoa(query.Page)},
		"limit":      {strconv.Itoa(query.Limit)},
		"sort":       {query.Sort},
	}
	if query.Status != "" {
		params.Set("status", query.Status)
	}

	data, err := s.client.Get(ctx, "/cases.json", params)
	if err != nil {
		return nil, 0, err
	}
	cases, total, err := helpdesk.DecodeCaseList(data)
	if err != nil {
		return nil, 0, apperrors.NewUpstreamUnavailable(err)
	}
	return cases, total, nil
}

// GetMessages returns a case's thread. When ownership enforcement is on, the
// case's owner is checked against the caller before the thread is read;
// foreign and absent cases are indistinguishable (both 404).
func (s *CaseService) GetMessages(ctx context.Context, identity *auth.Identity, caseID int64, query MessageListQuery) ([]helpdesk.Message, int64, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, 0, invalidInput(err)
	}

	if s.enforceOwnership {
		userID, resolved := s.resolveBackendUserID(ctx, identity.Email)
		if err := s.ensureCaseOwner(ctx, caseID, userID, resolved); err != nil {
			return nil, 0, err
		}
	}

	params := url.Values{
		"page":  {strconv.Itoa(query.Page)},
		"limit": {strconv.Itoa(query.Limit)},
		"order": {query.Order},
	}
	data, err := s.client.Get(ctx, fmt.Sprintf("/cases/%d/messages.json", caseID), params)
	if err != nil {
		return nil, 0, err
	}
	messages, total, err := helpdesk.DecodeMessageList(data)
	if err != nil {
		return nil, 0, apperrors.NewUpstreamUnavailable(err)
	}
	return messages, total, nil
}

// SendMessage posts a reply to a case. With attachments the request is
// re-encoded as multipart/form-data under the backend's indexed field
// convention; without them a plain JSON body goes over the shared client.
func (s *CaseService) SendMessage(ctx context.Context, identity *auth.Identity, caseID int64, input MessageSendInput, uploads []Upload) (*helpdesk.Message, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, invalidInput(err)
	}

	// A resolution miss is not an error: the message goes out without an
	// explicit user attribution and the backend infers it from auth context.
	userID, resolved := s.resolveBackendUserID(ctx, identity.Email)
	if s.enforceOwnership {
		if err := s.ensureCaseOwner(ctx, caseID, userID, resolved); err != nil {
			return nil, err
		}
	}

	path := fmt.Sprintf("/cases/%d/messages.json", caseID)
	var data []byte
	var err error
	if len(uploads) > 0 {
		data, err = s.client.PostMultipart(ctx, path, messageFields(userID, resolved, input), attachmentParts(uploads))
	} else {
		message := map[string]any{}
		if resolved {
			message["user_id"] = userID
		}
		if input.ContentHTML != "" {
			message["content_html"] = input.ContentHTML
		} else {
			message["content"] = input.Content
		}
		data, err = s.client.PostJSON(ctx, path, map[string]any{"message": message})
	}
	if err != nil {
		return nil, err
	}

	sent, err := helpdesk.DecodeMessage(data)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailable(err)
	}
	return sent, nil
}

// resolveBackendUserID maps a portal email to the backend's numeric user id
// by listing that user's cases with limit=1 (the backend has no direct
// lookup-by-email endpoint). It never fails: any error or an empty result
// means "no prior history" and returns absence.
func (s *CaseService) resolveBackendUserID(ctx context.Context, email string) (int64, bool) {
	params := url.Values{
		"user_email": {email},
		"limit":      {"1"},
	}
	data, err := s.client.Get(ctx, "/cases.json", params)
	if err != nil {
		s.logger.Debug("backend user resolution failed", zap.String("email", email), zap.Error(err))
		return 0, false
	}
	cases, _, err := helpdesk.DecodeCaseList(data)
	if err != nil || len(cases) == 0 {
		return 0, false
	}
	return cases[0].UserID, true
}

// ensureCaseOwner fetches the case and checks that it belongs to the resolved
// caller. The backend only scopes the list endpoint by email; the messages
// endpoints trust the raw case id, so without this check any authenticated
// caller could read or write a foreign thread.
func (s *CaseService) ensureCaseOwner(ctx context.Context, caseID int64, userID int64, resolved bool) error {
	if !resolved {
		return apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
	}

	data, err := s.client.Get(ctx, fmt.Sprintf("/cases/%d.json", caseID), nil)
	if err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "BACKEND_REJECTED" && domainErr.HTTPStatus == http.StatusNotFound {
			return apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return err
	}
	owned, err := helpdesk.DecodeCase(data)
	if err != nil {
		return apperrors.NewUpstreamUnavailable(err)
	}
	if owned.UserID != userID {
		return apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
	}
	return nil
}

func messageFields(userID int64, resolved bool, input MessageSendInput) []helpdesk.FormField {
	fields := make([]helpdesk.FormField, 0, 2)
	if resolved {
		fields = append(fields, helpdesk.FormField{Name: "message[user_id]", Value: strconv.FormatInt(userID, 10)})
	}
	if input.ContentHTML != "" {
		fields = append(fields, helpdesk.FormField{Name: "message[content_html]", Value: input.ContentHTML})
	} else {
		fields = append(fields, helpdesk.FormField{Name: "message[content]", Value: input.Content})
	}
	return fields
}

func attachmentParts(uploads []Upload) []helpdesk.FilePart {
	parts := make([]helpdesk.FilePart, 0, len(uploads))
	for i, upload := range uploads {
		contentType := upload.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		parts = append(parts, helpdesk.FilePart{
			Name:        fmt.Sprintf("message[attachments][%d]", i),
			FileName:    upload.FileName,
			ContentType: contentType,
			Data:        upload.Data,
		})
	}
	return parts
}

func invalidInput(err error) error {
	details := map[string]any{}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fieldErr := range fieldErrs {
			details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
		}
	}
	return apperrors.NewValidationError("invalid request parameters", details)
}
