package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-gateway/internal/config"
	apperrors "github.com/spec-kit/helpdesk-gateway/pkg/util/errorutil"
)

// Client is the process-scoped backend client. It is constructed once at
// startup, injected into every service, and safe for concurrent use. Its
// credentials and base URL are never changed after construction.
type Client struct {
	baseURL    string
	staffEmail string
	apiKey     string
	httpClient *http.Client
	uploadHTTP *http.Client
	logger     *zap.Logger
}

// NewClient builds the client from config. Ordinary calls carry the standard
// deadline; multipart uploads get a longer one to accommodate larger bodies.
func NewClient(cfg config.HelpdeskConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		staffEmail: cfg.StaffEmail,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		uploadHTTP: &http.Client{Timeout: cfg.UploadTimeout()},
		logger:     logger,
	}
}

// FormField is a plain text field of a multipart request.
type FormField struct {
	Name  string
	Value string
}

// FilePart is one re-streamed upload. ContentType must already be resolved
// (callers default absent types to application/octet-stream).
type FilePart struct {
	Name        string
	FileName    string
	ContentType string
	Data        []byte
}

// requestBody is the outbound body variant: exactly one of the JSON or
// multipart encodings, resolved once by the caller. build returns the encoded
// reader together with the Content-Type header value to send.
type requestBody interface {
	build() (io.Reader, string, error)
}

type jsonBody struct {
	payload any
}

func (b jsonBody) build() (io.Reader, string, error) {
	encoded, err := json.Marshal(b.payload)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(encoded), "application/json", nil
}

type multipartBody struct {
	fields []FormField
	files  []FilePart
}

func (b multipartBody) build() (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, field := range b.fields {
		if err := writer.WriteField(field.Name, field.Value); err != nil {
			return nil, "", err
		}
	}
	for _, file := range b.files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Name, file.FileName))
		header.Set("Content-Type", file.ContentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

// Get issues an authenticated GET and returns the raw 2xx body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, c.httpClient, http.MethodGet, path, query, nil)
}

// PostJSON issues an authenticated POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.do(ctx, c.httpClient, http.MethodPost, path, nil, jsonBody{payload: payload})
}

// PostMultipart issues an authenticated POST with a multipart/form-data body.
// The request never carries a JSON content type; the backend rejects
// multipart bodies under a JSON header.
func (c *Client) PostMultipart(ctx context.Context, path string, fields []FormField, files []FilePart) ([]byte, error) {
	return c.do(ctx, c.uploadHTTP, http.MethodPost, path, nil, multipartBody{fields: fields, files: files})
}

func (c *Client) do(ctx context.Context, httpClient *http.Client, method, path string, query url.Values, body requestBody) ([]byte, error) {
	var reader io.Reader
	var contentType string
	if body != nil {
		var err error
		reader, contentType, err = body.build()
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.SetBasicAuth(c.staffEmail, c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		c.logger.Warn("helpdesk call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, apperrors.NewUpstreamUnavailable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailable(err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn("helpdesk rejected request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, apperrors.NewBackendRejected(resp.StatusCode, data)
	}
	return data, nil
}
