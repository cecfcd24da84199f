package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-gateway/internal/auth"
	"github.com/spec-kit/helpdesk-gateway/internal/config"
	"github.com/spec-kit/helpdesk-gateway/internal/helpdesk"
	apperrors "github.com/spec-kit/helpdesk-gateway/pkg/util/errorutil"
)

var testIdentity = &auth.Identity{
	ExternalID: "ext-1",
	Email:      "user@example.com",
	Name:       "Test User",
}

type backendFake struct {
	server *httptest.Server
	calls  atomic.Int64
}

func newBackendFake(t *testing.T, handler http.HandlerFunc) *backendFake {
	t.Helper()
	fake := &backendFake{}
	fake.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(fake.server.Close)
	return fake
}

func newCaseService(t *testing.T, fake *backendFake, enforceOwnership bool) *CaseService {
	t.Helper()
	client := helpdesk.NewClient(config.HelpdeskConfig{
		BaseURL:              fake.server.URL,
		StaffEmail:           "staff@example.com",
		APIKey:               "api-key",
		TimeoutSeconds:       5,
		UploadTimeoutSeconds: 5,
	}, zap.NewNop())
	return NewCaseService(client, enforceOwnership, zap.NewNop())
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr), "expected DomainError, got %v", err)
	return domainErr.Code
}

func TestListCasesRejectsOutOfRangePaginationBeforeBackendCall(t *testing.T) {
	fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_count": 0}`))
	})
	svc := newCaseService(t, fake, false)

	for _, query := range []CaseListQuery{
		{Page: 0, Limit: 20, Sort: "updated_at_desc"},
		{Page: 501, Limit: 20, Sort: "updated_at_desc"},
		{Page: 1, Limit: 0, Sort: "updated_at_desc"},
		{Page: 1, Limit: 101, Sort: "updated_at_desc"},
	} {
		_, _, err := svc.ListCases(context.Background(), testIdentity, query)
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
	}
	assert.Equal(t, int64(0), fake.calls.Load(), "no backend call may be attempted")
}

func TestListCasesRoundTrip(t *testing.T) {
	var gotQuery string
	fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{
			"abc": {"case": {"case_id": 1, "case_number": "10-1", "subject": "printer", "status": "open", "user_id": 42}},
			"xyz": {"case": {"case_id": 2, "case_number": "10-2", "subject": "network", "status": "closed", "user_id": 42}},
			"total_count": 2
		}`))
	})
	svc := newCaseService(t, fake, false)

	cases, total, err := svc.ListCases(context.Background(), testIdentity, CaseListQuery{
		Page: 1, Limit: 20, Sort: "updated_at_desc",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), total)
	require.Len(t, cases, 2)
	assert.Equal(t, int64(1), cases[0].CaseID)
	assert.Equal(t, int64(2), cases[1].CaseID)
	assert.Contains(t, gotQuery, "user_email=user%40example.com")
	assert.Contains(t, gotQuery, "sort=updated_at_desc")
}

func TestCreateCasePrefersHTMLAndUsesVerifiedEmail(t *testing.T) {
	var gotBody map[string]map[string]any
	fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"case": {"case_id": 9, "case_number": "10-9", "subject": "printer", "user_id": 42}}`))
	})
	svc := newCaseService(t, fake, false)

	created, err := svc.CreateCase(context.Background(), testIdentity, CaseCreateInput{
		Subject:     "printer",
		Content:     "plain text",
		ContentHTML: "<p>rich</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), created.CaseID)

	payload := gotBody["case"]
	assert.Equal(t, "user@example.com", payload["user_email"])
	assert.Equal(t, "<p>rich</p>", payload["content_html"])
	assert.NotContains(t, payload, "content")
}

func TestCreateCaseRequiresSubject(t *testing.T) {
	fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {})
	svc := newCaseService(t, fake, false)

	_, err := svc.CreateCase(context.Background(), testIdentity, CaseCreateInput{Content: "text"})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
	assert.Equal(t, int64(0), fake.calls.Load())
}

func TestResolveBackendUserIDAbsence(t *testing.T) {
	t.Run("empty result set", func(t *testing.T) {
		fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"total_count": 0}`))
		})
		svc := newCaseService(t, fake, false)

		userID, resolved := svc.resolveBackendUserID(context.Background(), "new@example.com")
		assert.False(t, resolved)
		assert.Zero(t, userID)
	})

	t.Run("backend error", func(t *testing.T) {
		fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		svc := newCaseService(t, fake, false)

		_, resolved := svc.resolveBackendUserID(context.Background(), "new@example.com")
		assert.False(t, resolved)
	})

	t.Run("existing user", func(t *testing.T) {
		fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			w.Write([]byte(`{"0": {"case": {"case_id": 3, "user_id": 42}}, "total_count": 5}`))
		})
		svc := newCaseService(t, fake, false)

		userID, resolved := svc.resolveBackendUserID(context.Background(), "user@example.com")
		assert.True(t, resolved)
		assert.Equal(t, int64(42), userID)
	})
}

func TestSendMessageJSONOmitsAttributionOnResolutionMiss(t *testing.T) {
	var gotContentType string
	var gotBody map[string]map[string]any
	fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"total_count": 0}`))
			return
		}
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message": {"message_id": 100, "content": "hello"}}`))
	})
	svc := newCaseService(t, fake, false)

	sent, err := svc.SendMessage(context.Background(), testIdentity, 5, MessageSendInput{Content: "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(100), sent.MessageID)

	assert.Equal(t, "application/json", gotContentType)
	message := gotBody["message"]
	assert.Equal(t, "hello", message["content"])
	assert.NotContains(t, message, "user_id", "unresolved caller must not be attributed")
}

func TestSendMessageMultipartEncoding(t *testing.T) {
	var gotContentType string
	fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"0": {"case": {"case_id": 3, "user_id": 42}}, "total_count": 1}`))
			return
		}
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("message[user_id]"))
		assert.Equal(t, "see attached", r.FormValue("message[content]"))

		first := r.MultipartForm.File["message[attachments][0]"]
		require.Len(t, first, 1)
		assert.Equal(t, "notes.txt", first[0].Filename)
		assert.Equal(t, "text/plain", first[0].Header.Get("Content-Type"))

		second := r.MultipartForm.File["message[attachments][1]"]
		require.Len(t, second, 1)
		assert.Equal(t, "application/octet-stream", second[0].Header.Get("Content-Type"))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message": {"message_id": 101, "user_id": 42}}`))
	})
	svc := newCaseService(t, fake, false)

	uploads := []Upload{
		{FileName: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
		{FileName: "blob", Data: []byte{0x01}}, // no declared type
	}
	sent, err := svc.SendMessage(context.Background(), testIdentity, 5, MessageSendInput{Content: "see attached"}, uploads)
	require.NoError(t, err)
	assert.Equal(t, int64(101), sent.MessageID)
	assert.True(t, strings.HasPrefix(gotContentType, "multipart/form-data"), "got %q", gotContentType)
}

func TestSendMessageOwnershipDenied(t *testing.T) {
	var posted bool
	fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/cases.json":
			w.Write([]byte(`{"0": {"case": {"case_id": 3, "user_id": 42}}, "total_count": 1}`))
		case r.Method == http.MethodGet && r.URL.Path == "/cases/9.json":
			w.Write([]byte(`{"case": {"case_id": 9, "user_id": 43}}`))
		default:
			posted = true
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"message": {"message_id": 1}}`))
		}
	})
	svc := newCaseService(t, fake, true)

	_, err := svc.SendMessage(context.Background(), testIdentity, 9, MessageSendInput{Content: "hi"}, nil)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
	assert.False(t, posted, "foreign case must never receive the message")
}

func TestGetMessagesOwnershipAllowsOwner(t *testing.T) {
	fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cases.json":
			w.Write([]byte(`{"0": {"case": {"case_id": 9, "user_id": 42}}, "total_count": 1}`))
		case r.URL.Path == "/cases/9.json":
			w.Write([]byte(`{"case": {"case_id": 9, "user_id": 42}}`))
		case r.URL.Path == "/cases/9/messages.json":
			assert.Equal(t, "asc", r.URL.Query().Get("order"))
			w.Write([]byte(`{"0": {"message": {"message_id": 1, "user_id": 42, "content": "hi"}}, "total_count": 1}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	svc := newCaseService(t, fake, true)

	messages, total, err := svc.GetMessages(context.Background(), testIdentity, 9, MessageListQuery{
		Page: 1, Limit: 100, Order: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Content)
}

func TestGetMessagesDeniedForUnresolvedCaller(t *testing.T) {
	fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_count": 0}`))
	})
	svc := newCaseService(t, fake, true)

	_, _, err := svc.GetMessages(context.Background(), testIdentity, 9, MessageListQuery{
		Page: 1, Limit: 100, Order: "asc",
	})
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}

func TestGetMessagesRejectsInvalidOrder(t *testing.T) {
	fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {})
	svc := newCaseService(t, fake, false)

	_, _, err := svc.GetMessages(context.Background(), testIdentity, 9, MessageListQuery{
		Page: 1, Limit: 100, Order: "sideways",
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
	assert.Equal(t, int64(0), fake.calls.Load())
}

func TestBackendRejectionPropagatesStatusAndBody(t *testing.T) {
	fake := newBackendFake(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "unknown status filter"}`))
	})
	svc := newCaseService(t, fake, false)

	_, _, err := svc.ListCases(context.Background(), testIdentity, CaseListQuery{
		Page: 1, Limit: 20, Status: "bogus", Sort: "updated_at_desc",
	})
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "BACKEND_REJECTED", domainErr.Code)
	assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus)
	assert.Equal(t, `{"error": "unknown status filter"}`, domainErr.Details["backend_body"])
}
