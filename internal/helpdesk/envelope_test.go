package helpdesk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCaseListPreservesEnvelopeOrder(t *testing.T) {
	// total_count sits between record entries; keys are deliberately not in
	// any sorted order.
	payload := []byte(`{
		"zzz": {"case": {"case_id": 10, "case_number": "77-1", "subject": "first", "user_id": 5}},
		"total_count": 3,
		"abc": {"case": {"case_id": 11, "case_number": "77-2", "subject": "second", "user_id": 5}},
		"mmm": {"case": {"case_id": 12, "case_number": "77-3", "subject": "third", "user_id": 5}}
	}`)

	cases, total, err := DecodeCaseList(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, cases, 3)
	assert.Equal(t, int64(10), cases[0].CaseID)
	assert.Equal(t, int64(11), cases[1].CaseID)
	assert.Equal(t, int64(12), cases[2].CaseID)
	assert.Equal(t, "second", cases[1].Subject)
}

func TestDecodeCaseListEmpty(t *testing.T) {
	cases, total, err := DecodeCaseList([]byte(`{"total_count": 0}`))
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, cases)
}

func TestDecodeMessageListDefaultsOptionalFields(t *testing.T) {
	// System notes omit user_id, staff_id, content, note and attachments.
	payload := []byte(`{
		"0": {"message": {"message_id": 100, "created_at": "Wed, 17 Apr 2024 14:00:00 +0400"}},
		"total_count": 1
	}`)

	messages, total, err := DecodeMessageList(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, messages, 1)

	msg := messages[0]
	assert.Equal(t, int64(100), msg.MessageID)
	assert.Zero(t, msg.UserID)
	assert.Zero(t, msg.StaffID)
	assert.Empty(t, msg.Content)
	assert.Empty(t, msg.ContentHTML)
	assert.False(t, msg.Note)
	assert.Empty(t, msg.Attachments)
}

func TestDecodeMessageListWithAttachments(t *testing.T) {
	payload := []byte(`{
		"0": {"message": {
			"message_id": 7, "user_id": 3, "content": "see attached",
			"attachments": [{"file_id": 1, "file_name": "a.pdf", "file_size": 2048, "mime_type": "application/pdf", "url": "https://files/a.pdf"}]
		}},
		"total_count": 1
	}`)

	messages, _, err := DecodeMessageList(payload)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Len(t, messages[0].Attachments, 1)
	assert.Equal(t, "a.pdf", messages[0].Attachments[0].FileName)
	assert.Equal(t, "application/pdf", messages[0].Attachments[0].MimeType)
}

func TestDecodeCaseListMalformedEntry(t *testing.T) {
	// An entry lacking the singleton record is a backend contract violation,
	// not an empty list.
	payload := []byte(`{"0": {"message": {"message_id": 1}}, "total_count": 1}`)

	_, _, err := DecodeCaseList(payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestDecodeCaseListTopLevelNotObject(t *testing.T) {
	_, _, err := DecodeCaseList([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestDecodeMessageSingleRecord(t *testing.T) {
	payload := []byte(`{"message": {"message_id": 42, "user_id": 9, "content": "hi"}}`)

	msg, err := DecodeMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(42), msg.MessageID)
	assert.Equal(t, int64(9), msg.UserID)
}

func TestDecodeCaseSingleRecordMissing(t *testing.T) {
	_, err := DecodeCase([]byte(`{"unexpected": {}}`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}
