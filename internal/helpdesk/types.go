// Package helpdesk speaks the ticketing backend's HTTP API: a process-scoped
// Basic-auth client plus decoders for the backend's idiosyncratic list
// envelope ("ordinal-keyed object with a sibling total_count").
package helpdesk

// Case statuses the backend reports. The set is open ended; the gateway
// passes unknown values through untouched.
const (
	CaseStatusOpen    = "open"
	CaseStatusWaiting = "waiting"
	CaseStatusClosed  = "closed"
)

// Case is a read-only projection of a backend support case. Timestamps are
// backend-formatted strings and are forwarded verbatim.
type Case struct {
	CaseID     int64  `json:"case_id"`
	CaseNumber string `json:"case_number"`
	Subject    string `json:"subject"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	Channel    string `json:"channel"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	UserID     int64  `json:"user_id"`
}

// Message is one entry of a case's conversation thread. The backend omits
// user_id, staff_id, content and note on system notes; absent fields keep
// their zero values.
type Message struct {
	MessageID   int64        `json:"message_id"`
	UserID      int64        `json:"user_id"`
	StaffID     int64        `json:"staff_id"`
	Content     string       `json:"content"`
	ContentHTML string       `json:"content_html"`
	Attachments []Attachment `json:"attachments"`
	Note        bool         `json:"note"`
	CreatedAt   string       `json:"created_at"`
}

// Attachment describes a file stored by the backend.
type Attachment struct {
	FileID   int64  `json:"file_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
}
