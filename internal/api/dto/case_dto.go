package dto

// CreateCaseRequest payload.
type CreateCaseRequest struct {
	Subject      string `json:"subject"`
	Content      string `json:"content"`
	ContentHTML  string `json:"content_html"`
	UserFullName string `json:"user_full_name"`
}

// SendMessageRequest is the JSON form of a reply (no attachments).
type SendMessageRequest struct {
	Content     string `json:"content"`
	ContentHTML string `json:"content_html"`
}

// CaseSummary response.
type CaseSummary struct {
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

// CaseListResponse carries cases in backend order plus the total count.
type CaseListResponse struct {
	Cases      []CaseSummary `json:"cases"`
	TotalCount int64         `json:"total_count"`
}

// MessageResponse represents one thread entry.
type MessageResponse struct {
	MessageID   int64                `json:"message_id"`
	UserID      int64                `json:"user_id"`
	StaffID     int64                `json:"staff_id"`
	Content     string               `json:"content"`
	ContentHTML string               `json:"content_html"`
	Attachments []AttachmentResponse `json:"attachments"`
	Note        bool                 `json:"note"`
	CreatedAt   string               `json:"created_at"`
}

// MessageListResponse carries a case's thread plus the total count.
type MessageListResponse struct {
	Messages   []MessageResponse `json:"messages"`
	TotalCount int64             `json:"total_count"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	FileID   int64  `json:"file_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
}
