package types

import "time"

// Tenant is a business account bound to one WhatsApp phone number id.
type Tenant struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	PhoneNumberID     string    `json:"whatsapp_phone_number_id"`
	APIToken          string    `json:"-"`
	SystemInstruction string    `json:"ai_system_instruction,omitempty"`
	ModelName         string    `json:"ai_model_name,omitempty"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// FAQEntry is a question/answer pair with its precomputed embedding.
// An empty TenantID marks an entry of the shared pool.
type FAQEntry struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Embedding []float32 `json:"-"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// ConversationMessage is one stored exchange. ResponseText holds the reply
// that was sent for the message, if any.
type ConversationMessage struct {
	ID           int64     `json:"id"`
	TenantID     string    `json:"tenant_id"`
	WaID         string    `json:"wa_id"`
	MessageText  string    `json:"message_text"`
	Sender       string    `json:"sender"`
	ResponseText string    `json:"response_text,omitempty"`
	Source       string    `json:"source,omitempty"`
	WaMessageID  string    `json:"wa_message_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Source tells which path produced a reply.
type Source string

const (
	SourceFAQ   Source = "faq"
	SourceModel Source = "model"
	SourceError Source = "error"
	// SourceEcho marks fixed acknowledgements for non-text messages.
	SourceEcho Source = "echo"
)

// ReplyResult is what the reply generator hands back for every request.
type ReplyResult struct {
	Text            string  `json:"text"`
	Source          Source  `json:"source"`
	MatchedQuestion string  `json:"matched_question,omitempty"`
	MatchedAnswer   string  `json:"matched_answer,omitempty"`
	Score           float64 `json:"score"`
	TenantID        string  `json:"tenant_id,omitempty"`
	Model           string  `json:"model,omitempty"`
	Attempts        int     `json:"attempts,omitempty"`
}

// DailyCount is a message total for one calendar bucket.
type DailyCount struct {
	Bucket time.Time `json:"bucket"`
	Count  int64     `json:"count"`
}

type ConversationStats struct {
	TotalMessages int64        `json:"total_messages"`
	DistinctUsers int64        `json:"distinct_users"`
	Daily         []DailyCount `json:"daily"`
	Monthly       []DailyCount `json:"monthly"`
}

type BaseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
