package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const SignatureHeader = "X-Hub-Signature-256"

var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifySignature checks an X-Hub-Signature-256 value ("sha256=<hex>")
// against the HMAC-SHA256 of the raw body.
func VerifySignature(signature string, payload []byte, appSecret string) error {
	hexSig, ok := strings.CutPrefix(strings.TrimSpace(signature), "sha256=")
	if !ok || hexSig == "" {
		return ErrInvalidSignature
	}
	expected, err := hex.DecodeString(hexSig)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(payload)
	if !hmac.Equal(expected, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the header value Meta would send for payload.
func Sign(payload []byte, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// WebhookPayload represents the structure of a Meta webhook payload
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value Value  `json:"value"`
	Field string `json:"field"`
}

// Value carries either messages or status callbacks for one business number.
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	Profile Profile `json:"profile"`
	WaID    string  `json:"wa_id"`
}

type Profile struct {
	Name string `json:"name"`
}

const (
	TypeText        = "text"
	TypeButton      = "button"
	TypeInteractive = "interactive"
)

// Message represents an incoming WhatsApp message
type Message struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *TextMessage `json:"text,omitempty"`
	Button      *Button      `json:"button,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
	Image       *MediaInfo   `json:"image,omitempty"`
	Document    *MediaInfo   `json:"document,omitempty"`
	Audio       *MediaInfo   `json:"audio,omitempty"`
	Video       *MediaInfo   `json:"video,omitempty"`
}

type TextMessage struct {
	Body string `json:"body"`
}

// Button is a quick-reply button press on a template message.
type Button struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// Interactive is a reply to an interactive button or list message.
type Interactive struct {
	Type        string      `json:"type"`
	ButtonReply *ReplyTitle `json:"button_reply,omitempty"`
	ListReply   *ReplyTitle `json:"list_reply,omitempty"`
}

type ReplyTitle struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Title returns the title of whichever reply is set.
func (i *Interactive) Title() string {
	if i == nil {
		return ""
	}
	if i.ButtonReply != nil {
		return i.ButtonReply.Title
	}
	if i.ListReply != nil {
		return i.ListReply.Title
	}
	return ""
}

type MediaInfo struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Status represents a message status update
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"` // sent, delivered, read, failed
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}
