package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the chronological history handed to the model.
type Message struct {
	Role    Role
	Content string
}

// Request is a single generate call.
type Request struct {
	Model             string
	SystemInstruction string
	Messages          []Message
}

// Provider generates a reply. A non-nil error is always a *Failure.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type FailureReason string

const (
	ReasonRateLimited FailureReason = "rate_limited"
	ReasonServer      FailureReason = "server_error"
	ReasonTimeout     FailureReason = "timeout"
	ReasonBlocked     FailureReason = "blocked"
	ReasonEmpty       FailureReason = "empty"
	ReasonOther       FailureReason = "other"
)

// Failure is the only error shape that leaves this package.
type Failure struct {
	Reason FailureReason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return "model failure: " + string(f.Reason)
	}
	return fmt.Sprintf("model failure (%s): %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether another attempt may succeed.
func (f *Failure) Retryable() bool {
	switch f.Reason {
	case ReasonRateLimited, ReasonServer, ReasonTimeout:
		return true
	}
	return false
}

// AsFailure extracts the failure from err, treating unknown errors as ReasonOther.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Reason: ReasonOther, Err: err}
}

// Normalize turns whatever the chat model returned into plain text or a
// typed failure. Callers never inspect response shapes themselves.
func Normalize(msg *schema.Message, err error) (string, error) {
	if err != nil {
		return "", &Failure{Reason: classify(err), Err: err}
	}
	if msg == nil {
		return "", &Failure{Reason: ReasonEmpty}
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		var finish string
		if msg.ResponseMeta != nil {
			finish = msg.ResponseMeta.FinishReason
		}
		return "", &Failure{Reason: ReasonEmpty, Err: fmt.Errorf("no text in response (finish reason %q)", finish)}
	}
	return text, nil
}

func classify(err error) FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	if code, msg, ok := apiErrorDetails(err); ok {
		switch {
		case code == http.StatusTooManyRequests:
			return ReasonRateLimited
		case code >= 500:
			return ReasonServer
		case mentionsBlock(msg):
			return ReasonBlocked
		default:
			return ReasonOther
		}
	}

	// eino wraps some upstream errors with %v, so fall back to the text.
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "429") || strings.Contains(s, "resource_exhausted") || strings.Contains(s, "rate limit"):
		return ReasonRateLimited
	case strings.Contains(s, "unavailable") || strings.Contains(s, "internal error") ||
		strings.Contains(s, "status 500") || strings.Contains(s, "status 502") || strings.Contains(s, "status 503"):
		return ReasonServer
	case mentionsBlock(s):
		return ReasonBlocked
	}
	return ReasonOther
}

func apiErrorDetails(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status + " " + apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status + " " + apiErrPtr.Message, true
	}
	return 0, "", false
}

func mentionsBlock(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "safety") || strings.Contains(s, "blocked") || strings.Contains(s, "prohibited")
}
