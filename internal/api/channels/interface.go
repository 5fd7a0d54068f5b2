package channels

import (
	"context"
	"errors"
)

// ErrMissingCredential is returned when neither the tenant nor the process
// configuration provides a messaging token.
var ErrMissingCredential = errors.New("no messaging credential configured")

// OutboundMessage is one text message to an end-user.
type OutboundMessage struct {
	// PhoneNumberID is the business number the message is sent from.
	PhoneNumberID string
	To            string
	Body          string
	// ReplyTo quotes the inbound message when set.
	ReplyTo string
	// AccessToken overrides the channel's default credential.
	AccessToken string
}

// Sender is the outbound messaging gateway of a channel.
type Sender interface {
	// SendText delivers the message and returns the platform message id.
	SendText(ctx context.Context, msg OutboundMessage) (string, error)

	// Channel names the channel, e.g. "whatsapp".
	Channel() string
}
