package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/types"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

// ConversationWriter persists one exchange row.
type ConversationWriter interface {
	InsertConversationMessage(ctx context.Context, m *types.ConversationMessage) error
}

// Exchange is an inbound message together with what was sent back.
type Exchange struct {
	TenantID    string
	WaID        string
	UserText    string
	Reply       string
	Source      types.Source
	WaMessageID string
}

// Recorder writes exchanges synchronously so the next message from the same
// end-user sees them in its history.
type Recorder struct {
	store ConversationWriter
}

func NewRecorder(store ConversationWriter) *Recorder {
	return &Recorder{store: store}
}

// Record persists the exchange. Exchanges without a tenant are dropped.
func (r *Recorder) Record(ctx context.Context, ex Exchange) error {
	if ex.TenantID == "" {
		utils.Zlog.Debug("Skipping exchange without tenant",
			zap.String("wa_id", utils.MaskPhone(ex.WaID)))
		return nil
	}
	if strings.TrimSpace(ex.WaID) == "" {
		return fmt.Errorf("failed to record exchange: missing wa_id")
	}

	msg := &types.ConversationMessage{
		TenantID:     ex.TenantID,
		WaID:         ex.WaID,
		MessageText:  ex.UserText,
		Sender:       types.SenderUser,
		ResponseText: ex.Reply,
		Source:       string(ex.Source),
		WaMessageID:  ex.WaMessageID,
	}
	if err := r.store.InsertConversationMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}

	utils.Zlog.Debug("Exchange recorded",
		zap.String("tenant_id", ex.TenantID),
		zap.Int64("conversation_id", msg.ID),
		zap.String("source", string(ex.Source)))
	return nil
}
