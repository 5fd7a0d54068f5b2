package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conversly/whatsapp-faq-bot/internal/types"
)

type captureWriter struct {
	rows []types.ConversationMessage
	err  error
}

func (c *captureWriter) InsertConversationMessage(_ context.Context, m *types.ConversationMessage) error {
	if c.err != nil {
		return c.err
	}
	m.ID = int64(len(c.rows) + 1)
	c.rows = append(c.rows, *m)
	return nil
}

func TestRecorderWritesExchange(t *testing.T) {
	w := &captureWriter{}
	r := NewRecorder(w)

	err := r.Record(context.Background(), Exchange{
		TenantID:    "T1",
		WaID:        "15550001111",
		UserText:    "What are your hours?",
		Reply:       "9 to 5",
		Source:      types.SourceFAQ,
		WaMessageID: "wamid.1",
	})
	require.NoError(t, err)
	require.Len(t, w.rows, 1)

	row := w.rows[0]
	assert.Equal(t, "T1", row.TenantID)
	assert.Equal(t, "15550001111", row.WaID)
	assert.Equal(t, "What are your hours?", row.MessageText)
	assert.Equal(t, "9 to 5", row.ResponseText)
	assert.Equal(t, types.SenderUser, row.Sender)
	assert.Equal(t, "faq", row.Source)
	assert.Equal(t, "wamid.1", row.WaMessageID)
}

func TestRecorderSkipsMissingTenant(t *testing.T) {
	w := &captureWriter{}
	err := NewRecorder(w).Record(context.Background(), Exchange{WaID: "1555", UserText: "hi"})
	require.NoError(t, err)
	assert.Empty(t, w.rows)
}

func TestRecorderErrors(t *testing.T) {
	w := &captureWriter{}
	err := NewRecorder(w).Record(context.Background(), Exchange{TenantID: "T1", WaID: "  "})
	assert.Error(t, err)
	assert.Empty(t, w.rows)

	storeErr := errors.New("connection reset")
	w.err = storeErr
	err = NewRecorder(w).Record(context.Background(), Exchange{TenantID: "T1", WaID: "1555"})
	assert.ErrorIs(t, err, storeErr)
}
