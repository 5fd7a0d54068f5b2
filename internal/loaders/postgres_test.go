package loaders

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conversly/whatsapp-faq-bot/internal/types"
)

func newMockClient(t *testing.T) (*PostgresClient, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresClientWithPool(mock), mock
}

var tenantCols = []string{"id", "name", "whatsapp_phone_number_id", "whatsapp_api_token",
	"ai_system_instruction", "ai_model_name", "active", "created_at", "updated_at"}

func TestGetActiveTenantByPhoneNumberID(t *testing.T) {
	client, mock := newMockClient(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM tenants").
		WithArgs("1015551234").
		WillReturnRows(pgxmock.NewRows(tenantCols).
			AddRow("t1", "Acme", "1015551234", "tok", "Be brief.", "", true, now, now))

	tenant, err := client.GetActiveTenantByPhoneNumberID(context.Background(), "1015551234")
	require.NoError(t, err)
	assert.Equal(t, "t1", tenant.ID)
	assert.Equal(t, "tok", tenant.APIToken)
	assert.Equal(t, "Be brief.", tenant.SystemInstruction)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveTenantByPhoneNumberIDNotFound(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery("SELECT .+ FROM tenants").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := client.GetActiveTenantByPhoneNumberID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTenantConflict(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery("INSERT INTO tenants").
		WithArgs("t2", "Other", "1015551234", "tok", "", "").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := client.CreateTenant(context.Background(), &types.Tenant{
		ID: "t2", Name: "Other", PhoneNumberID: "1015551234", APIToken: "tok",
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestDeactivateTenantNotFound(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("UPDATE tenants").
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, client.DeactivateTenant(context.Background(), "gone"), ErrNotFound)
}

var faqCols = []string{"id", "tenant_id", "question", "answer", "embedding", "active", "created_at", "updated_at"}

func TestListActiveFAQsKeepsUndecodableRowsWithoutEmbedding(t *testing.T) {
	client, mock := newMockClient(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM faqs").
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows(faqCols).
			AddRow(int64(1), "t1", "hours?", "9-5", "[1,0,0]", true, now, now).
			AddRow(int64(2), "t1", "broken?", "x", "[1,abc", true, now, now).
			AddRow(int64(3), "t1", "null?", "y", "", true, now, now))

	entries, err := client.ListActiveFAQs(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []float32{1, 0, 0}, entries[0].Embedding)
	assert.Nil(t, entries[1].Embedding)
	assert.Nil(t, entries[2].Embedding)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFAQTextLeavesEmbeddingColumnAlone(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("SET question = \\$2, answer = \\$3, updated_at").
		WithArgs(int64(7), "hours?", "10-6").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := client.UpdateFAQText(context.Background(), &types.FAQEntry{ID: 7, Question: "hours?", Answer: "10-6"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

var convCols = []string{"id", "tenant_id", "wa_id", "message_text", "sender", "response_text", "source", "wa_message_id", "created_at"}

func TestGetConversationHistoryReturnsChronologicalOrder(t *testing.T) {
	client, mock := newMockClient(t)
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM conversations").
		WithArgs("t1", "15550001", 3).
		WillReturnRows(pgxmock.NewRows(convCols).
			AddRow(int64(3), "t1", "15550001", "third", "user", "r3", "model", "", base.Add(2*time.Minute)).
			AddRow(int64(2), "t1", "15550001", "second", "user", "r2", "faq", "", base.Add(time.Minute)).
			AddRow(int64(1), "t1", "15550001", "first", "user", "r1", "model", "", base))

	history, err := client.GetConversationHistory(context.Background(), "t1", "15550001", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[0].MessageText)
	assert.Equal(t, "third", history[2].MessageText)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertConversationMessageDefaultsSender(t *testing.T) {
	client, mock := newMockClient(t)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO conversations").
		WithArgs("t1", "15550001", "hi", "user", "hello", "model", "wamid.1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))

	msg := &types.ConversationMessage{
		TenantID: "t1", WaID: "15550001", MessageText: "hi",
		ResponseText: "hello", Source: "model", WaMessageID: "wamid.1",
	}
	require.NoError(t, client.InsertConversationMessage(context.Background(), msg))
	assert.Equal(t, int64(42), msg.ID)
	assert.Equal(t, types.SenderUser, msg.Sender)
}

func TestHideConversation(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("UPDATE conversations").
		WithArgs("t1", "15550001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	n, err := client.HideConversation(context.Background(), "t1", "15550001")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
