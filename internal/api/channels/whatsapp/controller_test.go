package whatsapp

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "PN1"},
        "contacts": [{"profile": {"name": "Ann"}, "wa_id": "U1"}],
        "messages": [{"from": "U1", "id": "wamid.1", "timestamp": "1714550400", "type": "text", "text": {"body": "what time are you open"}}]
      }
    }]
  }]
}`

func newTestRouter(t *testing.T, secret string) (*gin.Engine, *harness) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := newHarness(t)
	router := gin.New()
	RegisterRoutes(router, NewController(h.svc, "verify-me", secret))
	return router, h
}

func TestVerifyWebhook(t *testing.T) {
	router, _ := newTestRouter(t, "")

	cases := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"ok", "?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusForbidden, ""},
		{"missing challenge", "?hub.mode=subscribe&hub.verify_token=verify-me", http.StatusBadRequest, ""},
		{"no params", "", http.StatusBadRequest, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/webhook"+tc.query, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestWebhookProcessesAndAcknowledges(t *testing.T) {
	router, h := newTestRouter(t, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(testPayload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"what time are you open"}, h.gen.inputs)
	assert.Equal(t, []string{"9-5 Mon-Fri"}, h.sender.bodies())
}

func TestWebhookAcknowledgesEvenWhenSendFails(t *testing.T) {
	router, h := newTestRouter(t, "")
	h.sender.err = assert.AnError

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", bytes.NewBufferString(testPayload)))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	router, h := newTestRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString("{not json")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.gen.inputs)
}

func TestWebhookSignature(t *testing.T) {
	router, h := newTestRouter(t, "app-secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(testPayload))
	req.Header.Set(SignatureHeader, Sign([]byte(testPayload), "wrong-secret"))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, h.gen.inputs)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(testPayload))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(testPayload))
	req.Header.Set(SignatureHeader, Sign([]byte(testPayload), "app-secret"))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, h.gen.inputs, 1)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"a":1}`)
	good := Sign(body, "s3cret")

	assert.NoError(t, VerifySignature(good, body, "s3cret"))
	assert.ErrorIs(t, VerifySignature(good, []byte(`{"a":2}`), "s3cret"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("sha1=abcd", body, "s3cret"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("sha256=zz", body, "s3cret"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("", body, "s3cret"), ErrInvalidSignature)
}
