package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() (*gin.Engine, *memStore, *countingEmbedder) {
	gin.SetMode(gin.TestMode)
	svc, store, emb, _ := newTestService()
	router := gin.New()
	RegisterRoutes(router, svc)
	return router, store, emb
}

func doJSON(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

type tenantEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		ID string `json:"id"`
	} `json:"data"`
}

func TestTenantLifecycleOverHTTP(t *testing.T) {
	router, _, _ := newTestRouter()

	w := doJSON(router, http.MethodPost, "/admin/tenants", `{"name":"Acme","whatsapp_phone_number_id":"PN1","whatsapp_api_token":"secret"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "secret", "api token must not be echoed")

	var created tenantEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.True(t, created.Success)
	id := created.Data.ID

	w = doJSON(router, http.MethodPost, "/admin/tenants", `{"name":"Copy","whatsapp_phone_number_id":"PN1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, "/admin/tenants", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPut, "/admin/tenants/"+id, `{"ai_system_instruction":"Be brief."}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Be brief.")

	w = doJSON(router, http.MethodGet, "/admin/tenants", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodDelete, "/admin/tenants/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/admin/tenants/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":false`)

	w = doJSON(router, http.MethodPost, "/admin/tenants/"+id+"/faqs", `{"question":"q","answer":"a"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodDelete, "/admin/tenants/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFAQEndpoints(t *testing.T) {
	router, store, emb := newTestRouter()

	w := doJSON(router, http.MethodPost, "/admin/shared/faqs", `{"question":"Where are you?","answer":"Main St"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.faqs, 1)

	w = doJSON(router, http.MethodGet, "/admin/shared/faqs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Main St")
	assert.NotContains(t, w.Body.String(), "embedding")

	w = doJSON(router, http.MethodPut, "/admin/faqs/1", `{"answer":"12 Main St"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reembedded":false`)

	w = doJSON(router, http.MethodPut, "/admin/faqs/abc", `{"answer":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/admin/tenants/nope/faqs", `{"question":"q","answer":"a"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	emb.err = errors.New("upstream")
	w = doJSON(router, http.MethodPost, "/admin/shared/faqs", `{"question":"q","answer":"a"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = doJSON(router, http.MethodDelete, "/admin/faqs/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(router, http.MethodDelete, "/admin/faqs/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestThreadLimitValidation(t *testing.T) {
	router, _, _ := newTestRouter()

	w := doJSON(router, http.MethodGet, "/admin/tenants/T1/conversations/U1?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/admin/tenants/T1/conversations/U1?limit=10", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
