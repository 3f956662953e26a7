package ingress

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitflow/conduit/pkg/workflow"
)

const sampleUpdate = `{
	"update_id": 9001,
	"message": {
		"message_id": 7,
		"date": 1735689600,
		"text": "/start hello",
		"chat": {"id": 987654321, "type": "private", "first_name": "Alice", "username": "alice"},
		"from": {"id": 11111, "is_bot": false, "first_name": "Alice", "username": "alice", "language_code": "en"}
	}
}`

func TestTelegramHandler_DispatchesNormalizedUpdate(t *testing.T) {
	wf := publishedWorkflow(t, workflow.NodeTypeTelegramTrigger, nil)
	dispatcher := &captureDispatcher{}
	handler := NewTelegramHandler(&fakeDirectory{wf: wf}, dispatcher, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/telegram?workflowId="+wf.ID.String(),
		strings.NewReader(sampleUpdate))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, dispatcher.events, 1)

	event := dispatcher.events[0]
	assert.Equal(t, wf.ID, event.Data.WorkflowID)
	assert.Equal(t, wf.UserID, event.Data.UserID)

	telegram := event.Data.InitialData["telegram"].(map[string]interface{})
	assert.Equal(t, "/start hello", telegram["text"])
	assert.Equal(t, int64(9001), telegram["updateId"])
	assert.Equal(t, int64(7), telegram["messageId"])

	chat := telegram["chat"].(map[string]interface{})
	assert.Equal(t, int64(987654321), chat["id"])
	assert.Equal(t, "private", chat["type"])
	assert.Equal(t, "Alice", chat["firstName"])
	assert.Nil(t, chat["title"], "absent fields are present but nil")

	from := telegram["from"].(map[string]interface{})
	assert.Equal(t, int64(11111), from["id"])
	assert.Equal(t, false, from["isBot"])
	assert.Equal(t, "en", from["languageCode"])

	raw := telegram["raw"].(map[string]interface{})
	assert.Equal(t, float64(9001), raw["update_id"], "raw keeps the wire payload untouched")
	rawMessage := raw["message"].(map[string]interface{})
	assert.Equal(t, "/start hello", rawMessage["text"])
}

func TestTelegramHandler_SkipsNonMessageUpdates(t *testing.T) {
	wf := publishedWorkflow(t, workflow.NodeTypeTelegramTrigger, nil)
	dispatcher := &captureDispatcher{}
	handler := NewTelegramHandler(&fakeDirectory{wf: wf}, dispatcher, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/telegram?workflowId="+wf.ID.String(),
		strings.NewReader(`{"update_id": 9002, "edited_message": {"text": "edited"}}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "non-message updates are acknowledged so Telegram stops retrying")
	assert.Contains(t, rec.Body.String(), "skipped")
	assert.Empty(t, dispatcher.events)
}

func TestTelegramHandler_POSTOnly(t *testing.T) {
	handler := NewTelegramHandler(&fakeDirectory{}, &captureDispatcher{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/webhooks/telegram?workflowId=wf", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTelegramHandler_InvalidPayload(t *testing.T) {
	handler := NewTelegramHandler(&fakeDirectory{}, &captureDispatcher{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/telegram?workflowId=wf",
		strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTelegramHandler_UnknownWorkflow(t *testing.T) {
	handler := NewTelegramHandler(&fakeDirectory{}, &captureDispatcher{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/telegram?workflowId=missing",
		strings.NewReader(sampleUpdate))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
