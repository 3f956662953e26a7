package ingress

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/engine"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// telegramUpdate is the subset of the Bot API update shape the trigger
// cares about. Only message updates start workflows.
type telegramUpdate struct {
	UpdateID *int64 `json:"update_id"`
	Message  *struct {
		MessageID *int64 `json:"message_id"`
		Date      *int64 `json:"date"`
		Text      string `json:"text"`
		Chat      *struct {
			ID        *int64 `json:"id"`
			Type      string `json:"type"`
			Title     string `json:"title"`
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"chat"`
		From *struct {
			ID           *int64 `json:"id"`
			IsBot        *bool  `json:"is_bot"`
			FirstName    string `json:"first_name"`
			LastName     string `json:"last_name"`
			Username     string `json:"username"`
			LanguageCode string `json:"language_code"`
		} `json:"from"`
	} `json:"message"`
}

// TelegramHandler receives Telegram bot webhook updates addressed by
// workflowId query parameter and dispatches a run with the normalized
// message seeded under the telegram context key.
type TelegramHandler struct {
	workflows  WorkflowDirectory
	dispatcher Dispatcher
	log        *logrus.Logger
}

// NewTelegramHandler creates a Telegram update receiver.
func NewTelegramHandler(workflows WorkflowDirectory, dispatcher Dispatcher, log *logrus.Logger) *TelegramHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TelegramHandler{workflows: workflows, dispatcher: dispatcher, log: log}
}

// ServeHTTP handles POST updates from the Bot API.
func (h *TelegramHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, false, "method not allowed")
		return
	}

	workflowID := types.WorkflowID(r.URL.Query().Get("workflowId"))
	if workflowID == "" {
		writeJSON(w, http.StatusBadRequest, false, "Workflow ID is required")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, false, "Invalid Telegram update payload")
		return
	}
	var update telegramUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		writeJSON(w, http.StatusBadRequest, false, "Invalid Telegram update payload")
		return
	}

	// Edited messages, channel posts, and other update kinds are
	// acknowledged but do not trigger workflows.
	if update.Message == nil {
		writeJSON(w, http.StatusOK, true,
			"Telegram update received but skipped (only message updates trigger workflows).")
		return
	}

	wf, err := h.workflows.Lookup(r.Context(), workflowID)
	if err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotFound) {
			writeJSON(w, http.StatusNotFound, false, "Workflow not found")
			return
		}
		logIngressError(h.log, "telegram", err)
		writeJSON(w, http.StatusInternalServerError, false, "Failed to process Telegram webhook")
		return
	}

	event := engine.TriggerEvent{
		ID: types.NewEventID(),
		Data: engine.TriggerData{
			WorkflowID: wf.ID,
			UserID:     wf.UserID,
			InitialData: map[string]interface{}{
				"telegram": normalizeUpdate(update, body),
			},
		},
	}

	if err := h.dispatcher.Dispatch(event); err != nil {
		logIngressError(h.log, "telegram", err)
		writeJSON(w, http.StatusServiceUnavailable, false, "Failed to process Telegram webhook")
		return
	}

	writeJSON(w, http.StatusOK, true, "Telegram webhook processed successfully")
}

// normalizeUpdate flattens a bot update into the shape templates address,
// e.g. {{telegram.text}} or {{telegram.chat.id}}. Absent fields become nil
// so template references render empty instead of failing. The unmodified
// update stays available under raw for workflows that need fields the
// normalized shape drops.
func normalizeUpdate(update telegramUpdate, body []byte) map[string]interface{} {
	msg := update.Message

	chat := map[string]interface{}{
		"id": nil, "type": nil, "title": nil, "username": nil,
		"firstName": nil, "lastName": nil,
	}
	if msg.Chat != nil {
		if msg.Chat.ID != nil {
			chat["id"] = *msg.Chat.ID
		}
		setIfNotEmpty(chat, "type", msg.Chat.Type)
		setIfNotEmpty(chat, "title", msg.Chat.Title)
		setIfNotEmpty(chat, "username", msg.Chat.Username)
		setIfNotEmpty(chat, "firstName", msg.Chat.FirstName)
		setIfNotEmpty(chat, "lastName", msg.Chat.LastName)
	}

	from := map[string]interface{}{
		"id": nil, "isBot": nil, "firstName": nil, "lastName": nil,
		"username": nil, "languageCode": nil,
	}
	if msg.From != nil {
		if msg.From.ID != nil {
			from["id"] = *msg.From.ID
		}
		if msg.From.IsBot != nil {
			from["isBot"] = *msg.From.IsBot
		}
		setIfNotEmpty(from, "firstName", msg.From.FirstName)
		setIfNotEmpty(from, "lastName", msg.From.LastName)
		setIfNotEmpty(from, "username", msg.From.Username)
		setIfNotEmpty(from, "languageCode", msg.From.LanguageCode)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		raw = nil
	}

	data := map[string]interface{}{
		"updateId":  nil,
		"messageId": nil,
		"timestamp": nil,
		"text":      msg.Text,
		"chat":      chat,
		"from":      from,
		"raw":       raw,
	}
	if update.UpdateID != nil {
		data["updateId"] = *update.UpdateID
	}
	if msg.MessageID != nil {
		data["messageId"] = *msg.MessageID
	}
	if msg.Date != nil {
		data["timestamp"] = *msg.Date
	}
	return data
}

func setIfNotEmpty(m map[string]interface{}, key, value string) {
	if value != "" {
		m[key] = value
	}
}
