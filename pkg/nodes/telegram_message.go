package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/engine"
	conduiterrors "github.com/conduitflow/conduit/pkg/errors"
	"github.com/conduitflow/conduit/pkg/realtime"
	"github.com/conduitflow/conduit/pkg/template"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// DefaultTelegramBaseURL is the production Telegram Bot API endpoint. The
// bot token is appended per-request.
const DefaultTelegramBaseURL = "https://api.telegram.org"

type telegramMessageConfig struct {
	VariableName string `json:"variableName"`
	CredentialID string `json:"credentialId"`
	ChatID       string `json:"chatId"`
	Message      string `json:"message"`
}

// NewTelegramMessageExecutor creates the executor for TELEGRAM_MESSAGE
// nodes. The chat id comes from the node config when set, otherwise from the
// trigger context's telegram.chat.id; an explicit config value wins.
func NewTelegramMessageExecutor(client *http.Client, creds CredentialResolver, baseURL string, renderer *template.Renderer) engine.Executor {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultTelegramBaseURL
	}
	channel := realtime.ChannelFor(string(workflow.NodeTypeTelegramMessage))

	return func(ctx context.Context, p engine.Params) (engine.Context, error) {
		publishStatus(p, channel, realtime.StatusLoading)

		var cfg telegramMessageConfig
		if err := decodeConfig(workflow.NodeTypeTelegramMessage, p.Data, &cfg); err != nil {
			return nil, failConfigResult(p, channel, err.Error())
		}
		if cfg.CredentialID == "" {
			return nil, failConfigResult(p, channel, "Telegram credential is required")
		}
		if cfg.Message == "" {
			return nil, failConfigResult(p, channel, "message is required")
		}

		message, err := renderer.Render(cfg.Message, p.Context)
		if err != nil {
			return nil, failConfigResult(p, channel, fmt.Sprintf("failed to render message: %v", err))
		}
		message = strings.TrimSpace(message)

		chatID, err := resolveChatID(renderer, cfg, p.Context)
		if err != nil {
			return nil, failConfigResult(p, channel, err.Error())
		}
		if chatID == "" {
			return nil, failConfigResult(p, channel, "chat ID is required: configure chatId or run from a Telegram trigger")
		}
		if message == "" {
			return nil, failConfigResult(p, channel, "rendered message is empty")
		}

		// Resolved outside the durable step so the bot token never lands in
		// the step log.
		botToken, err := creds.ResolveSecret(ctx, types.CredentialID(cfg.CredentialID), p.UserID)
		if err != nil {
			publishStatus(p, channel, realtime.StatusError)
			publishResult(p, channel, realtime.StatusError, "", "Telegram credential not found")
			return nil, conduiterrors.WrapNonRetriablef(err, "Telegram credential not found")
		}

		result, err := p.Step.Run(ctx, fmt.Sprintf("telegram-send-message-%s", p.NodeID), func(stepCtx context.Context) (interface{}, error) {
			return sendTelegramMessage(stepCtx, client, baseURL, botToken, chatID, message)
		})
		if err != nil {
			publishResult(p, channel, realtime.StatusError, "", err.Error())
			publishStatus(p, channel, realtime.StatusError)
			return nil, err
		}

		publishResult(p, channel, realtime.StatusSuccess, prettyJSON(map[string]interface{}{
			"chatId":   chatID,
			"message":  message,
			"response": result,
		}), "")
		publishStatus(p, channel, realtime.StatusSuccess)

		key := cfg.VariableName
		if key == "" {
			key = "telegramMessage"
		}
		return engine.Context{key: result}, nil
	}
}

// resolveChatID prefers the node's templated chatId over the trigger
// context's telegram.chat.id.
func resolveChatID(renderer *template.Renderer, cfg telegramMessageConfig, execCtx engine.Context) (string, error) {
	if cfg.ChatID != "" {
		rendered, err := renderer.Render(cfg.ChatID, execCtx)
		if err != nil {
			return "", fmt.Errorf("failed to render chat ID: %w", err)
		}
		if trimmed := strings.TrimSpace(rendered); trimmed != "" {
			return trimmed, nil
		}
	}

	telegram, ok := execCtx["telegram"].(map[string]interface{})
	if !ok {
		return "", nil
	}
	chat, ok := telegram["chat"].(map[string]interface{})
	if !ok {
		return "", nil
	}
	switch id := chat["id"].(type) {
	case string:
		return id, nil
	case float64:
		return fmt.Sprintf("%.0f", id), nil
	case int64:
		return fmt.Sprintf("%d", id), nil
	case json.Number:
		return id.String(), nil
	default:
		return "", nil
	}
}

// sendTelegramMessage calls the Bot API and returns the sent message object.
// A response with ok=false is a non-retriable error carrying the API's
// description.
func sendTelegramMessage(ctx context.Context, client *http.Client, baseURL, botToken, chatID, text string) (interface{}, error) {
	payload, err := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sendMessage payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", baseURL, botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Telegram request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Telegram response: %w", err)
	}

	if !gjson.GetBytes(raw, "ok").Bool() {
		description := gjson.GetBytes(raw, "description").String()
		if description == "" {
			description = "Telegram API error"
		}
		return nil, conduiterrors.NewNonRetriable(description)
	}

	var result interface{}
	if msg := gjson.GetBytes(raw, "result"); msg.Exists() {
		if err := json.Unmarshal([]byte(msg.Raw), &result); err != nil {
			result = map[string]interface{}{}
		}
	} else {
		result = map[string]interface{}{}
	}
	return result, nil
}
