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

const (
	// DefaultOpenRouterBaseURL is the production API endpoint.
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	// defaultOpenRouterModel is used when the node config names no model.
	defaultOpenRouterModel = "google/gemini-3.1-pro-preview"
	// defaultSystemPrompt is used when the node config has none.
	defaultSystemPrompt = "you are a helpful assistant"
	// reasoningSuffix is appended to every system prompt so chat-tuned
	// models don't leak their scratchpad into the stored output.
	reasoningSuffix = "\n\nReturn only the final answer for the user. Do not include internal reasoning, analysis steps, or self-reflection."
)

type openRouterConfig struct {
	VariableName string `json:"variableName"`
	CredentialID string `json:"credentialId"`
	Model        string `json:"model"`
	SystemPrompt string `json:"systemPrompt"`
	UserPrompt   string `json:"userPrompt"`
}

// NewOpenRouterExecutor creates the executor for OPENROUTER nodes. baseURL
// is overridable for tests; pass "" for the production endpoint.
func NewOpenRouterExecutor(client *http.Client, creds CredentialResolver, baseURL string, renderer *template.Renderer) engine.Executor {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	channel := realtime.ChannelFor(string(workflow.NodeTypeOpenRouter))

	return func(ctx context.Context, p engine.Params) (engine.Context, error) {
		publishStatus(p, channel, realtime.StatusLoading)

		var cfg openRouterConfig
		if err := decodeConfig(workflow.NodeTypeOpenRouter, p.Data, &cfg); err != nil {
			return nil, failConfig(p, channel, err.Error())
		}
		if cfg.VariableName == "" {
			return nil, failConfig(p, channel, "variable name is required")
		}
		if cfg.CredentialID == "" {
			return nil, failConfig(p, channel, "OpenRouter credential is required")
		}
		if cfg.UserPrompt == "" {
			return nil, failConfig(p, channel, "user prompt is required")
		}

		systemPrompt := defaultSystemPrompt
		if cfg.SystemPrompt != "" {
			rendered, err := renderer.Render(cfg.SystemPrompt, p.Context)
			if err != nil {
				return nil, failConfig(p, channel, fmt.Sprintf("failed to render system prompt: %v", err))
			}
			systemPrompt = rendered
		}
		systemPrompt += reasoningSuffix

		userPrompt, err := renderer.Render(cfg.UserPrompt, p.Context)
		if err != nil {
			return nil, failConfig(p, channel, fmt.Sprintf("failed to render user prompt: %v", err))
		}

		// The secret is resolved outside the durable step on purpose: step
		// results land in the step log, and a decrypted API key must never
		// be persisted there.
		apiKey, err := creds.ResolveSecret(ctx, types.CredentialID(cfg.CredentialID), p.UserID)
		if err != nil {
			publishStatus(p, channel, realtime.StatusError)
			return nil, conduiterrors.WrapNonRetriablef(err, "OpenRouter credential not found")
		}

		model := cfg.Model
		if model == "" {
			model = defaultOpenRouterModel
		}

		text, err := p.Step.Run(ctx, fmt.Sprintf("openrouter-generate-text-%s", p.NodeID), func(stepCtx context.Context) (interface{}, error) {
			return generateText(stepCtx, client, baseURL, apiKey, model, systemPrompt, userPrompt)
		})
		if err != nil {
			publishStatus(p, channel, realtime.StatusError)
			return nil, err
		}

		publishStatus(p, channel, realtime.StatusSuccess)
		answer, _ := text.(string)
		return engine.Context{cfg.VariableName: answer}, nil
	}
}

func generateText(ctx context.Context, client *http.Client, baseURL, apiKey, model, systemPrompt, userPrompt string) (string, error) {
	payload := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"reasoning": map[string]interface{}{"exclude": true},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenRouter request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read OpenRouter response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", fmt.Errorf("OpenRouter returned %d: %.200s", resp.StatusCode, msg)
	}

	return ExtractText(raw), nil
}

// ExtractText pulls the model's answer out of a completion response without
// assuming a single response schema. Providers vary: the shapes are probed
// in a fixed priority order and an unrecognized body yields the empty string
// rather than an error.
func ExtractText(raw []byte) string {
	// Direct text field.
	if text := gjson.GetBytes(raw, "text").String(); strings.TrimSpace(text) != "" {
		return text
	}

	// Stepwise tool-call trace.
	if text := gjson.GetBytes(raw, "steps.0.content.0.text").String(); strings.TrimSpace(text) != "" {
		return text
	}

	// Provider message list.
	if messages := gjson.GetBytes(raw, "response.messages"); messages.IsArray() {
		var parts []string
		for _, msg := range messages.Array() {
			if text := contentText(msg.Get("content")); strings.TrimSpace(text) != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}

	// Raw chat-completion body, wrapped or bare.
	for _, path := range []string{"response.body.choices.0.message.content", "choices.0.message.content"} {
		if text := contentText(gjson.GetBytes(raw, path)); strings.TrimSpace(text) != "" {
			return text
		}
	}

	return ""
}

// contentText flattens a message content value: either a plain string or an
// array of parts carrying text/value fields.
func contentText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if !content.IsArray() {
		return ""
	}

	var parts []string
	for _, part := range content.Array() {
		switch {
		case part.Type == gjson.String:
			parts = append(parts, part.String())
		case part.Get("text").Type == gjson.String:
			parts = append(parts, part.Get("text").String())
		case part.Get("value").Type == gjson.String:
			parts = append(parts, part.Get("value").String())
		}
	}
	return strings.Join(parts, "\n")
}
