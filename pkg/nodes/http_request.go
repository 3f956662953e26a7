package nodes

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/conduitflow/conduit/pkg/engine"
	conduiterrors "github.com/conduitflow/conduit/pkg/errors"
	"github.com/conduitflow/conduit/pkg/realtime"
	"github.com/conduitflow/conduit/pkg/template"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// httpRequestConfig is the typed config for HTTP_REQUEST nodes. Endpoint,
// body, and the auth fields all go through the template pass before use.
type httpRequestConfig struct {
	VariableName     string `json:"variableName"`
	Endpoint         string `json:"endpoint"`
	Method           string `json:"method"`
	Body             string `json:"body"`
	AuthType         string `json:"authType"`
	BearerToken      string `json:"bearerToken"`
	BasicUsername    string `json:"basicUsername"`
	BasicPassword    string `json:"basicPassword"`
	APIKeyHeaderName string `json:"apiKeyHeaderName"`
	APIKeyValue      string `json:"apiKeyValue"`
}

// NewHTTPRequestExecutor creates the executor for HTTP_REQUEST nodes. The
// client is injected so tests can point it at a local server.
func NewHTTPRequestExecutor(client *http.Client, renderer *template.Renderer) engine.Executor {
	if client == nil {
		client = http.DefaultClient
	}
	channel := realtime.ChannelFor(string(workflow.NodeTypeHTTPRequest))

	return func(ctx context.Context, p engine.Params) (engine.Context, error) {
		publishStatus(p, channel, realtime.StatusLoading)

		var cfg httpRequestConfig
		if err := decodeConfig(workflow.NodeTypeHTTPRequest, p.Data, &cfg); err != nil {
			return nil, failConfig(p, channel, err.Error())
		}
		if cfg.Endpoint == "" {
			return nil, failConfig(p, channel, "endpoint is required")
		}
		if cfg.VariableName == "" {
			return nil, failConfig(p, channel, "variable name is required")
		}
		if cfg.Method == "" {
			return nil, failConfig(p, channel, "method is required")
		}

		result, err := p.Step.Run(ctx, fmt.Sprintf("http-request-%s", p.NodeID), func(stepCtx context.Context) (interface{}, error) {
			return performRequest(stepCtx, client, renderer, cfg, p.Context)
		})
		if err != nil {
			publishStatus(p, channel, realtime.StatusError)
			return nil, err
		}

		publishStatus(p, channel, realtime.StatusSuccess)
		return engine.Context{cfg.VariableName: result}, nil
	}
}

// performRequest renders the templated fields, executes the call, and
// returns the response envelope {status, statusText, data}.
func performRequest(ctx context.Context, client *http.Client, renderer *template.Renderer, cfg httpRequestConfig, execCtx engine.Context) (interface{}, error) {
	endpoint, err := renderer.Render(cfg.Endpoint, execCtx)
	if err != nil {
		return nil, conduiterrors.WrapNonRetriablef(err, "failed to render endpoint")
	}

	var body io.Reader
	hasBody := false
	if cfg.Method == http.MethodPost || cfg.Method == http.MethodPut || cfg.Method == http.MethodPatch {
		if cfg.Body != "" {
			rendered, err := renderer.Render(cfg.Body, execCtx)
			if err != nil {
				return nil, conduiterrors.WrapNonRetriablef(err, "failed to render request body")
			}
			if !json.Valid([]byte(rendered)) {
				return nil, conduiterrors.NewNonRetriablef("request body is not valid JSON: %.100s", rendered)
			}
			body = strings.NewReader(rendered)
			hasBody = true
		}
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, endpoint, body)
	if err != nil {
		return nil, conduiterrors.WrapNonRetriablef(err, "invalid request")
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := applyAuth(req, renderer, cfg, execCtx); err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	// JSON responses are decoded so templates downstream can address fields;
	// anything else is kept as text.
	var data interface{} = string(raw)
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err == nil {
			data = decoded
		}
	}

	return map[string]interface{}{
		"status":     resp.StatusCode,
		"statusText": http.StatusText(resp.StatusCode),
		"data":       data,
	}, nil
}

func applyAuth(req *http.Request, renderer *template.Renderer, cfg httpRequestConfig, execCtx engine.Context) error {
	switch cfg.AuthType {
	case "", "NONE":
		return nil
	case "BEARER":
		if cfg.BearerToken == "" {
			return nil
		}
		token, err := renderer.Render(cfg.BearerToken, execCtx)
		if err != nil {
			return conduiterrors.WrapNonRetriablef(err, "failed to render bearer token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case "BASIC":
		if cfg.BasicUsername == "" || cfg.BasicPassword == "" {
			return nil
		}
		username, err := renderer.Render(cfg.BasicUsername, execCtx)
		if err != nil {
			return conduiterrors.WrapNonRetriablef(err, "failed to render basic auth username")
		}
		password, err := renderer.Render(cfg.BasicPassword, execCtx)
		if err != nil {
			return conduiterrors.WrapNonRetriablef(err, "failed to render basic auth password")
		}
		encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		req.Header.Set("Authorization", "Basic "+encoded)
	case "API_KEY":
		if cfg.APIKeyHeaderName == "" || cfg.APIKeyValue == "" {
			return nil
		}
		headerName, err := renderer.Render(cfg.APIKeyHeaderName, execCtx)
		if err != nil {
			return conduiterrors.WrapNonRetriablef(err, "failed to render API key header name")
		}
		value, err := renderer.Render(cfg.APIKeyValue, execCtx)
		if err != nil {
			return conduiterrors.WrapNonRetriablef(err, "failed to render API key value")
		}
		if headerName != "" {
			req.Header.Set(headerName, value)
		}
	default:
		return conduiterrors.NewNonRetriablef("unknown auth type: %s", cfg.AuthType)
	}
	return nil
}
