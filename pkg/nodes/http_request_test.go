package nodes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitflow/conduit/pkg/engine"
	conduiterrors "github.com/conduitflow/conduit/pkg/errors"
	"github.com/conduitflow/conduit/pkg/realtime"
	"github.com/conduitflow/conduit/pkg/template"
)

func TestHTTPRequest_GETReturnsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "conduit"}`))
	}))
	defer server.Close()

	exec := NewHTTPRequestExecutor(server.Client(), template.NewRenderer())
	spy := &publishSpy{}
	out, err := exec(context.Background(), testParams("n1", map[string]interface{}{
		"variableName": "resp",
		"endpoint":     server.URL,
		"method":       "GET",
	}, nil, spy))
	require.NoError(t, err)

	envelope, ok := out["resp"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 200, envelope["status"])
	assert.Equal(t, "OK", envelope["statusText"])
	assert.Equal(t, map[string]interface{}{"name": "conduit"}, envelope["data"])

	assert.Equal(t, []realtime.NodeStatus{realtime.StatusLoading, realtime.StatusSuccess}, spy.statuses())
}

func TestHTTPRequest_TemplatedPOSTBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"greeting": "hello world"}`, string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	exec := NewHTTPRequestExecutor(server.Client(), template.NewRenderer())
	out, err := exec(context.Background(), testParams("n1", map[string]interface{}{
		"variableName": "resp",
		"endpoint":     server.URL,
		"method":       "POST",
		"body":         `{"greeting": "hello {{who}}"}`,
	}, engine.Context{"who": "world"}, nil))
	require.NoError(t, err)

	envelope := out["resp"].(map[string]interface{})
	assert.Equal(t, 201, envelope["status"])
}

func TestHTTPRequest_InvalidBodyJSONIsNonRetriable(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	exec := NewHTTPRequestExecutor(server.Client(), template.NewRenderer())
	_, err := exec(context.Background(), testParams("n1", map[string]interface{}{
		"variableName": "resp",
		"endpoint":     server.URL,
		"method":       "POST",
		"body":         `{not json`,
	}, nil, nil))
	require.Error(t, err)
	assert.True(t, conduiterrors.IsNonRetriable(err))
	assert.Equal(t, 0, hits, "invalid body must fail before any request is sent")
}

func TestHTTPRequest_BodyIgnoredForGET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
	}))
	defer server.Close()

	exec := NewHTTPRequestExecutor(server.Client(), template.NewRenderer())
	_, err := exec(context.Background(), testParams("n1", map[string]interface{}{
		"variableName": "resp",
		"endpoint":     server.URL,
		"method":       "GET",
		"body":         `{not json either`,
	}, nil, nil))
	require.NoError(t, err, "a body on a GET node is ignored, not validated")
}

func TestHTTPRequest_AuthHeaders(t *testing.T) {
	tests := []struct {
		name       string
		config     map[string]interface{}
		wantHeader string
		wantValue  string
	}{
		{
			name: "bearer",
			config: map[string]interface{}{
				"authType":    "BEARER",
				"bearerToken": "tok-{{suffix}}",
			},
			wantHeader: "Authorization",
			wantValue:  "Bearer tok-abc",
		},
		{
			name: "basic",
			config: map[string]interface{}{
				"authType":      "BASIC",
				"basicUsername": "alice",
				"basicPassword": "s3cret",
			},
			wantHeader: "Authorization",
			// base64("alice:s3cret")
			wantValue: "Basic YWxpY2U6czNjcmV0",
		},
		{
			name: "api key",
			config: map[string]interface{}{
				"authType":         "API_KEY",
				"apiKeyHeaderName": "X-Api-Key",
				"apiKeyValue":      "key-123",
			},
			wantHeader: "X-Api-Key",
			wantValue:  "key-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get(tt.wantHeader)
			}))
			defer server.Close()

			config := map[string]interface{}{
				"variableName": "resp",
				"endpoint":     server.URL,
				"method":       "GET",
			}
			for k, v := range tt.config {
				config[k] = v
			}

			exec := NewHTTPRequestExecutor(server.Client(), template.NewRenderer())
			_, err := exec(context.Background(), testParams("n1", config, engine.Context{"suffix": "abc"}, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, got)
		})
	}
}

func TestHTTPRequest_MissingRequiredConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		wantMsg string
	}{
		{"no endpoint", map[string]interface{}{"variableName": "r", "method": "GET"}, "endpoint is required"},
		{"no variable name", map[string]interface{}{"endpoint": "http://example.com", "method": "GET"}, "variable name is required"},
		{"no method", map[string]interface{}{"variableName": "r", "endpoint": "http://example.com"}, "method is required"},
	}

	exec := NewHTTPRequestExecutor(nil, template.NewRenderer())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &publishSpy{}
			_, err := exec(context.Background(), testParams("n1", tt.config, nil, spy))
			require.Error(t, err)
			assert.True(t, conduiterrors.IsNonRetriable(err))
			assert.EqualError(t, err, tt.wantMsg)
			assert.Equal(t, []realtime.NodeStatus{realtime.StatusLoading, realtime.StatusError}, spy.statuses())
		})
	}
}

func TestHTTPRequest_NonJSONResponseKeptAsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain text"))
	}))
	defer server.Close()

	exec := NewHTTPRequestExecutor(server.Client(), template.NewRenderer())
	out, err := exec(context.Background(), testParams("n1", map[string]interface{}{
		"variableName": "resp",
		"endpoint":     server.URL,
		"method":       "GET",
	}, nil, nil))
	require.NoError(t, err)

	envelope := out["resp"].(map[string]interface{})
	assert.Equal(t, "plain text", envelope["data"])
}

func TestHTTPRequest_ServerErrorStillProducesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	exec := NewHTTPRequestExecutor(server.Client(), template.NewRenderer())
	out, err := exec(context.Background(), testParams("n1", map[string]interface{}{
		"variableName": "resp",
		"endpoint":     server.URL,
		"method":       "GET",
	}, nil, nil))
	require.NoError(t, err, "a non-2xx response is data, not an executor failure")

	envelope := out["resp"].(map[string]interface{})
	assert.Equal(t, 500, envelope["status"])
	assert.Equal(t, "Internal Server Error", envelope["statusText"])
}
