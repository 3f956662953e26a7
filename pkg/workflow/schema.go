package workflow

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Per-node-type JSON Schemas for configData. Executors still perform their
// own required-field checks (so status publication happens before failing),
// but the schemas catch structurally malformed config up front and document
// the contract for each node type.
var configSchemas = map[NodeType]string{
	NodeTypeInitial:         `{"type": "object"}`,
	NodeTypeManualTrigger:   `{"type": "object"}`,
	NodeTypeWebhookTrigger:  `{"type": "object", "properties": {"method": {"type": "string", "enum": ["GET", "POST"]}}}`,
	NodeTypeTelegramTrigger: `{"type": "object"}`,
	NodeTypeHTTPRequest: `{
		"type": "object",
		"properties": {
			"variableName": {"type": "string"},
			"endpoint": {"type": "string"},
			"method": {"type": "string", "enum": ["GET", "POST", "PUT", "DELETE", "PATCH", "HEAD"]},
			"body": {"type": "string"},
			"authType": {"type": "string", "enum": ["NONE", "BEARER", "BASIC", "API_KEY"]},
			"bearerToken": {"type": "string"},
			"basicUsername": {"type": "string"},
			"basicPassword": {"type": "string"},
			"apiKeyHeaderName": {"type": "string"},
			"apiKeyValue": {"type": "string"}
		}
	}`,
	NodeTypeOpenRouter: `{
		"type": "object",
		"properties": {
			"variableName": {"type": "string"},
			"credentialId": {"type": "string"},
			"model": {"type": "string"},
			"systemPrompt": {"type": "string"},
			"userPrompt": {"type": "string"}
		}
	}`,
	NodeTypeSet: `{
		"type": "object",
		"properties": {
			"variableName": {"type": "string"},
			"value": {"type": "string"},
			"valueType": {"type": "string", "enum": ["string", "number", "boolean", "json"]}
		}
	}`,
	NodeTypeTelegramMessage: `{
		"type": "object",
		"properties": {
			"variableName": {"type": "string"},
			"credentialId": {"type": "string"},
			"chatId": {"type": "string"},
			"message": {"type": "string"}
		}
	}`,
}

// ValidateConfig checks a node's configData against the schema for its type.
// A schema violation is a configuration error: the run must not proceed past
// it, and retrying cannot help.
func ValidateConfig(t NodeType, config map[string]interface{}) error {
	schema, ok := configSchemas[t]
	if !ok {
		return fmt.Errorf("no config schema for node type %q", t)
	}

	if config == nil {
		config = map[string]interface{}{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("config schema validation failed: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("invalid %s config: %s", t, strings.Join(details, "; "))
	}

	return nil
}
