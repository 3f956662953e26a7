package nodes

import (
	"context"

	"github.com/conduitflow/conduit/pkg/engine"
	conduiterrors "github.com/conduitflow/conduit/pkg/errors"
	"github.com/conduitflow/conduit/pkg/realtime"
	"github.com/conduitflow/conduit/pkg/template"
	"github.com/conduitflow/conduit/pkg/workflow"
)

type setNodeConfig struct {
	VariableName string `json:"variableName"`
	Value        string `json:"value"`
	ValueType    string `json:"valueType"`
}

// NewSetNodeExecutor creates the executor for SET nodes: render the value
// template against the current context, coerce it to the declared type, and
// write it under the configured variable name.
func NewSetNodeExecutor(renderer *template.Renderer) engine.Executor {
	channel := realtime.ChannelFor(string(workflow.NodeTypeSet))

	return func(ctx context.Context, p engine.Params) (engine.Context, error) {
		publishStatus(p, channel, realtime.StatusLoading)

		var cfg setNodeConfig
		if err := decodeConfig(workflow.NodeTypeSet, p.Data, &cfg); err != nil {
			return nil, failConfigResult(p, channel, err.Error())
		}
		if cfg.VariableName == "" {
			return nil, failConfigResult(p, channel, "variable name is required")
		}

		value, err := resolveValue(renderer, cfg, p.Context)
		if err != nil {
			publishResult(p, channel, realtime.StatusError, "", err.Error())
			publishStatus(p, channel, realtime.StatusError)
			return nil, err
		}

		publishResult(p, channel, realtime.StatusSuccess, prettyJSON(map[string]interface{}{
			"variable": cfg.VariableName,
			"value":    value,
		}), "")
		publishStatus(p, channel, realtime.StatusSuccess)

		return engine.Context{cfg.VariableName: value}, nil
	}
}

// resolveValue renders the value template and coerces the result. Coercion
// failures are configuration errors: the same input fails the same way on
// every retry.
func resolveValue(renderer *template.Renderer, cfg setNodeConfig, execCtx engine.Context) (interface{}, error) {
	rendered, err := renderer.Render(cfg.Value, execCtx)
	if err != nil {
		return nil, conduiterrors.WrapNonRetriablef(err, "failed to render value")
	}

	switch cfg.ValueType {
	case "", "string":
		return rendered, nil
	case "number":
		n, err := template.ParseNumber(rendered)
		if err != nil {
			return nil, conduiterrors.WrapNonRetriable(err)
		}
		return n, nil
	case "boolean":
		b, err := template.ParseBoolean(rendered)
		if err != nil {
			return nil, conduiterrors.WrapNonRetriable(err)
		}
		return b, nil
	case "json":
		v, err := template.ParseJSON(rendered)
		if err != nil {
			return nil, conduiterrors.WrapNonRetriable(err)
		}
		return v, nil
	default:
		return nil, conduiterrors.NewNonRetriablef("unknown value type: %q", cfg.ValueType)
	}
}
