package nodes

import (
	"context"
	"fmt"

	"github.com/conduitflow/conduit/pkg/engine"
	"github.com/conduitflow/conduit/pkg/realtime"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// Trigger executors are pass-throughs: the ingress that dispatched the event
// already seeded the execution context with the normalized payload. Each one
// wraps the identity operation in a durable step so replay accounting covers
// the trigger node like any other, publishes its lifecycle, and contributes
// nothing new to the context.

// NewManualTriggerExecutor creates the executor for manual trigger nodes.
// It also serves the initial placeholder node a new workflow starts with.
func NewManualTriggerExecutor() engine.Executor {
	channel := realtime.ChannelFor(string(workflow.NodeTypeManualTrigger))
	return func(ctx context.Context, p engine.Params) (engine.Context, error) {
		publishStatus(p, channel, realtime.StatusLoading)
		publishStatus(p, channel, realtime.StatusSuccess)
		return engine.Context{}, nil
	}
}

// NewWebhookTriggerExecutor creates the executor for webhook trigger nodes.
// It publishes the seeded webhook payload on its result topic so the editor
// can show what the delivery contained.
func NewWebhookTriggerExecutor() engine.Executor {
	channel := realtime.ChannelFor(string(workflow.NodeTypeWebhookTrigger))
	return func(ctx context.Context, p engine.Params) (engine.Context, error) {
		publishStatus(p, channel, realtime.StatusLoading)

		_, err := p.Step.Run(ctx, fmt.Sprintf("webhook-trigger-%s", p.NodeID), func(context.Context) (interface{}, error) {
			return p.Context["webhook"], nil
		})
		if err != nil {
			publishResult(p, channel, realtime.StatusError, "", err.Error())
			publishStatus(p, channel, realtime.StatusError)
			return nil, err
		}

		publishResult(p, channel, realtime.StatusSuccess, prettyJSON(p.Context["webhook"]), "")
		publishStatus(p, channel, realtime.StatusSuccess)
		return engine.Context{}, nil
	}
}

// NewTelegramTriggerExecutor creates the executor for Telegram trigger nodes.
func NewTelegramTriggerExecutor() engine.Executor {
	channel := realtime.ChannelFor(string(workflow.NodeTypeTelegramTrigger))
	return func(ctx context.Context, p engine.Params) (engine.Context, error) {
		publishStatus(p, channel, realtime.StatusLoading)

		if _, err := p.Step.Run(ctx, fmt.Sprintf("telegram-trigger-%s", p.NodeID), func(context.Context) (interface{}, error) {
			return p.Context["telegram"], nil
		}); err != nil {
			publishStatus(p, channel, realtime.StatusError)
			return nil, err
		}

		publishStatus(p, channel, realtime.StatusSuccess)
		return engine.Context{}, nil
	}
}
