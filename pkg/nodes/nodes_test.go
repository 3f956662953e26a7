package nodes

import (
	"context"
	"errors"

	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/engine"
	"github.com/conduitflow/conduit/pkg/realtime"
)

// publishSpy records every realtime message an executor emits so tests can
// assert the lifecycle ordering.
type publishSpy struct {
	msgs []realtime.Message
}

func (s *publishSpy) publish(m realtime.Message) {
	s.msgs = append(s.msgs, m)
}

func (s *publishSpy) statuses() []realtime.NodeStatus {
	var out []realtime.NodeStatus
	for _, m := range s.msgs {
		if m.Topic == realtime.TopicStatus {
			out = append(out, m.Status)
		}
	}
	return out
}

// staticCreds resolves secrets from a fixed map, ignoring ownership. Missing
// ids resolve as not found.
type staticCreds map[string]string

func (c staticCreds) ResolveSecret(_ context.Context, id types.CredentialID, _ types.UserID) (string, error) {
	secret, ok := c[string(id)]
	if !ok {
		return "", errors.New("credential not found")
	}
	return secret, nil
}

func testParams(nodeID string, data map[string]interface{}, execCtx engine.Context, spy *publishSpy) engine.Params {
	publish := realtime.NopPublish
	if spy != nil {
		publish = spy.publish
	}
	if execCtx == nil {
		execCtx = engine.Context{}
	}
	return engine.Params{
		Data:    data,
		NodeID:  types.NodeID(nodeID),
		UserID:  "user-1",
		Context: execCtx,
		Step:    engine.NewMemoryStepRunner(),
		Publish: publish,
	}
}
