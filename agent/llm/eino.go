package llm

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
)

// EinoDecider asks an eino tool-calling chat model for the next step.
type EinoDecider struct {
	model einomodel.ToolCallingChatModel
}

var _ contractx.Decider = (*EinoDecider)(nil)

func NewEinoDecider(m einomodel.ToolCallingChatModel) (*EinoDecider, error) {
	if m == nil {
		return nil, errors.New("chat model is required")
	}
	return &EinoDecider{model: m}, nil
}

func (d *EinoDecider) Decide(ctx context.Context, transcript []*schema.Message, tools []*schema.ToolInfo) (contractx.Decision, error) {
	m := d.model
	if len(tools) > 0 {
		bound, err := d.model.WithTools(tools)
		if err != nil {
			return contractx.Decision{}, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
		}
		m = bound
	}

	msg, err := m.Generate(ctx, transcript)
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: generate: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return contractx.Decision{}, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}

	calls := make([]rawCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, rawCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return toDecision(msg.Content, calls)
}
