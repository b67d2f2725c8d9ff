package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
	dispatchx "github.com/tanpawarit/portfolio-copilot/agent/dispatch"
)

// MaxDecisions caps how many times the loop consults the model in one request.
const MaxDecisions = 3

const FallbackMessage = "I wasn't able to finish answering that within the allowed number of steps. " +
	"Please rephrase or narrow your question, for example by asking about one account or one metric."

type LoopState int

const (
	LoopStart LoopState = iota
	LoopDeciding
	LoopDispatching
	LoopAnswered
	LoopExhausted
)

func (s LoopState) String() string {
	switch s {
	case LoopStart:
		return "start"
	case LoopDeciding:
		return "deciding"
	case LoopDispatching:
		return "dispatching"
	case LoopAnswered:
		return "answered"
	case LoopExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Dispatcher interface {
	Dispatch(ctx context.Context, calls []contractx.CapabilityCall, reg dispatchx.Lookup) []contractx.CapabilityResult
}

type LoopDeps struct {
	Decider    contractx.Decider
	Dispatcher Dispatcher
}

// RunLoop drives Deciding/Dispatching until the model answers or MaxDecisions
// decisions have all asked for more calls.
func RunLoop(ctx context.Context, in *GraphState, deps LoopDeps) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	logger := zerolog.Ctx(ctx)

	tools := in.Registry.Descriptors()
	transcript := in.Transcript
	var decision contractx.Decision

	state := LoopDeciding
	for state != LoopAnswered && state != LoopExhausted {
		switch state {
		case LoopDeciding:
			if in.Decisions >= MaxDecisions {
				state = LoopExhausted
				continue
			}

			d, err := deps.Decider.Decide(ctx, transcript, tools)
			in.Decisions++
			if err != nil {
				if !errors.Is(err, contractx.ErrModelInvoke) {
					err = fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
				}
				return nil, err
			}
			decision = d

			logger.Debug().
				Int("decision", in.Decisions).
				Int("calls", len(decision.Calls)).
				Msg("model decided")

			if decision.Final() {
				in.Answer = decision.Text
				state = LoopAnswered
				continue
			}
			state = LoopDispatching

		case LoopDispatching:
			for _, c := range decision.Calls {
				in.IssuedCalls = append(in.IssuedCalls, contractx.IssuedCall{Name: c.Name, Arguments: c.Arguments})
			}
			results := deps.Dispatcher.Dispatch(ctx, decision.Calls, in.Registry)

			transcript = append(transcript, decisionMessage(decision))
			for _, r := range results {
				transcript = append(transcript, resultMessage(r))
			}
			state = LoopDeciding
		}
	}

	if state == LoopExhausted {
		in.Answer = FallbackMessage
		logger.Warn().
			Int("decisions", in.Decisions).
			Int("issued_calls", len(in.IssuedCalls)).
			Msg("decision budget exhausted")
	}
	in.Terminal = state
	in.Transcript = transcript
	return in, nil
}

func decisionMessage(d contractx.Decision) *schema.Message {
	calls := make([]schema.ToolCall, 0, len(d.Calls))
	for _, c := range d.Calls {
		args, err := sonic.MarshalString(c.Arguments)
		if err != nil {
			args = "{}"
		}
		calls = append(calls, schema.ToolCall{
			ID:       c.ID,
			Type:     "function",
			Function: schema.FunctionCall{Name: c.Name, Arguments: args},
		})
	}
	return schema.AssistantMessage(d.Text, calls)
}

type resultEnvelope struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// resultMessage renders a capability result for the model. Failures are sent as an
// error field so the model can explain them.
func resultMessage(r contractx.CapabilityResult) *schema.Message {
	env := resultEnvelope{Result: r.Payload}
	if r.Failed() {
		env = resultEnvelope{Error: r.Error}
	}
	body, err := sonic.MarshalString(env)
	if err != nil {
		body = fmt.Sprintf(`{"error":%q}`, "result could not be encoded: "+err.Error())
	}
	return schema.ToolMessage(body, r.CallID)
}
