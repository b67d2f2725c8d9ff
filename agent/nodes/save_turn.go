package orchestratornode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
)

// SaveTurn appends the user query and the final answer to the session history.
func SaveTurn(ctx context.Context, in *GraphState, store contractx.TurnStore) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if err := store.Append(ctx, in.SessionID, contractx.UserTurn(in.Query), contractx.AssistantTurn(in.Answer)); err != nil {
		return nil, fmt.Errorf("save turn session=%s: %w", in.SessionID, err)
	}
	return in, nil
}

// PublishExchange hands the finished exchange to an optional publisher. Publish
// failures are logged and never fail the request.
func PublishExchange(
	ctx context.Context,
	in *GraphState,
	publisher contractx.Publisher,
	nowFn func() time.Time,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if publisher == nil {
		return in, nil
	}

	ex := contractx.Exchange{
		SessionID:   in.SessionID,
		UserID:      in.Principal.UserID,
		Query:       in.Query,
		Answer:      in.Answer,
		IssuedCalls: in.IssuedCalls,
		Decisions:   in.Decisions,
		Exhausted:   in.Terminal == LoopExhausted,
		ElapsedMS:   nowFn().Sub(in.StartedAt).Milliseconds(),
	}
	if err := publisher.Publish(ctx, ex); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("publish exchange failed")
	}
	return in, nil
}

// FinalizeReply shapes the response. A final decision with empty text is passed
// through unchanged.
func FinalizeReply(in *GraphState, nowFn func() time.Time) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	return GraphOutput{Response: contractx.ChatResponse{
		Answer:      strings.TrimSpace(in.Answer),
		SessionID:   in.SessionID,
		IssuedCalls: in.IssuedCalls,
		Timing: contractx.Timing{
			StartedAt: in.StartedAt,
			Elapsed:   nowFn().Sub(in.StartedAt),
			Decisions: in.Decisions,
		},
		Exhausted: in.Terminal == LoopExhausted,
	}}, nil
}
