package orchestratornode

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
	toolx "github.com/tanpawarit/portfolio-copilot/agent/tool"
)

// CapabilityBuilder returns the capabilities bound to one principal.
type CapabilityBuilder func(principal contractx.Principal) (*toolx.Registry, error)

func BuildCapabilities(in *GraphState, build CapabilityBuilder) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	reg, err := build(in.Principal)
	if err != nil {
		return nil, fmt.Errorf("build capabilities: %w", err)
	}
	in.Registry = reg
	return in, nil
}

// LoadHistory reads the session history and seeds the transcript with the system
// prompt, prior turns and the new user turn.
func LoadHistory(
	ctx context.Context,
	in *GraphState,
	store contractx.TurnStore,
	systemPrompt string,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	history, err := store.Get(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load history session=%s: %w", in.SessionID, err)
	}
	in.History = history

	transcript := make([]*schema.Message, 0, len(history)+2)
	if systemPrompt != "" {
		transcript = append(transcript, schema.SystemMessage(systemPrompt))
	}
	for _, t := range history {
		switch t.Role {
		case contractx.RoleUser:
			transcript = append(transcript, schema.UserMessage(t.Content))
		case contractx.RoleAssistant:
			transcript = append(transcript, schema.AssistantMessage(t.Content, nil))
		}
	}
	in.Transcript = append(transcript, schema.UserMessage(in.Query))

	zerolog.Ctx(ctx).Debug().
		Int("history_turns", len(history)).
		Msg("session history loaded")
	return in, nil
}
