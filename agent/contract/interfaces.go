package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Decider is the language model collaborator.
type Decider interface {
	Decide(ctx context.Context, transcript []*schema.Message, tools []*schema.ToolInfo) (Decision, error)
}

// TurnStore holds bounded per-session conversation history.
type TurnStore interface {
	Get(ctx context.Context, sessionID string) ([]Turn, error)
	Append(ctx context.Context, sessionID string, user Turn, assistant Turn) error
}

// Publisher receives completed exchanges for offline evaluation.
type Publisher interface {
	Publish(ctx context.Context, ex Exchange) error
}
