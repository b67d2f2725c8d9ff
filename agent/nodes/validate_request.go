package orchestratornode

import (
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
	toolx "github.com/tanpawarit/portfolio-copilot/agent/tool"
)

type GraphInput struct {
	Request contractx.ChatRequest
}

type GraphOutput struct {
	Response contractx.ChatResponse
}

// GraphState is threaded through every node of one chat request.
type GraphState struct {
	Principal contractx.Principal
	SessionID string
	Query     string
	StartedAt time.Time

	Registry   *toolx.Registry
	History    []contractx.Turn
	Transcript []*schema.Message

	Terminal    LoopState
	Decisions   int
	IssuedCalls []contractx.IssuedCall
	Answer      string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	userID := strings.TrimSpace(in.Request.Principal.UserID)
	if userID == "" {
		return nil, contractx.ErrInvalidPrincipal
	}

	query := strings.TrimSpace(in.Request.Query)
	if query == "" {
		return nil, contractx.ErrInvalidMessage
	}

	principal := contractx.Principal{UserID: userID}
	sessionID := strings.TrimSpace(in.Request.SessionID)
	if sessionID == "" {
		sessionID = principal.DefaultSessionID()
	}

	return &GraphState{
		Principal: principal,
		SessionID: sessionID,
		Query:     query,
		StartedAt: nowFn().UTC(),
		Terminal:  LoopStart,
	}, nil
}
