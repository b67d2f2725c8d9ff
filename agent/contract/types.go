package contract

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one persisted conversation message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// Principal identifies the authenticated owner of a request.
type Principal struct {
	UserID string `json:"user_id"`
}

// DefaultSessionID is used when a request does not carry its own session id.
func (p Principal) DefaultSessionID() string {
	return strings.TrimSpace(p.UserID) + ":default"
}

// CapabilityCall is a single invocation requested by the model.
type CapabilityCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CapabilityResult answers exactly one CapabilityCall. Either Payload or Error is set.
type CapabilityResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (r CapabilityResult) Failed() bool {
	return r.Error != ""
}

// Decision is what the model returns at each decision point.
// A decision without calls is final.
type Decision struct {
	Text  string           `json:"text,omitempty"`
	Calls []CapabilityCall `json:"calls,omitempty"`
}

func (d Decision) Final() bool {
	return len(d.Calls) == 0
}

type ChatRequest struct {
	Principal Principal `json:"principal"`
	SessionID string    `json:"session_id,omitempty"`
	Query     string    `json:"query"`
}

type IssuedCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type Timing struct {
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Decisions int           `json:"decisions"`
}

type ChatResponse struct {
	Answer      string       `json:"answer"`
	SessionID   string       `json:"session_id"`
	IssuedCalls []IssuedCall `json:"issued_calls"`
	Timing      Timing       `json:"timing"`
	Exhausted   bool         `json:"exhausted,omitempty"`
}

// Exchange is the record handed to a Publisher after a completed request.
type Exchange struct {
	SessionID   string       `json:"session_id"`
	UserID      string       `json:"user_id"`
	Query       string       `json:"query"`
	Answer      string       `json:"answer"`
	IssuedCalls []IssuedCall `json:"issued_calls"`
	Decisions   int          `json:"decisions"`
	Exhausted   bool         `json:"exhausted"`
	ElapsedMS   int64        `json:"elapsed_ms"`
}
