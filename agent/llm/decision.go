package llm

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
)

// rawCall is a tool call as reported by a provider, before argument decoding.
type rawCall struct {
	ID        string
	Name      string
	Arguments string
}

// toDecision decodes provider tool calls. Calls without an id get a generated one so
// results can always be correlated.
func toDecision(text string, calls []rawCall) (contractx.Decision, error) {
	d := contractx.Decision{Text: strings.TrimSpace(text)}
	if len(calls) == 0 {
		return d, nil
	}

	d.Calls = make([]contractx.CapabilityCall, 0, len(calls))
	for _, c := range calls {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return contractx.Decision{}, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(c.Arguments); raw != "" && raw != "null" {
			if err := sonic.UnmarshalString(raw, &args); err != nil {
				return contractx.Decision{}, fmt.Errorf("%w: invalid arguments for tool=%s: %v", contractx.ErrSchemaViolation, name, err)
			}
		}

		id := strings.TrimSpace(c.ID)
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		d.Calls = append(d.Calls, contractx.CapabilityCall{ID: id, Name: name, Arguments: args})
	}
	return d, nil
}

// toolParameters renders a tool's parameter schema as a JSON-schema object.
func toolParameters(info *schema.ToolInfo) (map[string]any, error) {
	out := map[string]any{"type": "object", "properties": map[string]any{}}
	if info == nil || info.ParamsOneOf == nil {
		return out, nil
	}

	s, err := info.ParamsOneOf.ToOpenAPIV3()
	if err != nil {
		return nil, fmt.Errorf("tool=%s params schema: %w", info.Name, err)
	}
	if s == nil {
		return out, nil
	}
	raw, err := sonic.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("tool=%s marshal params schema: %w", info.Name, err)
	}
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("tool=%s decode params schema: %w", info.Name, err)
	}
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out, nil
}

func requiredFields(params map[string]any) []string {
	switch v := params["required"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
