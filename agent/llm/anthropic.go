package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
)

// AnthropicDecider uses the Anthropic Messages API.
type AnthropicDecider struct {
	client      *anthropic.Client
	model       anthropic.Model
	temperature float64
	maxTokens   int64
}

var _ contractx.Decider = (*AnthropicDecider)(nil)

// NewAnthropicClient builds a client from the LLM block. BaseURL is only honored when
// it does not point at the OpenRouter default.
func NewAnthropicClient(cfg Config) *anthropic.Client {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if u := strings.TrimSpace(cfg.BaseURL); u != "" && !strings.Contains(u, "openrouter.ai") {
		opts = append(opts, option.WithBaseURL(u))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := anthropic.NewClient(opts...)
	return &client
}

func NewAnthropicDecider(client *anthropic.Client, cfg Config) (*AnthropicDecider, error) {
	if client == nil {
		return nil, errors.New("anthropic client is required")
	}
	return &AnthropicDecider{
		client:      client,
		model:       anthropic.Model(cfg.Model),
		temperature: float64(cfg.Temperature),
		maxTokens:   int64(cfg.MaxCompletionToken),
	}, nil
}

func (d *AnthropicDecider) Decide(ctx context.Context, transcript []*schema.Message, tools []*schema.ToolInfo) (contractx.Decision, error) {
	system, messages := anthropicMessages(transcript)
	params := anthropic.MessageNewParams{
		Model:       d.model,
		Messages:    messages,
		MaxTokens:   d.maxTokens,
		Temperature: anthropic.Float(d.temperature),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		defs, err := anthropicTools(tools)
		if err != nil {
			return contractx.Decision{}, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
		}
		params.Tools = defs
	}

	resp, err := d.client.Messages.New(ctx, params)
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: anthropic messages: %v", contractx.ErrModelInvoke, err)
	}

	var (
		text  strings.Builder
		calls []rawCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			calls = append(calls, rawCall{ID: tu.ID, Name: tu.Name, Arguments: string(tu.Input)})
		}
	}
	return toDecision(text.String(), calls)
}

// anthropicMessages splits system text out and folds consecutive tool results into a
// single user turn, which the Messages API requires after a tool_use turn.
func anthropicMessages(transcript []*schema.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var (
		system   []anthropic.TextBlockParam
		messages []anthropic.MessageParam
		results  []anthropic.ContentBlockParamUnion
	)
	flush := func() {
		if len(results) > 0 {
			messages = append(messages, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, m := range transcript {
		if m == nil {
			continue
		}
		if m.Role != schema.Tool {
			flush()
		}
		switch m.Role {
		case schema.System:
			if m.Content != "" {
				system = append(system, anthropic.TextBlockParam{Text: m.Content})
			}
		case schema.User:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case schema.Assistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any = map[string]any{}
				if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
					if err := sonic.UnmarshalString(raw, &input); err != nil {
						input = map[string]any{}
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}
		case schema.Tool:
			results = append(results, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		}
	}
	flush()
	return system, messages
}

func anthropicTools(tools []*schema.ToolInfo) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		params, err := toolParameters(t)
		if err != nil {
			return nil, err
		}
		input := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: params["properties"],
			Required:   requiredFields(params),
		}
		u := anthropic.ToolUnionParamOfTool(input, t.Name)
		if u.OfTool != nil && t.Desc != "" {
			u.OfTool.Description = anthropic.String(t.Desc)
		}
		out = append(out, u)
	}
	return out, nil
}
