package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
)

// OpenAIDecider talks to any OpenAI-compatible chat completions endpoint through
// openai-go, without the eino model layer.
type OpenAIDecider struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

var _ contractx.Decider = (*OpenAIDecider)(nil)

func NewOpenAIDecider(client *openai.Client, cfg Config) (*OpenAIDecider, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	return &OpenAIDecider{
		client:      client,
		model:       cfg.Model,
		temperature: float64(cfg.Temperature),
		maxTokens:   int64(cfg.MaxCompletionToken),
	}, nil
}

func (d *OpenAIDecider) Decide(ctx context.Context, transcript []*schema.Message, tools []*schema.ToolInfo) (contractx.Decision, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            openAIMessages(transcript),
		Model:               d.model,
		Temperature:         openai.Float(d.temperature),
		MaxCompletionTokens: openai.Int(d.maxTokens),
	}
	if len(tools) > 0 {
		defs, err := openAITools(tools)
		if err != nil {
			return contractx.Decision{}, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
		}
		params.Tools = defs
	}

	resp, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: openai chat completion: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return contractx.Decision{}, fmt.Errorf("%w: no choices returned", contractx.ErrSchemaViolation)
	}

	msg := resp.Choices[0].Message
	calls := make([]rawCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, rawCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return toDecision(msg.Content, calls)
}

func openAIMessages(transcript []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript))
	for _, m := range transcript {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			out = append(out, openai.SystemMessage(m.Content))
		case schema.User:
			out = append(out, openai.UserMessage(m.Content))
		case schema.Assistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: calls,
			}})
		case schema.Tool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func openAITools(tools []*schema.ToolInfo) ([]openai.ChatCompletionToolParam, error) {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		params, err := toolParameters(t)
		if err != nil {
			return nil, err
		}
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Desc),
				Parameters:  params,
			},
		})
	}
	return out, nil
}
