package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client wraps the Anthropic API behind the package's message model. It is
// constructed once per run and injected into every component that needs
// completions; there is no process-wide shared instance.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
	retry RetryPolicy
}

// NewClient creates a completion client. SDK-internal retries are disabled;
// RetryPolicy is the single retry layer for completion calls.
func NewClient(apiKey, model string, retry RetryPolicy) *Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
		retry: retry,
	}
}

// Complete performs one completion call with retry/backoff on rate-limit and
// transient server errors.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: toMessageParams(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = toToolParams(req.Tools)
	}
	if req.ForceToolUse {
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAny: &anthropic.ToolChoiceAnyParam{},
		}
	}

	var msg *anthropic.Message
	err := c.retry.Do(ctx, func() error {
		m, err := c.api.Messages.New(ctx, params)
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	return fromMessage(msg), nil
}

// toMessageParams converts the transcript into SDK message params.
func toMessageParams(messages []Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch b.Kind {
			case BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case BlockToolUse:
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ID, b.Input, b.Name))
			case BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			}
		}
		switch m.Role {
		case RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(blocks...))
		default:
			params = append(params, anthropic.NewUserMessage(blocks...))
		}
	}
	return params
}

// toToolParams converts tool declarations into SDK tool schemas.
func toToolParams(tools []Tool) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: t.Properties,
			Required:   t.Required,
		}
		union := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if union.OfTool != nil {
			union.OfTool.Description = anthropic.Opt(t.Description)
		}
		params = append(params, union)
	}
	return params
}

// fromMessage converts an SDK response into the package's block union.
// Unknown block types (e.g. thinking) are skipped.
func fromMessage(msg *anthropic.Message) *Response {
	resp := &Response{StopReason: StopReason(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Blocks = append(resp.Blocks, TextBlock(block.Text))
		case "tool_use":
			resp.Blocks = append(resp.Blocks, ToolUseBlock(block.ID, block.Name, block.Input))
		}
	}
	return resp
}
