package llm

import "encoding/json"

// Role identifies the author of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind discriminates the content block variants. Transcript processing
// must switch exhaustively on it.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockToolUse
	BlockToolResult
)

// Block is a tagged union of the three content block variants. Only the
// fields of the active variant are meaningful.
type Block struct {
	Kind BlockKind

	// BlockText
	Text string

	// BlockToolUse
	ID    string
	Name  string
	Input json.RawMessage

	// BlockToolResult
	ToolUseID string
	Content   string
	IsError   bool
}

// TextBlock returns a text block.
func TextBlock(text string) Block {
	return Block{Kind: BlockText, Text: text}
}

// ToolUseBlock returns a tool-invocation block.
func ToolUseBlock(id, name string, input json.RawMessage) Block {
	return Block{Kind: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock returns a tool-result block answering the invocation with
// the given tool-use ID.
func ToolResultBlock(toolUseID, content string, isError bool) Block {
	return Block{Kind: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Message is one transcript turn.
type Message struct {
	Role   Role
	Blocks []Block
}

// UserText returns a plain-text user turn.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{TextBlock(text)}}
}

// HasToolResult reports whether any block in the turn is a tool result.
// Trimming logic uses this to keep result turns paired with the assistant
// turn carrying the matching invocation.
func (m Message) HasToolResult() bool {
	for _, b := range m.Blocks {
		if b.Kind == BlockToolResult {
			return true
		}
	}
	return false
}

// Tool declares one callable tool: name, description, and a JSON-object
// input schema.
type Tool struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// StopReason is the completion service's stop-reason enum.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// Request is one completion call.
type Request struct {
	System    string
	Messages  []Message
	Tools     []Tool
	MaxTokens int64

	// ForceToolUse requires the model to invoke some tool this turn.
	ForceToolUse bool
}

// Response is the ordered block list plus stop reason of one completion.
type Response struct {
	Blocks     []Block
	StopReason StopReason
}

// TextContent joins all text blocks of the response, newline-separated.
func (r *Response) TextContent() string {
	var out string
	for _, b := range r.Blocks {
		if b.Kind != BlockText {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += b.Text
	}
	return out
}

// ToolUses returns the tool-invocation blocks in emission order.
func (r *Response) ToolUses() []Block {
	var uses []Block
	for _, b := range r.Blocks {
		if b.Kind == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}
