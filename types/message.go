// Package types holds the conversation data model shared by every agentctx package.
package types

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Role represents the message role
type Role string

const (
	// RoleUser represents a user message
	RoleUser Role = "user"

	// RoleAssistant represents an assistant message
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is a role the reasoning engine accepts.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one entry of a conversation. Messages are treated as immutable
// once appended to a conversation; helpers that "change" a message return a copy.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Blocks carries the raw structured turn (tool_use, tool_result, thinking,
	// image). When empty, Content is sent as a single text block.
	Blocks []ContentBlock `json:"blocks,omitempty"`

	// ToolsUsed is an ordered set of tool names referenced by this message.
	ToolsUsed []string `json:"tools_used,omitempty"`

	// Importance is an optional caller-assigned weight in [0,1].
	Importance *float64 `json:"importance,omitempty"`

	// TokenEstimate overrides the heuristic estimate when set.
	TokenEstimate *int `json:"token_estimate,omitempty"`

	// Compressed marks synthetic messages produced by compression.
	Compressed bool `json:"compressed,omitempty"`

	// SummaryOf describes what a compressed message replaced.
	SummaryOf string `json:"summary_of,omitempty"`
}

// NewUserMessage creates a user message with a fresh ID and the current time.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.New(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an assistant text message.
func NewAssistantMessage(content string) Message {
	return Message{
		ID:        uuid.New(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSummaryMessage creates a synthetic compressed message standing in for
// the messages described by summaryOf. Summaries are user-role so a
// compressed history can still open with a user turn.
func NewSummaryMessage(content, summaryOf string, importance float64) Message {
	m := NewUserMessage(content)
	m.Compressed = true
	m.SummaryOf = summaryOf
	m.Importance = &importance
	return m
}

// WithImportance returns a copy of m with the given importance.
func (m Message) WithImportance(v float64) Message {
	m.Importance = &v
	return m
}

// WithTokenEstimate returns a copy of m carrying a precomputed token estimate.
func (m Message) WithTokenEstimate(n int) Message {
	m.TokenEstimate = &n
	return m
}

// Clone returns a deep copy of m so callers can hold it without sharing slices.
func (m Message) Clone() Message {
	m.Blocks = slices.Clone(m.Blocks)
	m.ToolsUsed = slices.Clone(m.ToolsUsed)
	if m.Importance != nil {
		v := *m.Importance
		m.Importance = &v
	}
	if m.TokenEstimate != nil {
		v := *m.TokenEstimate
		m.TokenEstimate = &v
	}
	return m
}

// WithID returns m unchanged when it has an ID, and a copy with a fresh
// one otherwise.
func (m Message) WithID() Message {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return m
}

// WithIDs returns a copy of msgs where every message carries an ID.
func WithIDs(msgs []Message) []Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.WithID()
	}
	return out
}

// HasToolUse reports whether the message references any tool.
func (m Message) HasToolUse() bool {
	if len(m.ToolsUsed) > 0 {
		return true
	}
	for _, b := range m.Blocks {
		if b.Type == BlockToolUse || b.Type == BlockToolResult {
			return true
		}
	}
	return false
}

// HasToolError reports whether any tool_result block in the message failed.
func (m Message) HasToolError() bool {
	for _, b := range m.Blocks {
		if b.Type == BlockToolResult && b.IsError {
			return true
		}
	}
	return false
}

// Text returns the message's textual content: Content when set, otherwise
// the concatenation of its text and tool_result blocks.
func (m Message) Text() string {
	if m.Content != "" || len(m.Blocks) == 0 {
		return m.Content
	}
	var out []byte
	for _, b := range m.Blocks {
		var s string
		switch b.Type {
		case BlockText:
			s = b.Text
		case BlockToolResult:
			s = b.ToolContent
		default:
			continue
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, s...)
	}
	return string(out)
}

// ContentKeyPrefix is how many normalized characters feed ContentKey.
const ContentKeyPrefix = 100

// NormalizedContent lower-cases the message text and collapses whitespace.
func (m Message) NormalizedContent() string {
	return strings.Join(strings.Fields(strings.ToLower(m.Text())), " ")
}

// ContentKey hashes the first ContentKeyPrefix normalized characters. The
// second return is false when the message has no text to compare.
func (m Message) ContentKey() ([32]byte, bool) {
	norm := m.NormalizedContent()
	if norm == "" {
		return [32]byte{}, false
	}
	if r := []rune(norm); len(r) > ContentKeyPrefix {
		norm = string(r[:ContentKeyPrefix])
	}
	return blake3.Sum256([]byte(norm)), true
}

// BlockType represents the type of content block
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockThinking   BlockType = "thinking"
	BlockImage      BlockType = "image"
)

// ContentBlock is one structured piece of a message.
type ContentBlock struct {
	Type BlockType `json:"type"`

	Text string `json:"text,omitempty"`

	// tool_use
	ToolUseID string          `json:"id,omitempty"`
	ToolName  string          `json:"name,omitempty"`
	ToolInput json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolResultID string `json:"tool_use_id,omitempty"`
	ToolContent  string `json:"content,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`

	// thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// image
	Image *ImageSource `json:"source,omitempty"`
}

// ImageSource is a base64 image attachment.
type ImageSource struct {
	MediaType string `json:"media_type"` // "image/jpeg", "image/png", etc.
	Data      string `json:"data"`
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock creates a tool_use content block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// ToolResultBlock creates a tool_result content block answering the tool_use with id.
func ToolResultBlock(id, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolResultID: id, ToolContent: content, IsError: isError}
}

// ThinkingBlock creates a thinking block. The signature must be echoed back
// unchanged for the engine to accept the block on later turns.
func ThinkingBlock(thinking, signature string) ContentBlock {
	return ContentBlock{Type: BlockThinking, Thinking: thinking, Signature: signature}
}

// ImageBlock creates a base64 image block.
func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Type: BlockImage, Image: &ImageSource{MediaType: mediaType, Data: data}}
}
