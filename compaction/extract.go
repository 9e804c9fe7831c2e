package compaction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/youssefsiam38/agentctx/types"
)

var (
	sentencePattern    = regexp.MustCompile(`[^.!?\n]+[.!?]*`)
	keySentencePattern = regexp.MustCompile(`(?i)\b(decid\w*|decision|agreed|conclu\w*|issue|problem|bug|solution|solved|fix(ed)?|resolv\w*|workaround|important|note|key|result(s|ed)?|because)\b`)
)

// extractKeyPoints pulls key sentences out of msgs, one bullet per sentence.
// A long message without any key sentence contributes its prefix instead.
func (c *Compressor) extractKeyPoints(msgs []types.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary of %d earlier messages:", len(msgs))

	points := 0
	for _, m := range msgs {
		text := strings.TrimSpace(m.Text())
		found := false
		for _, s := range sentencePattern.FindAllString(text, -1) {
			s = strings.TrimSpace(s)
			if s == "" || !keySentencePattern.MatchString(s) {
				continue
			}
			fmt.Fprintf(&b, "\n- %s: %s", m.Role, truncate(s, c.cfg.KeySentenceMaxLen))
			found = true
			points++
		}
		if !found && len([]rune(text)) > c.cfg.LongMessageChars {
			fmt.Fprintf(&b, "\n- %s: %s", m.Role, truncate(text, c.cfg.LongMessagePrefix))
			points++
		}
	}
	if points == 0 {
		b.WriteString(" routine exchange, no key points.")
	}
	return b.String()
}

// RenderTranscript renders msgs as a flat "role: content" transcript for a
// summarizer. Tool calls and results are inlined in brackets.
func RenderTranscript(msgs []types.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(renderContent(m))
	}
	return b.String()
}

func renderContent(m types.Message) string {
	if len(m.Blocks) == 0 {
		return m.Content
	}
	parts := make([]string, 0, len(m.Blocks))
	for _, block := range m.Blocks {
		switch block.Type {
		case types.BlockText:
			if block.Text != "" {
				parts = append(parts, block.Text)
			}
		case types.BlockToolUse:
			parts = append(parts, fmt.Sprintf("[Tool: %s, Input: %s]", block.ToolName, string(block.ToolInput)))
		case types.BlockToolResult:
			label := "Tool Result"
			if block.IsError {
				label = "Tool Error"
			}
			parts = append(parts, fmt.Sprintf("[%s for %s: %s]", label, block.ToolResultID, truncate(block.ToolContent, 500)))
		case types.BlockThinking:
			if block.Thinking != "" {
				parts = append(parts, fmt.Sprintf("[Thinking: %s]", block.Thinking))
			}
		case types.BlockImage:
			parts = append(parts, "[Image]")
		}
	}
	if len(parts) == 0 {
		return m.Content
	}
	return strings.Join(parts, "\n")
}
