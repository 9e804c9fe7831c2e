package compaction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const objectKeepKeys = 3

// CompressToolResult shortens tool output to roughly maxLen characters.
// JSON arrays keep their first element plus a count marker, JSON objects
// keep their first three keys plus a "+N more" marker, and anything else is
// cut with an ellipsis.
func CompressToolResult(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}

	trimmed := strings.TrimSpace(text)
	var out string
	switch {
	case strings.HasPrefix(trimmed, "[") && json.Valid([]byte(trimmed)):
		out = compressArray(trimmed)
	case strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)):
		out = compressObject(trimmed)
	}
	if out == "" {
		return truncate(text, maxLen)
	}
	if len(out) > maxLen {
		return truncate(out, maxLen)
	}
	return out
}

func compressArray(text string) string {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil || len(items) == 0 {
		return ""
	}
	first := compact(items[0])
	if len(items) == 1 {
		return "[" + first + "]"
	}
	return fmt.Sprintf(`[%s, "... +%d more items"]`, first, len(items)-1)
}

// compressObject walks the object with a token decoder so the kept keys are
// the first ones in source order, not map order.
func compressObject(text string) string {
	dec := json.NewDecoder(strings.NewReader(text))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return ""
	}

	var kept []string
	total := 0
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		key, ok := tok.(string)
		if !ok {
			return ""
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return ""
		}
		total++
		if len(kept) < objectKeepKeys {
			k, _ := json.Marshal(key)
			kept = append(kept, string(k)+": "+compact(value))
		}
	}
	if total > objectKeepKeys {
		kept = append(kept, fmt.Sprintf(`"...": "+%d more keys"`, total-objectKeepKeys))
	}
	return "{" + strings.Join(kept, ", ") + "}"
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// truncate cuts s to at most maxLen bytes including a trailing "...",
// never splitting a UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."[:max(maxLen, 0)]
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
