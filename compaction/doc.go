// Package compaction reduces a batch of conversation messages to a smaller
// representation while keeping must-preserve messages verbatim.
//
// # Strategies
//
//   - Simple (StrategySimple): rule-based. Messages carrying an error,
//     decision or critical signal, any tool usage, or very short content are
//     preserved untouched. Key sentences are extracted from the rest and
//     folded into one synthetic summary message.
//
//   - AI summarization (StrategyAISummarization): renders the compressible
//     messages as a transcript and asks a Summarizer for a short prose
//     summary. Any summarizer failure falls back to the simple strategy.
//
//   - Hybrid (StrategyHybrid): simple first; when the result still holds more
//     than HybridMessageThreshold messages and a summarizer is available, the
//     compressible part is summarized instead.
//
// Compression never fails the caller. Every strategy reports
// OriginalTokens, CompressedTokens and CompressionRatio, and CompressedTokens
// never exceeds OriginalTokens.
//
// # Usage
//
//	summarizer := compaction.NewBreakerSummarizer(
//	    compaction.NewAnthropicSummarizer(&client, "claude-3-5-haiku-latest", 1024),
//	    compaction.BreakerSettings{},
//	)
//	c, err := compaction.New(&compaction.Config{Strategy: compaction.StrategyHybrid}, summarizer, logger)
//	if err != nil {
//	    return err
//	}
//	result := c.Compress(ctx, messages)
//
// The package also provides CompressToolResult for JSON-aware truncation of
// tool output and RemoveRedundancy for dropping repeated messages.
package compaction
