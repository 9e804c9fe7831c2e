package tool

import "context"

type contextKey struct{}

// CallInfo describes the invocation a tool is serving. The executor
// attaches it to the context passed to Execute.
type CallInfo struct {
	ToolUseID      string
	ConversationID string
	UserID         string
	Iteration      int
}

// WithCallInfo attaches info to ctx.
func WithCallInfo(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, contextKey{}, info)
}

// CallInfoFromContext returns the invocation info attached by the executor.
func CallInfoFromContext(ctx context.Context) (CallInfo, bool) {
	info, ok := ctx.Value(contextKey{}).(CallInfo)
	return info, ok
}
