package window

import (
	"regexp"

	"github.com/youssefsiam38/agentctx/types"
)

var (
	errorPattern    = regexp.MustCompile(`(?i)\b(error|errors|exception|fail(ed|ure|s)?|bug|crash(ed)?|panic|traceback|stack trace)\b`)
	decisionPattern = regexp.MustCompile(`(?i)\b(decid(e|ed|ing)|decision|agreed|we will|we'll|let's go with|chose|choose|going with|plan is)\b`)
	criticalPattern = regexp.MustCompile(`(?i)\b(critical|important|must|never|always|required|urgent|security|password|deadline)\b`)
	mentionPattern  = regexp.MustCompile(`(?i)\b(remember|keep in mind|don't forget|note that|i prefer|my name)\b`)
)

// Signal flags the content features that priority scoring and compression
// care about.
type Signal struct {
	HasError      bool
	HasToolUse    bool
	IsDecision    bool
	IsCritical    bool
	UserMentioned bool
}

// Any reports whether at least one must-keep signal is set. UserMentioned is
// a scoring hint only.
func (s Signal) Any() bool {
	return s.HasError || s.HasToolUse || s.IsDecision || s.IsCritical
}

// Signals classifies a message.
func Signals(m types.Message) Signal {
	text := m.Text()
	s := Signal{
		HasError:   m.HasToolError() || errorPattern.MatchString(text),
		HasToolUse: m.HasToolUse(),
		IsDecision: decisionPattern.MatchString(text),
		IsCritical: criticalPattern.MatchString(text) || (m.Importance != nil && *m.Importance >= 0.8),
	}
	if m.Role == types.RoleUser {
		s.UserMentioned = mentionPattern.MatchString(text)
	}
	return s
}

// Score weights used by priority retention.
const (
	weightRecency  = 0.40
	weightError    = 0.15
	weightTool     = 0.15
	weightDecision = 0.10
	weightCritical = 0.15
	weightMention  = 0.05
)

// Score computes the retention priority of the message at index in a
// conversation of length total.
func Score(m types.Message, index, total int) float64 {
	s := Signals(m)
	var score float64
	if total > 0 {
		score += weightRecency * float64(index) / float64(total)
	}
	if s.HasError {
		score += weightError
	}
	if s.HasToolUse {
		score += weightTool
	}
	if s.IsDecision {
		score += weightDecision
	}
	if s.IsCritical {
		score += weightCritical
	}
	if s.UserMentioned {
		score += weightMention
	}
	return score
}
