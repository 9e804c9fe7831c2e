package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/youssefsiam38/agentctx/storage"
)

// ErrUserRequired is returned when a ledger operation has no user ID.
var ErrUserRequired = errors.New("budget: user id is required")

// Logger is the logging interface used across agentctx.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Decision is the outcome of a cost check.
type Decision struct {
	Allowed    bool
	Reason     string
	SpentCents float64

	// LimitCents is zero when the user has no ceiling.
	LimitCents float64
}

// CostGuard enforces per-user monthly cost ceilings over a usage ledger.
type CostGuard struct {
	ledger storage.UsageLedger
	logger Logger
	now    func() time.Time
}

// NewCostGuard creates a CostGuard.
func NewCostGuard(ledger storage.UsageLedger, logger Logger) *CostGuard {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CostGuard{ledger: ledger, logger: logger, now: time.Now}
}

// SetClock overrides the clock used to pick the current month.
func (g *CostGuard) SetClock(now func() time.Time) {
	g.now = now
}

// CanUserMakeRequest compares the user's projected monthly spend against
// their ceiling. Users without a ceiling are always allowed. Ledger errors
// are returned together with an allowing decision so the caller may
// proceed.
func (g *CostGuard) CanUserMakeRequest(ctx context.Context, userID string, estimatedCostCents float64) (Decision, error) {
	if userID == "" {
		return Decision{Allowed: true}, ErrUserRequired
	}

	limit, ok, err := g.ledger.GetUserBudget(ctx, userID)
	if err != nil {
		return Decision{Allowed: true, Reason: "budget unavailable"}, fmt.Errorf("get user budget: %w", err)
	}
	if !ok {
		return Decision{Allowed: true, Reason: "no budget configured"}, nil
	}

	spent, err := g.ledger.GetMonthlySpend(ctx, userID, g.now())
	if err != nil {
		return Decision{Allowed: true, Reason: "spend unavailable", LimitCents: limit},
			fmt.Errorf("get monthly spend: %w", err)
	}

	d := Decision{SpentCents: spent, LimitCents: limit}
	if spent+estimatedCostCents > limit {
		d.Reason = fmt.Sprintf("monthly budget exceeded: spent %.2f of %.2f cents, request needs %.2f",
			spent, limit, estimatedCostCents)
		g.logger.Info("request rejected by cost guard",
			"user_id", userID,
			"spent_cents", spent,
			"limit_cents", limit,
			"estimated_cents", estimatedCostCents)
		return d, nil
	}
	d.Allowed = true
	return d, nil
}

// Record adds a completed request to the ledger.
func (g *CostGuard) Record(ctx context.Context, userID string, tokens int, costCents float64) error {
	if userID == "" {
		return ErrUserRequired
	}
	if err := g.ledger.RecordUsage(ctx, userID, tokens, costCents); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// EstimateCostCents prices tokens at costPerMillion dollars per million
// tokens.
func EstimateCostCents(tokens int, costPerMillion float64) float64 {
	return float64(tokens) / 1_000_000 * costPerMillion * 100
}
