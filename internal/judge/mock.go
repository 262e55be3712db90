package judge

import (
	"context"
	"time"

	"github.com/hale-labs/hale-oracle/internal/verdict"
)

const mockReasoning = "MOCK MODE: Verification passed (simulated). Code structure looks valid."

// MockJudge approves everything after a simulated network delay
type MockJudge struct {
	Delay time.Duration
}

func NewMockJudge(delay time.Duration) *MockJudge {
	return &MockJudge{Delay: delay}
}

func (m *MockJudge) Name() string {
	return "mock"
}

func (m *MockJudge) Evaluate(ctx context.Context, claim *verdict.Claim) Result {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return Unavailable(ctx.Err().Error())
		case <-time.After(m.Delay):
		}
	}

	return Ok(&verdict.Verdict{
		TransactionID: claim.TransactionID,
		Outcome:       verdict.OutcomePass,
		Confidence:    98,
		Reasoning:     mockReasoning,
		ReleaseFunds:  true,
		RiskFlags:     []string{},
	})
}
