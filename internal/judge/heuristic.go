package judge

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hale-labs/hale-oracle/internal/verdict"
)

const (
	heuristicBaseScore      = 85
	heuristicNoRiskBonus    = 10
	heuristicStructureBonus = 4
	heuristicPassThreshold  = 90
)

var (
	dangerousPattern   = regexp.MustCompile(`(os\.system|subprocess|eval|exec|shutil\.rmtree)`)
	maliciousKeywords  = []string{"malicious", "hack"}
	structureIndicator = []string{"def ", "import ", "{"}
)

// HeuristicJudge is the deterministic fallback. It never fails
type HeuristicJudge struct{}

func NewHeuristicJudge() *HeuristicJudge {
	return &HeuristicJudge{}
}

func (h *HeuristicJudge) Name() string {
	return "heuristic"
}

func (h *HeuristicJudge) Evaluate(_ context.Context, claim *verdict.Claim) Result {
	v := Heuristic(claim.DeliveryContent)
	v.TransactionID = claim.TransactionID
	return Ok(v)
}

// Heuristic scores delivery content without any external dependency
func Heuristic(content string) *verdict.Verdict {
	flags := []string{}

	if dangerousPattern.MatchString(content) {
		flags = append(flags, verdict.FlagDangerousFunction)
	}

	score := heuristicBaseScore
	if len(flags) == 0 {
		score += heuristicNoRiskBonus
	}
	if len(content) > 10 && containsAny(content, structureIndicator) {
		score += heuristicStructureBonus
	}

	if containsAny(strings.ToLower(content), maliciousKeywords) {
		score = 0
		flags = append(flags, verdict.FlagMaliciousKeyword)
	}

	outcome := verdict.OutcomeFail
	if score >= heuristicPassThreshold && len(flags) == 0 {
		outcome = verdict.OutcomePass
	}

	syntax := "failed"
	if score > 50 {
		syntax = "passed"
	}

	return &verdict.Verdict{
		Outcome:      outcome,
		Confidence:   score,
		Reasoning:    fmt.Sprintf("Deterministic Fallback Audit: %d risks found. Syntax check %s.", len(flags), syntax),
		ReleaseFunds: outcome == verdict.OutcomePass,
		RiskFlags:    flags,
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
