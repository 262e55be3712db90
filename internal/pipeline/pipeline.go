package pipeline

import (
	"context"

	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/judge"
	"github.com/hale-labs/hale-oracle/internal/sandbox"
	"github.com/hale-labs/hale-oracle/internal/verdict"
)

const (
	ReviewBandLow  = 70
	ReviewBandHigh = 90 // exclusive

	SandboxFailureConfidenceCap = 40

	sandboxFailurePrefix = "SANDBOX FAILURE: The code failed to execute or contained errors: "
	reviewQueuedNote     = "STATUS: Queued for manual forensic audit due to borderline confidence score."
)

// Pipeline turns a claim into exactly one verdict: primary judge, fallback judge,
// sandbox cross-check and the human review gate, in that order
type Pipeline struct {
	primary     judge.Judge // nil when no primary judge is configured
	fallback    judge.Judge
	runner      sandbox.Runner
	reviews     ReviewQueue
	quotaPolicy judge.QuotaPolicy
	log         interfaces.ILogger
}

func NewPipeline(primary judge.Judge, fallback judge.Judge, runner sandbox.Runner, reviews ReviewQueue, quotaPolicy judge.QuotaPolicy, log interfaces.ILogger) *Pipeline {
	if quotaPolicy == "" {
		quotaPolicy = judge.QuotaPolicyPassWithFlag
	}
	return &Pipeline{
		primary:     primary,
		fallback:    fallback,
		runner:      runner,
		reviews:     reviews,
		quotaPolicy: quotaPolicy,
		log:         log,
	}
}

// Verify returns an error only for an invalid claim, every dependency failure degrades the verdict instead
func (p *Pipeline) Verify(ctx context.Context, claim *verdict.Claim) (*verdict.Verdict, error) {
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	p.log.Infof("analyzing delivery for transaction %s", claim.TransactionID)

	v := p.judgeStage(ctx, claim)
	v.TransactionID = claim.TransactionID
	v.Normalize()

	p.sandboxStage(ctx, claim, v)
	p.reviewStage(ctx, claim, v)

	p.log.Infof("verdict for %s: %s, confidence %d, release %t, flags %v",
		claim.TransactionID, v.Outcome, v.Confidence, v.ReleaseFunds, v.RiskFlags)
	return v, nil
}

func (p *Pipeline) judgeStage(ctx context.Context, claim *verdict.Claim) *verdict.Verdict {
	if p.primary == nil {
		p.log.Debugf("no primary judge configured, using %s", p.fallback.Name())
		return p.runFallback(ctx, claim)
	}

	res := p.primary.Evaluate(ctx, claim)
	switch res.Kind {
	case judge.ResultOK:
		if res.IsOK() {
			return res.Verdict
		}
	case judge.ResultRateLimited:
		if p.quotaPolicy == judge.QuotaPolicyPassWithFlag {
			p.log.Warnf("%s judge rate limited, substituting quota fallback verdict", p.primary.Name())
			return judge.QuotaFallbackVerdict(claim.TransactionID)
		}
	}

	p.log.Warnf("%s judge result %s (%s), falling back to %s", p.primary.Name(), res.Kind, res.Reason, p.fallback.Name())
	return p.runFallback(ctx, claim)
}

func (p *Pipeline) runFallback(ctx context.Context, claim *verdict.Claim) *verdict.Verdict {
	res := p.fallback.Evaluate(ctx, claim)
	if res.IsOK() {
		return res.Verdict
	}
	// a fallback judge that cannot decide is treated as the heuristic
	return judge.Heuristic(claim.DeliveryContent)
}

func (p *Pipeline) sandboxStage(ctx context.Context, claim *verdict.Claim, v *verdict.Verdict) {
	if p.runner == nil || v.Outcome != verdict.OutcomePass || !sandbox.IsExecutable(claim.DeliveryContent) {
		return
	}

	p.log.Infof("pass detected for code delivery %s, running sandboxed sanity check", claim.TransactionID)
	res := p.runner.Run(ctx, claim.DeliveryContent)
	if res.Success {
		p.log.Debugf("sandbox check passed for %s", claim.TransactionID)
		return
	}

	p.log.Warnf("sandbox failure for %s (%s): %s", claim.TransactionID, res.Failure, res.Error)
	v.Outcome = verdict.OutcomeFail
	v.ReleaseFunds = false
	if v.Confidence > SandboxFailureConfidenceCap {
		v.Confidence = SandboxFailureConfidenceCap
	}
	v.AppendReasoning(sandboxFailurePrefix + res.Error)
	v.AddRiskFlag(verdict.FlagRuntimeError)
}

func (p *Pipeline) reviewStage(ctx context.Context, claim *verdict.Claim, v *verdict.Verdict) {
	if v.Outcome != verdict.OutcomePass || v.Confidence < ReviewBandLow || v.Confidence >= ReviewBandHigh {
		return
	}

	p.log.Infof("borderline confidence %d%% for %s, queuing for human review", v.Confidence, claim.TransactionID)
	v.Outcome = verdict.OutcomePendingReview
	v.ReleaseFunds = false
	v.AppendReasoning(reviewQueuedNote)

	if p.reviews == nil {
		return
	}
	if _, err := p.reviews.Enqueue(ctx, claim, v); err != nil {
		p.log.Errorf("failed to enqueue review for %s: %s", claim.TransactionID, err)
	}
}

func (p *Pipeline) Reviews(ctx context.Context) ([]*Review, error) {
	if p.reviews == nil {
		return []*Review{}, nil
	}
	return p.reviews.List(ctx)
}
