package judge

import (
	"context"
	"errors"

	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/hale-labs/hale-oracle/internal/verdict"
)

var ErrJudgeUnavailable = errors.New("judge unavailable")

type ResultKind int

const (
	ResultOK ResultKind = iota
	ResultUnavailable
	ResultRateLimited
	ResultMalformed
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "OK"
	case ResultUnavailable:
		return "UNAVAILABLE"
	case ResultRateLimited:
		return "RATE_LIMITED"
	case ResultMalformed:
		return "MALFORMED"
	}
	return "UNKNOWN"
}

// Result is the tagged outcome of a single judge invocation. Verdict is set only for ResultOK
type Result struct {
	Kind    ResultKind
	Verdict *verdict.Verdict
	Reason  string
}

func Ok(v *verdict.Verdict) Result {
	return Result{Kind: ResultOK, Verdict: v}
}

func Unavailable(reason string) Result {
	return Result{Kind: ResultUnavailable, Reason: reason}
}

func RateLimited(reason string) Result {
	return Result{Kind: ResultRateLimited, Reason: reason}
}

func Malformed(reason string) Result {
	return Result{Kind: ResultMalformed, Reason: reason}
}

func (r Result) IsOK() bool {
	return r.Kind == ResultOK && r.Verdict != nil
}

// Err describes a non-OK result, nil otherwise
func (r Result) Err() error {
	if r.IsOK() {
		return nil
	}
	return lib.WrapError(ErrJudgeUnavailable, errors.New(r.Kind.String()+": "+r.Reason))
}

type Judge interface {
	Name() string
	Evaluate(ctx context.Context, claim *verdict.Claim) Result
}

// QuotaPolicy decides what a rate limited primary judge turns into
type QuotaPolicy string

const (
	// QuotaPolicyPassWithFlag keeps the flow available: a conservative PASS carrying
	// the QUOTA_EXCEEDED_FALLBACK risk flag
	QuotaPolicyPassWithFlag QuotaPolicy = "pass_with_flag"
	// QuotaPolicyFallback routes rate limited requests to the deterministic heuristic
	QuotaPolicyFallback QuotaPolicy = "fallback"
)

const quotaFallbackReasoning = "MOCK MODE (Fallback): Verification passed. The live Gemini API quota was exceeded, so this mock verdict was generated to allow the flow to continue."

func QuotaFallbackVerdict(txID string) *verdict.Verdict {
	return &verdict.Verdict{
		TransactionID: txID,
		Outcome:       verdict.OutcomePass,
		Confidence:    99,
		Reasoning:     quotaFallbackReasoning,
		ReleaseFunds:  true,
		RiskFlags:     []string{verdict.FlagQuotaExceededFallback},
	}
}
