package verdict

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Outcome string

const (
	OutcomePass          Outcome = "PASS"
	OutcomeFail          Outcome = "FAIL"
	OutcomePending       Outcome = "PENDING"
	OutcomePendingReview Outcome = "PENDING_REVIEW"
)

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomePass, OutcomeFail, OutcomePending, OutcomePendingReview:
		return true
	}
	return false
}

// Risk flags produced by the engine itself. Judges may add free-form flags as well
const (
	FlagRuntimeError          = "RUNTIME_ERROR"
	FlagQuotaExceededFallback = "QUOTA_EXCEEDED_FALLBACK"
	FlagDisputed              = "DISPUTED_ON_SOLANA"
	FlagNotAudited            = "NOT_AUDITED"
	FlagMaliciousKeyword      = "Malicious intent keyword detected"
	FlagDangerousFunction     = "Dangerous Function detected (os/eval/exec)"
)

var (
	ErrInvalidClaim   = errors.New("invalid claim")
	ErrInvalidVerdict = errors.New("invalid verdict")
)

var validate = validator.New()

// Claim is a delivery submitted against a contract. Identity is TransactionID
type Claim struct {
	TransactionID      string   `json:"transaction_id"      validate:"required"`
	Terms              string   `json:"contract_terms"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	DeliveryContent    string   `json:"delivery_content"    validate:"required"`
	EscrowAddress      string   `json:"escrow_address,omitempty" validate:"omitempty,eth_addr"`
}

func (c *Claim) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidClaim, err)
	}
	return nil
}

// Verdict is the decision controlling fund movement for a single claim
type Verdict struct {
	TransactionID string   `json:"transaction_id,omitempty"`
	Outcome       Outcome  `json:"verdict"          validate:"required"`
	Confidence    int      `json:"confidence_score" validate:"gte=0,lte=100"`
	Reasoning     string   `json:"reasoning"`
	ReleaseFunds  bool     `json:"release_funds"`
	RiskFlags     []string `json:"risk_flags"`
}

// Validate checks the schema and the fund movement invariants
func (v *Verdict) Validate() error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidVerdict, err)
	}
	if !v.Outcome.IsValid() {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidVerdict, v.Outcome)
	}
	if v.ReleaseFunds && v.Outcome != OutcomePass {
		return fmt.Errorf("%w: release_funds set for outcome %s", ErrInvalidVerdict, v.Outcome)
	}
	return nil
}

// Normalize upper-cases the outcome, clamps confidence, dedupes risk flags and
// clears ReleaseFunds for any outcome other than PASS
func (v *Verdict) Normalize() {
	v.Outcome = Outcome(strings.ToUpper(strings.TrimSpace(string(v.Outcome))))
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 100 {
		v.Confidence = 100
	}
	if v.Outcome != OutcomePass {
		v.ReleaseFunds = false
	}
	if v.RiskFlags == nil {
		v.RiskFlags = []string{}
	}
	v.RiskFlags = dedupe(v.RiskFlags)
}

func (v *Verdict) HasRiskFlag(flag string) bool {
	for _, f := range v.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}

func (v *Verdict) AddRiskFlag(flag string) {
	if !v.HasRiskFlag(flag) {
		v.RiskFlags = append(v.RiskFlags, flag)
	}
}

// AppendReasoning adds a paragraph to the reasoning trail, never overwriting it
func (v *Verdict) AppendReasoning(text string) {
	if v.Reasoning == "" {
		v.Reasoning = text
		return
	}
	v.Reasoning += "\n\n" + text
}

func (v *Verdict) Clone() *Verdict {
	c := *v
	c.RiskFlags = append([]string{}, v.RiskFlags...)
	return &c
}

func dedupe(flags []string) []string {
	seen := make(map[string]struct{}, len(flags))
	res := flags[:0]
	for _, f := range flags {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		res = append(res, f)
	}
	return res
}
