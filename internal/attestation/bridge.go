package attestation

import (
	"fmt"

	"github.com/hale-labs/hale-oracle/internal/verdict"
)

const AuditedConfidence = 95

// IsReadyForBridge is true only for audited records carrying both outcome and report hashes
func IsReadyForBridge(rec *Record) bool {
	return rec != nil &&
		rec.Status == StatusAudited &&
		rec.OutcomeHash != nil &&
		rec.ReportHash != nil
}

// ToVerdict maps an attestation lifecycle state to a verdict for the destination escrow
func ToVerdict(rec *Record) *verdict.Verdict {
	switch rec.Status {
	case StatusDisputed:
		evidence := "N/A"
		if rec.EvidenceURI != nil {
			evidence = *rec.EvidenceURI
		}
		return &verdict.Verdict{
			Outcome:      verdict.OutcomeFail,
			Confidence:   0,
			Reasoning:    fmt.Sprintf("Attestation disputed. Evidence: %s", evidence),
			ReleaseFunds: false,
			RiskFlags:    []string{verdict.FlagDisputed},
		}
	case StatusAudited:
		return &verdict.Verdict{
			Outcome:      verdict.OutcomePass,
			Confidence:   AuditedConfidence,
			Reasoning:    fmt.Sprintf("Verified on Solana. Intent: %s..., Outcome: %s...", prefix(rec.IntentHashHex(), 16), prefix(orNA(hashHex(rec.OutcomeHash)), 16)),
			ReleaseFunds: true,
			RiskFlags:    []string{},
		}
	default:
		return &verdict.Verdict{
			Outcome:      verdict.OutcomePending,
			Confidence:   0,
			Reasoning:    fmt.Sprintf("Attestation not yet audited. Status: %s", rec.Status),
			ReleaseFunds: false,
			RiskFlags:    []string{verdict.FlagNotAudited},
		}
	}
}

// TransactionID derives the escrow transaction id used for bridged settlements
func TransactionID(rec *Record) string {
	return "solana_" + prefix(rec.IntentHashHex(), 16)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
