package oracle

import (
	"context"
	"errors"

	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/hale-labs/hale-oracle/internal/settlement"
	"github.com/hale-labs/hale-oracle/internal/verdict"
	"go.uber.org/atomic"
)

var ErrNoSeller = errors.New("no seller address, settlement skipped")

type Verifier interface {
	Verify(ctx context.Context, claim *verdict.Claim) (*verdict.Verdict, error)
}

type Settler interface {
	Settle(ctx context.Context, v *verdict.Verdict, seller string, txID string, escrow string) (*settlement.Result, error)
	History() *settlement.History
}

// DeliveryResult is the verdict augmented with the settlement outcome
type DeliveryResult struct {
	*verdict.Verdict
	TransactionSuccess bool              `json:"transaction_success"`
	SettlementAction   settlement.Action `json:"settlement_action"`
	TxHash             string            `json:"tx_hash,omitempty"`
	SettlementError    string            `json:"settlement_error,omitempty"`
	SellerAddress      string            `json:"seller_address"`
	ContractAddress    string            `json:"contract_address,omitempty"`
}

type Stats struct {
	TotalTransactions int64                    `json:"totalTransactions"`
	TotalReleases     int64                    `json:"totalReleases"`
	TotalRefunds      int64                    `json:"totalRefunds"`
	PendingReviews    int64                    `json:"pendingReviews"`
	FailedSettlements int64                    `json:"failedSettlements"`
	Recent            []settlement.HistoryItem `json:"recentTransactions"`
}

// Oracle runs the verify then settle workflow for submitted deliveries
type Oracle struct {
	verifier Verifier
	settler  Settler

	total    *atomic.Int64
	releases *atomic.Int64
	refunds  *atomic.Int64
	reviews  *atomic.Int64
	failed   *atomic.Int64

	log interfaces.ILogger
}

func NewOracle(verifier Verifier, settler Settler, log interfaces.ILogger) *Oracle {
	return &Oracle{
		verifier: verifier,
		settler:  settler,
		total:    atomic.NewInt64(0),
		releases: atomic.NewInt64(0),
		refunds:  atomic.NewInt64(0),
		reviews:  atomic.NewInt64(0),
		failed:   atomic.NewInt64(0),
		log:      log,
	}
}

// ProcessDelivery verifies the claim and settles the verdict against the escrow.
// The escrow is contractAddress, then the claim's escrow, then the configured default.
// Only an invalid claim is returned as an error; settlement failures are reported in the result
func (o *Oracle) ProcessDelivery(ctx context.Context, claim *verdict.Claim, seller string, contractAddress string) (*DeliveryResult, error) {
	v, err := o.verifier.Verify(ctx, claim)
	if err != nil {
		return nil, err
	}
	o.total.Inc()
	if v.Outcome == verdict.OutcomePendingReview {
		o.reviews.Inc()
	}

	target := contractAddress
	if target == "" {
		target = claim.EscrowAddress
	}

	res := &DeliveryResult{
		Verdict:          v,
		SettlementAction: settlement.ActionNone,
		SellerAddress:    seller,
		ContractAddress:  target,
	}

	if seller == "" {
		if v.Outcome == verdict.OutcomeFail || v.ReleaseFunds {
			o.log.Warnf("verdict %s for %s has no seller address, settlement skipped", v.Outcome, claim.TransactionID)
			res.SettlementError = ErrNoSeller.Error()
		}
		return res, nil
	}

	sr, err := o.settler.Settle(ctx, v, seller, claim.TransactionID, target)
	if sr != nil {
		res.SettlementAction = sr.Action
		res.TxHash = sr.TxHash
	}
	if err != nil {
		o.failed.Inc()
		o.log.Errorf("settlement for %s failed: %s", claim.TransactionID, err)
		res.SettlementError = err.Error()
		return res, nil
	}

	switch res.SettlementAction {
	case settlement.ActionRelease:
		o.releases.Inc()
		res.TransactionSuccess = true
	case settlement.ActionRefund:
		o.refunds.Inc()
		res.TransactionSuccess = true
	}

	o.log.Infof("delivery %s processed: %s, action %s, tx %s",
		claim.TransactionID, v.Outcome, res.SettlementAction, lib.Truncate(res.TxHash, 18, "..."))
	return res, nil
}

func (o *Oracle) Stats() Stats {
	return Stats{
		TotalTransactions: o.total.Load(),
		TotalReleases:     o.releases.Load(),
		TotalRefunds:      o.refunds.Load(),
		PendingReviews:    o.reviews.Load(),
		FailedSettlements: o.failed.Load(),
		Recent:            o.settler.History().Recent(),
	}
}
