package oracle

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hale-labs/hale-oracle/internal/judge"
	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/hale-labs/hale-oracle/internal/pipeline"
	"github.com/hale-labs/hale-oracle/internal/sandbox"
	"github.com/hale-labs/hale-oracle/internal/settlement"
	"github.com/hale-labs/hale-oracle/internal/verdict"
	"github.com/stretchr/testify/require"
)

const (
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testSeller     = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	testEscrow     = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

	fibDelivery = "def fib(n): return n if n<=1 else fib(n-1)+fib(n-2)"
)

type judgeMock struct {
	EvaluateFunc        func(ctx context.Context, claim *verdict.Claim) judge.Result
	EvaluateCalledTimes int
}

func (m *judgeMock) Name() string { return "primary" }

func (m *judgeMock) Evaluate(ctx context.Context, claim *verdict.Claim) judge.Result {
	m.EvaluateCalledTimes++
	return m.EvaluateFunc(ctx, claim)
}

type runnerMock struct {
	RunCalledTimes int
}

func (m *runnerMock) Run(ctx context.Context, code string) *sandbox.Result {
	m.RunCalledTimes++
	return &sandbox.Result{Success: true}
}

type fixture struct {
	oracle *Oracle
	client *settlement.EthClientMock
	runner *runnerMock
	judge  *judgeMock
}

func newFixture(t *testing.T, res judge.Result, defaultEscrow string) *fixture {
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	escrowABI, err := settlement.LoadEscrowABI("")
	require.NoError(t, err)

	f := &fixture{
		client: &settlement.EthClientMock{},
		runner: &runnerMock{},
		judge:  &judgeMock{EvaluateFunc: func(ctx context.Context, claim *verdict.Claim) judge.Result { return res }},
	}
	engine := settlement.NewEngine(f.client, key, escrowABI, settlement.Config{DefaultEscrow: defaultEscrow}, &lib.LoggerMock{})
	queue := pipeline.NewFileReviewQueue(t.TempDir(), &lib.LoggerMock{})
	p := pipeline.NewPipeline(f.judge, judge.NewHeuristicJudge(), f.runner, queue, judge.QuotaPolicyPassWithFlag, &lib.LoggerMock{})
	f.oracle = NewOracle(p, engine, &lib.LoggerMock{})
	return f
}

func decodeCall(t *testing.T, data []byte) (string, []interface{}) {
	escrowABI, err := settlement.LoadEscrowABI("")
	require.NoError(t, err)
	method, err := escrowABI.MethodById(data[:4])
	require.NoError(t, err)
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	return method.Name, args
}

func TestProcessDeliveryFibonacciReleases(t *testing.T) {
	f := newFixture(t, judge.Unavailable("judge offline"), testEscrow)
	claim := &verdict.Claim{
		TransactionID:      "tx-fib",
		Terms:              "fibonacci",
		AcceptanceCriteria: []string{"returns the nth fibonacci number"},
		DeliveryContent:    fibDelivery,
	}

	res, err := f.oracle.ProcessDelivery(context.Background(), claim, testSeller, "")
	require.NoError(t, err)

	require.Equal(t, verdict.OutcomePass, res.Outcome)
	require.GreaterOrEqual(t, res.Confidence, 90)
	require.Empty(t, res.RiskFlags)
	require.True(t, res.ReleaseFunds)
	require.Equal(t, 1, f.runner.RunCalledTimes, "code deliveries are cross-checked in the sandbox")

	require.True(t, res.TransactionSuccess)
	require.Equal(t, settlement.ActionRelease, res.SettlementAction)
	require.Empty(t, res.SettlementError)

	sent := f.client.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, res.TxHash, sent[0].Hash().Hex())
	require.Equal(t, common.HexToAddress(testEscrow), *sent[0].To())

	method, args := decodeCall(t, sent[0].Data())
	require.Equal(t, settlement.MethodRelease, method)
	require.Equal(t, common.HexToAddress(testSeller), args[0])

	stats := f.oracle.Stats()
	require.Equal(t, int64(1), stats.TotalTransactions)
	require.Equal(t, int64(1), stats.TotalReleases)
	require.Len(t, stats.Recent, 1)
	require.Equal(t, settlement.AttemptConfirmed, stats.Recent[0].Status)
}

func TestProcessDeliveryMaliciousRefunds(t *testing.T) {
	f := newFixture(t, judge.Unavailable("judge offline"), testEscrow)
	claim := &verdict.Claim{
		TransactionID:   "tx-bad",
		DeliveryContent: "import os\nos.system('rm -rf /') # malicious",
	}

	res, err := f.oracle.ProcessDelivery(context.Background(), claim, testSeller, "")
	require.NoError(t, err)
	require.Equal(t, verdict.OutcomeFail, res.Outcome)
	require.Equal(t, 0, res.Confidence)
	require.False(t, res.ReleaseFunds)
	require.Equal(t, 0, f.runner.RunCalledTimes)

	require.Equal(t, settlement.ActionRefund, res.SettlementAction)
	require.True(t, res.TransactionSuccess)

	method, args := decodeCall(t, f.client.Sent()[0].Data())
	require.Equal(t, settlement.MethodRefund, method)
	require.True(t, strings.HasPrefix(args[1].(string), "VERIFICATION_FAILED: "))
	require.Equal(t, int64(1), f.oracle.Stats().TotalRefunds)
}

func TestProcessDeliveryReviewBandDoesNotSettle(t *testing.T) {
	f := newFixture(t, judge.Ok(&verdict.Verdict{Outcome: verdict.OutcomePass, Confidence: 80, ReleaseFunds: true}), testEscrow)
	claim := &verdict.Claim{TransactionID: "tx-review", DeliveryContent: "An essay on tides."}

	res, err := f.oracle.ProcessDelivery(context.Background(), claim, testSeller, "")
	require.NoError(t, err)
	require.Equal(t, verdict.OutcomePendingReview, res.Outcome)
	require.Equal(t, settlement.ActionNone, res.SettlementAction)
	require.False(t, res.TransactionSuccess)
	require.Empty(t, res.SettlementError)
	require.Empty(t, f.client.Sent())
	require.Equal(t, int64(1), f.oracle.Stats().PendingReviews)
}

func TestProcessDeliveryEscrowPrecedence(t *testing.T) {
	other := "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
	claimEscrow := "0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9"

	f := newFixture(t, judge.Unavailable("offline"), testEscrow)
	claim := &verdict.Claim{TransactionID: "tx-1", DeliveryContent: fibDelivery, EscrowAddress: claimEscrow}

	res, err := f.oracle.ProcessDelivery(context.Background(), claim, testSeller, other)
	require.NoError(t, err)
	require.Equal(t, other, res.ContractAddress)

	res, err = f.oracle.ProcessDelivery(context.Background(), claim, testSeller, "")
	require.NoError(t, err)
	require.Equal(t, claimEscrow, res.ContractAddress)

	sent := f.client.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, common.HexToAddress(other), *sent[0].To())
	require.Equal(t, common.HexToAddress(claimEscrow), *sent[1].To())
}

func TestProcessDeliverySettlementFailureIsReported(t *testing.T) {
	f := newFixture(t, judge.Unavailable("offline"), "")
	claim := &verdict.Claim{TransactionID: "tx-1", DeliveryContent: fibDelivery}

	res, err := f.oracle.ProcessDelivery(context.Background(), claim, testSeller, "")
	require.NoError(t, err)
	require.Equal(t, verdict.OutcomePass, res.Outcome)
	require.False(t, res.TransactionSuccess)
	require.Contains(t, res.SettlementError, settlement.ErrNoContractAddress.Error())
	require.Equal(t, int64(1), f.oracle.Stats().FailedSettlements)
}

func TestProcessDeliveryWithoutSeller(t *testing.T) {
	f := newFixture(t, judge.Unavailable("offline"), testEscrow)
	claim := &verdict.Claim{TransactionID: "tx-1", DeliveryContent: fibDelivery}

	res, err := f.oracle.ProcessDelivery(context.Background(), claim, "", "")
	require.NoError(t, err)
	require.True(t, res.ReleaseFunds)
	require.False(t, res.TransactionSuccess)
	require.Equal(t, ErrNoSeller.Error(), res.SettlementError)
	require.Empty(t, f.client.Sent())
}

func TestProcessDeliveryInvalidClaim(t *testing.T) {
	f := newFixture(t, judge.Unavailable("offline"), testEscrow)
	_, err := f.oracle.ProcessDelivery(context.Background(), &verdict.Claim{}, testSeller, "")
	require.ErrorIs(t, err, verdict.ErrInvalidClaim)
	require.Equal(t, 0, f.judge.EvaluateCalledTimes)
}

func TestDeliveryResultJSONIsFlat(t *testing.T) {
	res := &DeliveryResult{
		Verdict:            &verdict.Verdict{Outcome: verdict.OutcomePass, Confidence: 99, ReleaseFunds: true, RiskFlags: []string{}},
		TransactionSuccess: true,
		SettlementAction:   settlement.ActionRelease,
		TxHash:             "0xabc",
		SellerAddress:      testSeller,
	}
	raw, err := json.Marshal(res)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	require.Equal(t, "PASS", fields["verdict"])
	require.Equal(t, true, fields["release_funds"])
	require.Equal(t, true, fields["transaction_success"])
	require.Equal(t, "0xabc", fields["tx_hash"])
	require.Equal(t, testSeller, fields["seller_address"])
}
