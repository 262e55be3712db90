package httphandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hale-labs/hale-oracle/internal/attestation"
	"github.com/hale-labs/hale-oracle/internal/bridge"
	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/hale-labs/hale-oracle/internal/oracle"
	"github.com/hale-labs/hale-oracle/internal/pipeline"
	"github.com/hale-labs/hale-oracle/internal/repositories/mappings"
	"github.com/hale-labs/hale-oracle/internal/settlement"
	"github.com/hale-labs/hale-oracle/internal/verdict"
	"github.com/stretchr/testify/require"
)

const testSeller = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

type oracleMock struct {
	ProcessDeliveryFunc        func(ctx context.Context, claim *verdict.Claim, seller string, contractAddress string) (*oracle.DeliveryResult, error)
	ProcessDeliveryCalledTimes int
	lastClaim                  *verdict.Claim
}

func (m *oracleMock) ProcessDelivery(ctx context.Context, claim *verdict.Claim, seller string, contractAddress string) (*oracle.DeliveryResult, error) {
	m.ProcessDeliveryCalledTimes++
	m.lastClaim = claim
	return m.ProcessDeliveryFunc(ctx, claim, seller, contractAddress)
}

func (m *oracleMock) Stats() oracle.Stats {
	return oracle.Stats{TotalTransactions: 3, TotalReleases: 2, Recent: []settlement.HistoryItem{}}
}

type bridgeMock struct {
	SyncOneFunc    func(ctx context.Context, sourceID string, force bool) (bool, error)
	registered     []string
	lastForce      bool
	injectedStatus attestation.Status
}

func (m *bridgeMock) RegisterMapping(ctx context.Context, sourceID string, seller string, escrow string) (*mappings.Mapping, error) {
	m.registered = append(m.registered, sourceID)
	return mappings.NewMapping(sourceID, seller, escrow, time.Now()), nil
}

func (m *bridgeMock) Mappings() []*mappings.Mapping {
	return []*mappings.Mapping{}
}

func (m *bridgeMock) SyncOne(ctx context.Context, sourceID string, force bool) (bool, error) {
	m.lastForce = force
	return m.SyncOneFunc(ctx, sourceID, force)
}

func (m *bridgeMock) InjectMockAttestation(sourceID string, status attestation.Status) *attestation.Record {
	m.injectedStatus = status
	var h [attestation.HashSize]byte
	return &attestation.Record{Status: status, OutcomeHash: &h, ReportHash: &h}
}

func (m *bridgeMock) Status(ctx context.Context) bridge.Status {
	return bridge.Status{TotalMappings: 1, PendingCount: 1}
}

type monitorMock struct {
	StartFunc        func() error
	StartCalledTimes int
	StopCalledTimes  int
	running          bool
}

func (m *monitorMock) Start() error {
	m.StartCalledTimes++
	if m.StartFunc != nil {
		if err := m.StartFunc(); err != nil {
			return err
		}
	}
	m.running = true
	return nil
}

func (m *monitorMock) Stop(ctx context.Context) error {
	m.StopCalledTimes++
	m.running = false
	return nil
}

func (m *monitorMock) IsRunning() bool {
	return m.running
}

type reviewsMock struct{}

func (m *reviewsMock) Reviews(ctx context.Context) ([]*pipeline.Review, error) {
	return []*pipeline.Review{{ID: "review_tx-1", Status: pipeline.ReviewStatusPending}}, nil
}

type configMock struct{}

func (m *configMock) GetSanitized() interface{} {
	return map[string]string{"environment": "test"}
}

func newTestServer(o *oracleMock, b *bridgeMock) http.Handler {
	return NewHTTPHandler(o, b, &monitorMock{}, &reviewsMock{}, &configMock{}, ServiceInfo{Mode: "test", PrimaryJudge: "mock"}, &lib.LoggerMock{})
}

func do(t *testing.T, h http.Handler, method string, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func passResult(claim *verdict.Claim, seller string) *oracle.DeliveryResult {
	return &oracle.DeliveryResult{
		Verdict:            &verdict.Verdict{TransactionID: claim.TransactionID, Outcome: verdict.OutcomePass, Confidence: 99, ReleaseFunds: true, RiskFlags: []string{}},
		TransactionSuccess: true,
		SettlementAction:   settlement.ActionRelease,
		TxHash:             "0xabc",
		SellerAddress:      seller,
	}
}

func TestVerify(t *testing.T) {
	o := &oracleMock{ProcessDeliveryFunc: func(ctx context.Context, claim *verdict.Claim, seller string, contractAddress string) (*oracle.DeliveryResult, error) {
		return passResult(claim, seller), nil
	}}
	srv := newTestServer(o, &bridgeMock{})

	w := do(t, srv, http.MethodPost, "/api/verify", map[string]interface{}{
		"transaction_id":      "tx-1",
		"contract_terms":      "fibonacci",
		"acceptance_criteria": []string{"correct"},
		"delivery_content":    "def fib(n): return n",
		"seller_address":      testSeller,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get(HeaderRequestID))

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, "PASS", res["verdict"])
	require.Equal(t, true, res["transaction_success"])
	require.Equal(t, "0xabc", res["tx_hash"])
	require.Equal(t, testSeller, res["seller_address"])

	require.Equal(t, "tx-1", o.lastClaim.TransactionID)
	require.Equal(t, []string{"correct"}, o.lastClaim.AcceptanceCriteria)
}

func TestVerifyGeneratesTransactionID(t *testing.T) {
	o := &oracleMock{ProcessDeliveryFunc: func(ctx context.Context, claim *verdict.Claim, seller string, contractAddress string) (*oracle.DeliveryResult, error) {
		return passResult(claim, seller), nil
	}}
	w := do(t, newTestServer(o, &bridgeMock{}), http.MethodPost, "/api/verify", map[string]interface{}{
		"delivery_content": "hello",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Regexp(t, `^tx_[0-9a-f-]{36}$`, o.lastClaim.TransactionID)
}

func TestVerifyBadRequest(t *testing.T) {
	o := &oracleMock{ProcessDeliveryFunc: func(ctx context.Context, claim *verdict.Claim, seller string, contractAddress string) (*oracle.DeliveryResult, error) {
		return nil, verdict.ErrInvalidClaim
	}}
	srv := newTestServer(o, &bridgeMock{})

	w := do(t, srv, http.MethodPost, "/api/verify", map[string]interface{}{"transaction_id": "tx-1"})
	require.Equal(t, http.StatusBadRequest, w.Code, "delivery content is required")

	w = do(t, srv, http.MethodPost, "/api/verify", map[string]interface{}{"delivery_content": "x", "seller_address": "nope"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 0, o.ProcessDeliveryCalledTimes)

	w = do(t, srv, http.MethodPost, "/api/verify", map[string]interface{}{"delivery_content": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 1, o.ProcessDeliveryCalledTimes)
}

func TestHealthAndConfig(t *testing.T) {
	srv := newTestServer(&oracleMock{}, &bridgeMock{})

	w := do(t, srv, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	require.Equal(t, "ok", health["status"])
	require.Equal(t, "mock", health["primary_judge"])

	w = do(t, srv, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"environment":"test"`)
}

func TestMonitorAndReviews(t *testing.T) {
	srv := newTestServer(&oracleMock{}, &bridgeMock{})

	w := do(t, srv, http.MethodGet, "/api/monitor/0xescrow", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var monitor map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &monitor))
	require.Equal(t, float64(3), monitor["totalTransactions"])
	require.Equal(t, "0xescrow", monitor["contractAddress"])

	w = do(t, srv, http.MethodGet, "/api/reviews", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "review_tx-1")
}

func TestBridgeEndpoints(t *testing.T) {
	b := &bridgeMock{SyncOneFunc: func(ctx context.Context, sourceID string, force bool) (bool, error) {
		switch sourceID {
		case "missing":
			return false, bridge.ErrMappingNotFound
		case "broken":
			return false, bridge.ErrFetch
		}
		return true, nil
	}}
	srv := newTestServer(&oracleMock{}, b)

	w := do(t, srv, http.MethodPost, "/api/bridge/mappings", map[string]string{
		"solana_attestation": "Attest1",
		"arc_seller":         testSeller,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, []string{"Attest1"}, b.registered)
	require.Contains(t, w.Body.String(), `"status":"pending"`)

	w = do(t, srv, http.MethodPost, "/api/bridge/mappings", map[string]string{"solana_attestation": "Attest1", "arc_seller": "bad"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/bridge/sync/Attest1?force=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, b.lastForce)
	require.JSONEq(t, `{"solana_attestation":"Attest1","synced":true}`, w.Body.String())

	w = do(t, srv, http.MethodPost, "/api/bridge/sync/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodPost, "/api/bridge/sync/broken", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	w = do(t, srv, http.MethodPost, "/api/bridge/mock/Attest1", map[string]string{"status": "Disputed"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, attestation.StatusDisputed, b.injectedStatus)
	require.Contains(t, w.Body.String(), verdict.FlagDisputed)

	w = do(t, srv, http.MethodPost, "/api/bridge/mock/Attest1", map[string]string{"status": "Unknown"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodGet, "/api/bridge/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"pending_count":1`)
}

func TestVerifyInternalError(t *testing.T) {
	o := &oracleMock{ProcessDeliveryFunc: func(ctx context.Context, claim *verdict.Claim, seller string, contractAddress string) (*oracle.DeliveryResult, error) {
		return nil, errors.New("boom")
	}}
	w := do(t, newTestServer(o, &bridgeMock{}), http.MethodPost, "/api/verify", map[string]string{"delivery_content": "x"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMonitorControl(t *testing.T) {
	monitor := &monitorMock{}
	h := NewHTTPHandler(&oracleMock{}, &bridgeMock{}, monitor, &reviewsMock{}, &configMock{}, ServiceInfo{}, &lib.LoggerMock{})

	w := do(t, h, http.MethodPost, "/api/bridge/monitor/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, monitor.IsRunning())

	monitor.StartFunc = func() error { return lib.ErrTaskRunning }
	w = do(t, h, http.MethodPost, "/api/bridge/monitor/start", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/api/bridge/monitor/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res MonitorStateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.False(t, res.Running)
	require.Equal(t, 2, monitor.StartCalledTimes)
	require.Equal(t, 1, monitor.StopCalledTimes)
}
