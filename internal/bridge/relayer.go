package bridge

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/hale-labs/hale-oracle/internal/attestation"
	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/hale-labs/hale-oracle/internal/repositories/mappings"
	"github.com/hale-labs/hale-oracle/internal/settlement"
	"github.com/hale-labs/hale-oracle/internal/verdict"
	"go.uber.org/atomic"
)

const (
	DefaultPollInterval = 10 * time.Second

	maxMockAttestations = 256
)

var (
	ErrMappingNotFound = errors.New("bridge mapping not found")
	ErrInvalidMapping  = errors.New("invalid bridge mapping")
	ErrFetch           = errors.New("failed to fetch attestation")
	ErrSettle          = errors.New("failed to settle attestation")
)

// AccountReader reads raw account bytes from the source ledger. A nil slice
// with nil error means the account does not exist
type AccountReader interface {
	GetAccountData(ctx context.Context, pubkey string) ([]byte, error)
	URL() string
}

type Settler interface {
	Settle(ctx context.Context, v *verdict.Verdict, seller string, txID string, escrow string) (*settlement.Result, error)
	CheckConnection(ctx context.Context) error
}

type Status struct {
	TotalMappings      int    `json:"total_mappings"`
	SyncedCount        int    `json:"synced_count"`
	PendingCount       int    `json:"pending_count"`
	SourceRPC          string `json:"solana_rpc"`
	DestinationRPC     string `json:"arc_rpc"`
	DestinationHealthy bool   `json:"arc_oracle_connected"`
	MonitorRunning     bool   `json:"monitor_running"`
	Ticks              int64  `json:"ticks"`
	FailedSyncs        int64  `json:"failed_syncs"`
}

// Relayer settles destination escrows from attestations recorded on the source ledger
type Relayer struct {
	// config
	pollInterval   time.Duration
	destinationRPC string

	// state
	table     map[string]*mappings.Mapping
	synced    lib.Set[string]
	mocks     *lib.BoundMap[*attestation.Record]
	mu        sync.RWMutex
	syncLocks *lib.KeyedMutex
	running   *atomic.Bool
	ticks     *atomic.Int64
	failures  *atomic.Int64

	// deps
	store   mappings.Store
	source  AccountReader
	settler Settler
	log     interfaces.ILogger
}

func NewRelayer(store mappings.Store, source AccountReader, settler Settler, pollInterval time.Duration, destinationRPC string, log interfaces.ILogger) *Relayer {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Relayer{
		pollInterval:   pollInterval,
		destinationRPC: destinationRPC,
		table:          make(map[string]*mappings.Mapping),
		synced:         lib.NewSet[string](),
		mocks:          lib.NewBoundMap[*attestation.Record](maxMockAttestations),
		syncLocks:      lib.NewKeyedMutex(),
		running:        atomic.NewBool(false),
		ticks:          atomic.NewInt64(0),
		failures:       atomic.NewInt64(0),
		store:          store,
		source:         source,
		settler:        settler,
		log:            log,
	}
}

// Load replaces the in-memory table with the persisted mappings
func (r *Relayer) Load(ctx context.Context) error {
	list, err := r.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	table := make(map[string]*mappings.Mapping, len(list))
	for _, m := range list {
		table[m.SourceID] = m
	}

	r.mu.Lock()
	r.table = table
	r.mu.Unlock()

	r.log.Infof("loaded %d bridge mappings", len(table))
	return nil
}

// RegisterMapping creates or overwrites a mapping in pending state
func (r *Relayer) RegisterMapping(ctx context.Context, sourceID string, seller string, escrow string) (*mappings.Mapping, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("%w: attestation id is required", ErrInvalidMapping)
	}
	if seller == "" {
		return nil, fmt.Errorf("%w: seller address is required", ErrInvalidMapping)
	}

	m := mappings.NewMapping(sourceID, seller, escrow, time.Now())

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Put(ctx, m); err != nil {
		return nil, err
	}
	r.table[sourceID] = m
	r.synced.Remove(sourceID)

	r.log.Infof("registered mapping %s -> %s", lib.Truncate(sourceID, 8, "..."), lib.AddrShort(m.Seller))
	return m.Copy(), nil
}

func (r *Relayer) Mappings() []*mappings.Mapping {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*mappings.Mapping, 0, len(r.table))
	for _, m := range r.table {
		res = append(res, m.Copy())
	}
	return res
}

// InjectMockAttestation serves the given record instead of reading the source ledger
func (r *Relayer) InjectMockAttestation(sourceID string, status attestation.Status) *attestation.Record {
	rec := &attestation.Record{
		MetadataURI: "ipfs://mock",
		Status:      status,
		OutcomeHash: repeatedHash(0x11),
		ReportHash:  repeatedHash(0x22),
	}
	if authority := base58.Decode(sourceID); len(authority) == len(rec.Authority) {
		copy(rec.Authority[:], authority)
	}
	_, _ = rand.Read(rec.IntentHash[:])

	r.mu.Lock()
	r.mocks.Put(sourceID, rec)
	r.mu.Unlock()

	r.log.Infof("injected mock attestation %s with status %s", lib.Truncate(sourceID, 8, "..."), status)
	return rec
}

// SyncOne settles one mapping from its attestation. It returns false without error
// when the attestation is missing or not ready yet
func (r *Relayer) SyncOne(ctx context.Context, sourceID string, force bool) (bool, error) {
	unlock, err := r.syncLocks.LockCtx(ctx, sourceID)
	if err != nil {
		return false, err
	}
	defer unlock()

	short := lib.Truncate(sourceID, 8, "...")

	r.mu.RLock()
	alreadySynced := r.synced.Contains(sourceID)
	registered, ok := r.table[sourceID]
	r.mu.RUnlock()

	if alreadySynced && !force {
		r.log.Debugf("already synced: %s", short)
		return true, nil
	}
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrMappingNotFound, sourceID)
	}
	mapping := registered.Copy()

	r.log.Infof("syncing attestation %s", short)

	rec, err := r.fetch(ctx, sourceID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		r.log.Warnf("attestation %s not found on source ledger", short)
		return false, nil
	}

	r.log.Debugf("attestation %s status %s, intent %s", short, rec.Status, lib.Truncate(rec.IntentHashHex(), 16, "..."))

	if !attestation.IsReadyForBridge(rec) {
		r.log.Infof("attestation %s not ready for bridge (status: %s)", short, rec.Status)
		return false, nil
	}

	txID := attestation.TransactionID(rec)
	v := attestation.ToVerdict(rec)
	v.TransactionID = txID

	r.log.Infof("triggering escrow action for %s, seller %s", txID, lib.AddrShort(mapping.Seller))

	res, err := r.settler.Settle(ctx, v, mapping.Seller, txID, mapping.EscrowAddress())
	if err != nil {
		return false, lib.WrapError(ErrSettle, err)
	}

	mapping.MarkSynced(time.Now())

	r.mu.Lock()
	if r.table[sourceID] != registered {
		r.mu.Unlock()
		r.log.Warnf("mapping %s was re-registered during sync, leaving it pending", short)
		return true, nil
	}
	r.synced.Add(sourceID)
	if err := r.store.Put(ctx, mapping); err != nil {
		r.log.Errorf("mapping %s synced but could not be persisted: %s", short, err)
	}
	r.table[sourceID] = mapping
	r.mu.Unlock()

	r.log.Infof("synced %s, action %s, tx %s", short, res.Action, res.TxHash)
	return true, nil
}

func (r *Relayer) fetch(ctx context.Context, sourceID string) (*attestation.Record, error) {
	r.mu.RLock()
	mock, ok := r.mocks.Get(sourceID)
	r.mu.RUnlock()
	if ok {
		return mock, nil
	}

	if r.source == nil {
		return nil, fmt.Errorf("%w: no source ledger configured", ErrFetch)
	}

	data, err := r.source.GetAccountData(ctx, sourceID)
	if err != nil {
		return nil, lib.WrapError(ErrFetch, err)
	}
	if data == nil {
		return nil, nil
	}

	rec, err := attestation.Decode(data)
	if err != nil {
		return nil, lib.WrapError(ErrFetch, err)
	}
	return rec, nil
}

// Run polls pending mappings every interval until ctx is cancelled
func (r *Relayer) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)

	r.log.Infof("bridge monitor started, poll interval %s", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		r.tick(ctx)

		select {
		case <-ctx.Done():
			r.log.Infof("bridge monitor stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Relayer) tick(ctx context.Context) {
	r.ticks.Inc()

	defer func() {
		if rec := recover(); rec != nil {
			r.failures.Inc()
			r.log.Errorf("bridge monitor tick panicked: %v", rec)
		}
	}()

	for _, id := range r.pendingIDs() {
		if ctx.Err() != nil {
			return
		}
		r.log.Debugf("checking pending attestation %s", lib.Truncate(id, 8, "..."))
		if _, err := r.SyncOne(ctx, id, false); err != nil {
			r.failures.Inc()
			r.log.Warnf("sync of %s failed: %s", lib.Truncate(id, 8, "..."), err)
		}
	}
}

func (r *Relayer) pendingIDs() []string {
	list := r.Mappings()
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})

	var ids []string
	for _, m := range list {
		if m.Status == mappings.StatusPending {
			ids = append(ids, m.SourceID)
		}
	}
	return ids
}

func repeatedHash(b byte) *[attestation.HashSize]byte {
	var h [attestation.HashSize]byte
	for i := range h {
		h[i] = b
	}
	return &h
}

func (r *Relayer) Status(ctx context.Context) Status {
	r.mu.RLock()
	st := Status{
		TotalMappings:  len(r.table),
		SyncedCount:    r.synced.Len(),
		DestinationRPC: r.destinationRPC,
		MonitorRunning: r.running.Load(),
		Ticks:          r.ticks.Load(),
		FailedSyncs:    r.failures.Load(),
	}
	for _, m := range r.table {
		if m.Status == mappings.StatusPending {
			st.PendingCount++
		}
	}
	r.mu.RUnlock()

	if r.source != nil {
		st.SourceRPC = r.source.URL()
	}
	st.DestinationHealthy = r.settler.CheckConnection(ctx) == nil
	return st
}
