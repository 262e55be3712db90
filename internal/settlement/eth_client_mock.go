package settlement

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EthClientMock is an in-memory EthereumClient. Any nil ...Func falls back to a node
// that accepts every transaction and mines it immediately with a successful receipt
type EthClientMock struct {
	ChainIDFunc            func(ctx context.Context) (*big.Int, error)
	BlockNumberFunc        func(ctx context.Context) (uint64, error)
	PendingNonceAtFunc     func(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPriceFunc    func(ctx context.Context) (*big.Int, error)
	EstimateGasFunc        func(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransactionFunc    func(ctx context.Context, tx *types.Transaction) error
	TransactionReceiptFunc func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	BlockNumberCalledTimes        int
	PendingNonceAtCalledTimes     int
	EstimateGasCalledTimes        int
	SendTransactionCalledTimes    int
	TransactionReceiptCalledTimes int

	SentTxs []*types.Transaction

	mu    sync.Mutex
	nonce uint64
}

func (m *EthClientMock) ChainID(ctx context.Context) (*big.Int, error) {
	if m.ChainIDFunc != nil {
		return m.ChainIDFunc(ctx)
	}
	return big.NewInt(1337), nil
}

func (m *EthClientMock) BlockNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	m.BlockNumberCalledTimes++
	m.mu.Unlock()

	if m.BlockNumberFunc != nil {
		return m.BlockNumberFunc(ctx)
	}
	return 1, nil
}

func (m *EthClientMock) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	m.mu.Lock()
	m.PendingNonceAtCalledTimes++
	nonce := m.nonce
	m.mu.Unlock()

	if m.PendingNonceAtFunc != nil {
		return m.PendingNonceAtFunc(ctx, account)
	}
	return nonce, nil
}

func (m *EthClientMock) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if m.SuggestGasPriceFunc != nil {
		return m.SuggestGasPriceFunc(ctx)
	}
	return big.NewInt(1_000_000_000), nil
}

func (m *EthClientMock) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (m *EthClientMock) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	m.mu.Lock()
	m.EstimateGasCalledTimes++
	m.mu.Unlock()

	if m.EstimateGasFunc != nil {
		return m.EstimateGasFunc(ctx, call)
	}
	return 100_000, nil
}

func (m *EthClientMock) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	m.mu.Lock()
	m.SendTransactionCalledTimes++
	m.mu.Unlock()

	if m.SendTransactionFunc != nil {
		if err := m.SendTransactionFunc(ctx, tx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.SentTxs = append(m.SentTxs, tx)
	m.nonce = tx.Nonce() + 1
	m.mu.Unlock()
	return nil
}

func (m *EthClientMock) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	m.TransactionReceiptCalledTimes++
	m.mu.Unlock()

	if m.TransactionReceiptFunc != nil {
		return m.TransactionReceiptFunc(ctx, txHash)
	}
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: big.NewInt(1),
	}, nil
}

func (m *EthClientMock) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (m *EthClientMock) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func (m *EthClientMock) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1)}, nil
}

func (m *EthClientMock) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (m *EthClientMock) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (m *EthClientMock) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, ethereum.NotFound
}

func (m *EthClientMock) Sent() []*types.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Transaction{}, m.SentTxs...)
}

var _ EthereumClient = new(EthClientMock)
