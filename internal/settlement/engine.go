package settlement

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/hale-labs/hale-oracle/internal/verdict"
)

type Action string

const (
	ActionRelease Action = "RELEASE"
	ActionRefund  Action = "REFUND"
	ActionNone    Action = "NONE"
)

const (
	DefaultGasLimit              = 200_000
	DefaultGasMarginPercent      = 20
	DefaultReleaseReceiptTimeout = 30 * time.Second
	DefaultRefundReceiptTimeout  = 60 * time.Second

	refundReasonPrefix = "VERIFICATION_FAILED: "
	refundReasonLimit  = 200
	probeTimeout       = 5 * time.Second
)

type Config struct {
	DefaultEscrow         string // used when the caller passes no escrow address
	SkipWait              bool   // return right after submission, for deployments that cannot block
	ReleaseReceiptTimeout time.Duration
	RefundReceiptTimeout  time.Duration
	DefaultGasLimit       uint64
	GasMarginPercent      uint64
	HistorySize           int
}

func (c *Config) SetDefaults() {
	if c.ReleaseReceiptTimeout == 0 {
		c.ReleaseReceiptTimeout = DefaultReleaseReceiptTimeout
	}
	if c.RefundReceiptTimeout == 0 {
		c.RefundReceiptTimeout = DefaultRefundReceiptTimeout
	}
	if c.DefaultGasLimit == 0 {
		c.DefaultGasLimit = DefaultGasLimit
	}
	if c.GasMarginPercent == 0 {
		c.GasMarginPercent = DefaultGasMarginPercent
	}
	if c.HistorySize == 0 {
		c.HistorySize = DefaultHistorySize
	}
}

// Result describes the chain action taken for a verdict. TxHash is set once a
// transaction was submitted, even when the attempt later failed
type Result struct {
	Action      Action `json:"action"`
	TxHash      string `json:"tx_hash,omitempty"`
	Confirmed   bool   `json:"confirmed"`
	BlockNumber uint64 `json:"block_number,omitempty"`
}

// Engine moves escrowed funds according to verdicts. It does not deduplicate:
// settling the same claim twice submits two transactions
type Engine struct {
	cfg     Config
	client  EthereumClient // nil when no chain endpoint is configured
	signer  *ecdsa.PrivateKey
	abi     *abi.ABI
	locks   *lib.KeyedMutex
	history *History
	log     interfaces.ILogger
}

func NewEngine(client EthereumClient, signer *ecdsa.PrivateKey, escrowABI *abi.ABI, cfg Config, log interfaces.ILogger) *Engine {
	cfg.SetDefaults()
	return &Engine{
		cfg:     cfg,
		client:  client,
		signer:  signer,
		abi:     escrowABI,
		locks:   lib.NewKeyedMutex(),
		history: NewHistory(cfg.HistorySize),
		log:     log,
	}
}

// Settle routes FAIL to a refund and releaseFunds to a release. Any other verdict is a successful no-op
func (e *Engine) Settle(ctx context.Context, v *verdict.Verdict, seller string, txID string, escrow string) (*Result, error) {
	switch {
	case v.Outcome == verdict.OutcomeFail:
		e.log.Infof("verdict FAIL for %s, processing refund", txID)
		reason := refundReason(v.Reasoning)
		return e.submit(ctx, ActionRefund, seller, txID, escrow, e.cfg.RefundReceiptTimeout, func(sellerAddr common.Address) []interface{} {
			return []interface{}{sellerAddr, reason}
		})
	case v.ReleaseFunds:
		e.log.Infof("verdict PASS for %s, releasing funds", txID)
		return e.submit(ctx, ActionRelease, seller, txID, escrow, e.cfg.ReleaseReceiptTimeout, func(sellerAddr common.Address) []interface{} {
			return []interface{}{sellerAddr, TransactionIDHash(txID)}
		})
	}

	e.log.Infof("status %s for %s, no automated action taken", v.Outcome, txID)
	return &Result{Action: ActionNone}, nil
}

func (e *Engine) submit(ctx context.Context, action Action, seller string, txID string, escrow string, receiptTimeout time.Duration, args func(common.Address) []interface{}) (*Result, error) {
	res := &Result{Action: action}

	escrowAddr, sellerAddr, err := e.checkPreconditions(ctx, seller, escrow)
	if err != nil {
		e.recordAttempt(action, seller, txID, res, err)
		return res, err
	}

	method := methodName(action)
	e.log.Infof("triggering escrow %s.%s(%s, %s)", lib.AddrShort(escrowAddr.Hex()), method, sellerAddr.Hex(), txID)

	tx, err := e.sendTx(ctx, escrowAddr, method, args(sellerAddr)...)
	if err != nil {
		err = lib.WrapError(ErrSubmit, err)
		e.recordAttempt(action, seller, txID, res, err)
		return res, err
	}
	res.TxHash = tx.Hash().Hex()
	e.log.Infof("%s transaction submitted, hash %s", method, res.TxHash)

	if e.cfg.SkipWait {
		e.log.Infof("skipping receipt wait, returning hash immediately")
		e.recordAttempt(action, seller, txID, res, nil)
		return res, nil
	}

	err = e.waitReceipt(ctx, tx, receiptTimeout, res)
	e.recordAttempt(action, seller, txID, res, err)
	return res, err
}

func (e *Engine) checkPreconditions(ctx context.Context, seller string, escrow string) (escrowAddr common.Address, sellerAddr common.Address, err error) {
	if e.signer == nil {
		return escrowAddr, sellerAddr, ErrNoSigningKey
	}

	if escrow == "" {
		escrow = e.cfg.DefaultEscrow
	}
	if escrow == "" {
		return escrowAddr, sellerAddr, ErrNoContractAddress
	}
	if !common.IsHexAddress(escrow) {
		return escrowAddr, sellerAddr, fmt.Errorf("%w: %q is not an address", ErrNoContractAddress, escrow)
	}
	if !common.IsHexAddress(seller) {
		return escrowAddr, sellerAddr, fmt.Errorf("%w: %q", ErrInvalidSeller, seller)
	}

	// local checks pass before the node is touched
	if e.client == nil {
		return escrowAddr, sellerAddr, ErrChainConnect
	}
	if err := e.CheckConnection(ctx); err != nil {
		e.log.Warnf("connection check failed, attempting transaction anyway: %s", err)
	}

	return common.HexToAddress(escrow), common.HexToAddress(seller), nil
}

// sendTx builds, signs and submits a legacy transaction. Submissions for one signer
// are serialized and the nonce is read from the node right before every attempt
func (e *Engine) sendTx(ctx context.Context, escrowAddr common.Address, method string, params ...interface{}) (*types.Transaction, error) {
	from := crypto.PubkeyToAddress(e.signer.PublicKey)

	unlock, err := e.locks.LockCtx(ctx, from.Hex())
	if err != nil {
		return nil, err
	}
	defer unlock()

	opts, err := e.getTransactOpts(ctx, from)
	if err != nil {
		return nil, err
	}

	input, err := e.abi.Pack(method, params...)
	if err != nil {
		return nil, err
	}
	opts.GasLimit = e.estimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &escrowAddr,
		GasPrice: opts.GasPrice,
		Value:    opts.Value,
		Data:     input,
	})

	contract := bind.NewBoundContract(escrowAddr, *e.abi, e.client, e.client, e.client)
	return contract.Transact(opts, method, params...)
}

func (e *Engine) getTransactOpts(ctx context.Context, from common.Address) (*bind.TransactOpts, error) {
	chainID, err := e.client.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	transactOpts, err := bind.NewKeyedTransactorWithChainID(e.signer, chainID)
	if err != nil {
		return nil, err
	}

	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	nonce, err := e.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, err
	}

	transactOpts.GasPrice = gasPrice
	transactOpts.Value = big.NewInt(0)
	transactOpts.Nonce = new(big.Int).SetUint64(nonce)
	transactOpts.Context = ctx

	return transactOpts, nil
}

func (e *Engine) estimateGas(ctx context.Context, msg ethereum.CallMsg) uint64 {
	estimate, err := e.client.EstimateGas(ctx, msg)
	if err != nil {
		e.log.Warnf("gas estimation failed: %s, using default %d", err, e.cfg.DefaultGasLimit)
		return e.cfg.DefaultGasLimit
	}
	return estimate * (100 + e.cfg.GasMarginPercent) / 100
}

func (e *Engine) waitReceipt(ctx context.Context, tx *types.Transaction, timeout time.Duration, res *Result) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.log.Debugf("waiting for receipt of %s", tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, e.client, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return lib.WrapError(ErrReceiptTimeout, err)
		}
		return err
	}

	res.BlockNumber = receipt.BlockNumber.Uint64()
	if receipt.Status != types.ReceiptStatusSuccessful {
		e.log.Warnf("transaction %s failed on chain in block %d", tx.Hash().Hex(), res.BlockNumber)
		return ErrOnChainRevert
	}

	res.Confirmed = true
	e.log.Infof("transaction %s confirmed in block %d", tx.Hash().Hex(), res.BlockNumber)
	return nil
}

func (e *Engine) recordAttempt(action Action, seller string, txID string, res *Result, err error) {
	item := HistoryItem{
		Action:        action,
		Seller:        lib.AddrShort(seller),
		TransactionID: txID,
		TxHash:        res.TxHash,
	}
	switch {
	case err != nil:
		item.Status = AttemptFailed
		item.Error = err.Error()
		e.log.Errorf("%s for %s failed: %s", action, txID, err)
	case res.Confirmed:
		item.Status = AttemptConfirmed
	default:
		item.Status = AttemptSubmitted
	}
	e.history.Add(item)
}

// CheckConnection is a best-effort probe of the chain endpoint
func (e *Engine) CheckConnection(ctx context.Context) error {
	if e.client == nil {
		return ErrChainConnect
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := e.client.BlockNumber(ctx); err != nil {
		return lib.WrapError(ErrChainConnect, err)
	}
	return nil
}

func (e *Engine) History() *History {
	return e.history
}

// SignerAddress returns the oracle address, empty when no key is configured
func (e *Engine) SignerAddress() string {
	if e.signer == nil {
		return ""
	}
	return lib.SignerAddress(e.signer)
}

func (e *Engine) DefaultEscrow() string {
	return e.cfg.DefaultEscrow
}

// TransactionIDHash is the bytes32 form of a transaction id passed to release
func TransactionIDHash(txID string) [32]byte {
	return crypto.Keccak256Hash([]byte(txID))
}

func refundReason(reasoning string) string {
	if reasoning == "" {
		reasoning = "No reason provided"
	}
	return lib.Truncate(refundReasonPrefix+reasoning, refundReasonLimit, "...")
}

func methodName(action Action) string {
	if action == ActionRefund {
		return MethodRefund
	}
	return MethodRelease
}
