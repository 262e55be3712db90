package settlement

import "errors"

var (
	ErrChainConnect      = errors.New("chain client unavailable")
	ErrNoSigningKey      = errors.New("no signing key configured")
	ErrNoContractAddress = errors.New("no escrow contract address")
	ErrInvalidSeller     = errors.New("invalid seller address")
	ErrSubmit            = errors.New("failed to submit transaction")
	ErrReceiptTimeout    = errors.New("timed out waiting for receipt")
	ErrOnChainRevert     = errors.New("transaction reverted on chain")
	ErrInvalidABI        = errors.New("invalid escrow abi")
)
