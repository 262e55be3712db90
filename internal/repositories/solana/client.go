package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hale-labs/hale-oracle/internal/interfaces"
	"github.com/hale-labs/hale-oracle/internal/lib"
)

const (
	DefaultRPCURL = "https://api.devnet.solana.com"
	PubkeySize    = 32

	encodingBase64 = "base64"
)

var (
	ErrInvalidPubkey = errors.New("invalid account pubkey")
	ErrRPC           = errors.New("solana rpc error")
	ErrEncoding      = errors.New("unexpected account data encoding")
)

type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// Client reads raw account bytes over the ledger's json-rpc api
type Client struct {
	rpc        rpcCaller
	url        string
	commitment string
	log        interfaces.ILogger
}

type accountInfo struct {
	Data       []string `json:"data"`
	Owner      string   `json:"owner"`
	Lamports   uint64   `json:"lamports"`
	Executable bool     `json:"executable"`
}

type accountInfoResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value *accountInfo `json:"value"`
}

func DialContext(ctx context.Context, url string, log interfaces.ILogger) (*Client, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, lib.WrapError(ErrRPC, err)
	}
	return &Client{rpc: client, url: url, commitment: "confirmed", log: log}, nil
}

// GetAccountData returns the raw account bytes, or nil without error when the account does not exist
func (c *Client) GetAccountData(ctx context.Context, pubkey string) ([]byte, error) {
	if err := ValidatePubkey(pubkey); err != nil {
		return nil, err
	}

	var res accountInfoResult
	err := c.rpc.CallContext(ctx, &res, "getAccountInfo", pubkey, map[string]string{
		"encoding":   encodingBase64,
		"commitment": c.commitment,
	})
	if err != nil {
		return nil, lib.WrapError(ErrRPC, err)
	}

	if res.Value == nil {
		c.log.Debugf("account %s not found at slot %d", pubkey, res.Context.Slot)
		return nil, nil
	}
	if len(res.Value.Data) < 2 || res.Value.Data[1] != encodingBase64 {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, res.Value.Data)
	}

	data, err := base64.StdEncoding.DecodeString(res.Value.Data[0])
	if err != nil {
		return nil, lib.WrapError(ErrEncoding, err)
	}
	return data, nil
}

// Health reports whether the node considers itself healthy
func (c *Client) Health(ctx context.Context) error {
	var res string
	if err := c.rpc.CallContext(ctx, &res, "getHealth"); err != nil {
		return lib.WrapError(ErrRPC, err)
	}
	if res != "ok" {
		return fmt.Errorf("%w: node health %q", ErrRPC, res)
	}
	return nil
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) Close() {
	c.rpc.Close()
}

func ValidatePubkey(pubkey string) error {
	if len(base58.Decode(pubkey)) != PubkeySize {
		return fmt.Errorf("%w: %q", ErrInvalidPubkey, pubkey)
	}
	return nil
}
