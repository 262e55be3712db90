package settlement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/hale-labs/hale-oracle/internal/lib"
)

const (
	MethodRelease = "release"
	MethodRefund  = "refund"
)

// DefaultEscrowABI covers the two methods the oracle calls
const DefaultEscrowABI = `[
  {"inputs":[{"internalType":"address","name":"seller","type":"address"},{"internalType":"bytes32","name":"transactionId","type":"bytes32"}],"name":"release","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"address","name":"seller","type":"address"},{"internalType":"string","name":"reason","type":"string"}],"name":"refund","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// LoadEscrowABI reads the escrow abi from path, either a bare abi array or a build
// artifact with an "abi" field. Empty path yields DefaultEscrowABI
func LoadEscrowABI(path string) (*abi.ABI, error) {
	if path == "" {
		return ParseEscrowABI([]byte(DefaultEscrowABI))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lib.WrapError(ErrInvalidABI, err)
	}
	return ParseEscrowABI(data)
}

func ParseEscrowABI(data []byte) (*abi.ABI, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(data, &artifact); err != nil {
			return nil, lib.WrapError(ErrInvalidABI, err)
		}
		data = artifact.ABI
	}

	parsed, err := abi.JSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, lib.WrapError(ErrInvalidABI, err)
	}
	for _, method := range []string{MethodRelease, MethodRefund} {
		if _, ok := parsed.Methods[method]; !ok {
			return nil, fmt.Errorf("%w: missing method %s", ErrInvalidABI, method)
		}
	}
	return &parsed, nil
}
