package lib

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

const oracleDerivationPath = "m/44'/60'/0'/0/%d"

var (
	ErrNoKeyMaterial   = errors.New("neither private key nor mnemonic provided")
	ErrInvalidKey      = errors.New("invalid private key")
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
)

// LoadSigningKey resolves the oracle signer. Private key takes precedence over mnemonic,
// a mnemonic yields the first account of the standard ethereum derivation path
func LoadSigningKey(privateKeyHex string, mnemonic string) (*ecdsa.PrivateKey, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(privateKeyHex)
		if err != nil {
			return nil, WrapError(ErrInvalidKey, err)
		}
		return key, nil
	}

	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic != "" {
		key, err := keyFromMnemonic(mnemonic, 0)
		if err != nil {
			return nil, WrapError(ErrInvalidMnemonic, err)
		}
		return key, nil
	}

	return nil, ErrNoKeyMaterial
}

func keyFromMnemonic(mnemonic string, accountIndex int) (*ecdsa.PrivateKey, error) {
	wallet, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}

	path, err := hdwallet.ParseDerivationPath(fmt.Sprintf(oracleDerivationPath, accountIndex))
	if err != nil {
		return nil, err
	}

	account, err := wallet.Derive(path, false)
	if err != nil {
		return nil, err
	}

	return wallet.PrivateKey(account)
}

// SignerAddress returns the checksummed address of a key
func SignerAddress(key *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}
