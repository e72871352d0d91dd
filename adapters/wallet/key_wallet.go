// Package wallet provides a wallet backed by a local private key, used by the
// command line client and in tests
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/ports"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyWallet signs with a secp256k1 key held in memory
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address string

	mu        sync.RWMutex
	connected bool
}

// New creates a disconnected wallet for key
func New(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
}

// FromHex parses a hex private key, with or without 0x prefix
func FromHex(hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet key: %w", err)
	}
	return New(key), nil
}

// Generate creates a wallet with a fresh random key
func Generate() (*KeyWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate wallet key: %w", err)
	}
	return New(key), nil
}

var _ ports.Wallet = (*KeyWallet)(nil)

// Address returns the checksummed address of the wallet
func (w *KeyWallet) Address() string {
	return w.address
}

// Connect marks the wallet connected and returns the new signal
func (w *KeyWallet) Connect() core.WalletSignal {
	w.mu.Lock()
	w.connected = true
	w.mu.Unlock()
	return w.Signal()
}

// Disconnect marks the wallet disconnected and returns the new signal
func (w *KeyWallet) Disconnect() core.WalletSignal {
	w.mu.Lock()
	w.connected = false
	w.mu.Unlock()
	return w.Signal()
}

func (w *KeyWallet) Signal() core.WalletSignal {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.connected {
		return core.WalletSignal{}
	}
	return core.WalletSignal{Connected: true, Address: w.address}
}

// SignMessage produces an EIP-191 personal_sign signature with a 27/28 recovery id
func (w *KeyWallet) SignMessage(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !w.Signal().Connected {
		return "", core.ErrNotConnected
	}

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
