package siwe

import (
	"fmt"
	"strings"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// RecoverAddress returns the address that produced an EIP-191 personal_sign
// signature over message
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, core.ErrInvalidSignature)
	}

	// Wallets report the recovery id as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", core.ErrInvalidSignature)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks that the message was signed by the address it names
func VerifySignature(message, signature string) (*Message, error) {
	m, err := ParseMessage(message)
	if err != nil {
		return nil, err
	}

	signer, err := RecoverAddress(message, signature)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(signer.Hex(), m.Address) {
		return nil, fmt.Errorf("signed by %s, message names %s: %w", signer.Hex(), m.Address, core.ErrInvalidSignature)
	}
	return m, nil
}
