package siwe

import (
	"fmt"
	"strings"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/ethereum/go-ethereum/common"
)

// ChecksumAddress returns the EIP-55 form of a hex address. Mixed-case input
// must already carry a valid checksum.
func ChecksumAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%q: %w", address, core.ErrInvalidAddress)
	}
	checksummed := common.HexToAddress(address).Hex()

	body := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && "0x"+body != checksummed {
		return "", fmt.Errorf("%q has a bad checksum: %w", address, core.ErrInvalidAddress)
	}
	return checksummed, nil
}

// NormalizeAddress checksums the address component of a plain or namespaced
// (namespace:chainRef:address) address and leaves everything else untouched.
// Input that cannot be checksummed is returned unchanged.
func NormalizeAddress(address string) string {
	parts := strings.Split(address, ":")
	checksummed, err := ChecksumAddress(parts[len(parts)-1])
	if err != nil {
		return address
	}
	parts[len(parts)-1] = checksummed
	return strings.Join(parts, ":")
}

// splitAccount separates a namespaced address into its chain reference and
// trailing address. chainRef is empty for plain addresses.
func splitAccount(address string) (chainRef, account string) {
	parts := strings.Split(address, ":")
	if len(parts) >= 3 {
		return parts[len(parts)-2], parts[len(parts)-1]
	}
	return "", parts[len(parts)-1]
}
