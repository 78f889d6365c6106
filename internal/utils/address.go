package utils

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsEvmAddress checks whether the string is a 20-byte EVM address,
// with or without the 0x prefix.
func IsEvmAddress(address string) bool {
	if address == "" {
		return false
	}
	if !strings.HasPrefix(strings.ToLower(address), "0x") {
		address = "0x" + address
	}
	return common.IsHexAddress(address)
}

// IsTronAddress checks whether the string looks like a TRON Base58 address.
func IsTronAddress(address string) bool {
	return address != "" && strings.HasPrefix(address, "T") && len(address) == 34
}

// NormalizeAddress normalizes a wallet address for comparison and storage.
// EVM addresses get a 0x prefix and are lowercased; TRON Base58 addresses
// are case-sensitive and returned as-is; anything else is returned untouched
// so unknown chains still round-trip.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}

	if IsTronAddress(address) {
		return address
	}

	if IsEvmAddress(address) {
		if !strings.HasPrefix(strings.ToLower(address), "0x") {
			address = "0x" + address
		}
		return strings.ToLower(address)
	}

	return address
}

// SameAddress compares two addresses after normalization.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) != "" && NormalizeAddress(a) == NormalizeAddress(b)
}
