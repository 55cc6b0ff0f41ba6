package validation

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressHexLength is the length of a Core address without the 0x prefix
// (22 bytes: 2 bytes of network prefix and checksum, 20 bytes of account).
const AddressHexLength = 44

// ValidateAddress validates a blockchain address format
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	normalized := trimHexPrefix(addr)

	if len(normalized) != AddressHexLength {
		return fmt.Errorf("invalid address length: expected %d characters (without 0x), got %d", AddressHexLength, len(normalized))
	}

	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("invalid hex address: %w", err)
	}

	return nil
}

// NormalizeAddress converts an address to lowercase without 0x prefix
func NormalizeAddress(addr string) string {
	return strings.ToLower(trimHexPrefix(strings.TrimSpace(addr)))
}

// ValidateAndNormalizeAddress validates an address and returns its normalized form
func ValidateAndNormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return NormalizeAddress(addr), nil
}

// ShortenAddress renders an address as its first and last four characters.
func ShortenAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func trimHexPrefix(addr string) string {
	addr = strings.TrimPrefix(addr, "0x")
	return strings.TrimPrefix(addr, "0X")
}
