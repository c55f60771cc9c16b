package evm

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ZeroAddress is the all-zero EVM address
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// EVM address regex: 0x followed by exactly 40 hex characters
var addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

var (
	ErrMissingAddress  = errors.New("address is required")
	ErrInvalidAddress  = errors.New("invalid EVM address format (must be 0x followed by 40 hex characters)")
	ErrInvalidChecksum = errors.New("invalid EVM address checksum")
)

// ValidateAddress validates an EVM address and returns the EIP-55 checksummed version
func ValidateAddress(address string) (string, error) {
	if address == "" {
		return "", ErrMissingAddress
	}

	if !addressRegex.MatchString(address) {
		return "", ErrInvalidAddress
	}

	checksummed := ToChecksumAddress(address)

	// Mixed case input must already carry a valid checksum
	if isChecksummed(address) && address != checksummed {
		return "", ErrInvalidChecksum
	}

	return checksummed, nil
}

// ToChecksumAddress converts an EVM address to EIP-55 checksummed format.
// https://eips.ethereum.org/EIPS/eip-55
func ToChecksumAddress(address string) string {
	addr := strings.ToLower(strings.TrimPrefix(address, "0x"))
	hash := Keccak256([]byte(addr))

	var result strings.Builder
	result.WriteString("0x")

	for i, c := range addr {
		if c >= '0' && c <= '9' {
			result.WriteRune(c)
			continue
		}

		hashByte := hash[i/2]
		var nibble byte
		if i%2 == 0 {
			nibble = hashByte >> 4
		} else {
			nibble = hashByte & 0x0F
		}

		if nibble >= 8 {
			result.WriteRune(c - 32)
		} else {
			result.WriteRune(c)
		}
	}

	return result.String()
}

func isChecksummed(address string) bool {
	addr := strings.TrimPrefix(address, "0x")
	hasUpper := false
	hasLower := false

	for _, c := range addr {
		if c >= 'A' && c <= 'F' {
			hasUpper = true
		}
		if c >= 'a' && c <= 'f' {
			hasLower = true
		}
	}

	return hasUpper && hasLower
}

// Keccak256 computes the legacy Keccak-256 hash used by the EVM
func Keccak256(data ...[]byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d)
	}
	return hash.Sum(nil)
}

// AddressesEqual compares two EVM addresses case-insensitively
func AddressesEqual(a, b string) bool {
	return strings.EqualFold(
		strings.TrimPrefix(a, "0x"),
		strings.TrimPrefix(b, "0x"),
	)
}

// IsZeroAddress checks if an address is the zero address
func IsZeroAddress(address string) bool {
	return AddressesEqual(address, ZeroAddress)
}
