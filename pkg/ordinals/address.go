package ordinals

import (
	"errors"
	"strings"
)

var (
	ErrAddressRequired = errors.New("Address is required")
	ErrInvalidAddress  = errors.New("Invalid Bitcoin address format")
)

// AddressType classifies a Bitcoin address by its prefix.
type AddressType string

const (
	AddressLegacy   AddressType = "legacy"
	AddressSegwitV0 AddressType = "segwit_v0"
	AddressTaproot  AddressType = "taproot"
	AddressSegwit   AddressType = "segwit"
)

// ValidateAddress performs a format check on a mainnet address. It does not
// verify checksums; the API rejects anything that slips through.
func ValidateAddress(address string) (AddressType, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrAddressRequired
	}

	switch {
	case strings.HasPrefix(address, "1"), strings.HasPrefix(address, "3"):
		if len(address) >= 25 && len(address) <= 34 {
			return AddressLegacy, nil
		}
	case strings.HasPrefix(address, "bc1"):
		if len(address) >= 42 {
			switch {
			case strings.HasPrefix(address, "bc1q"):
				return AddressSegwitV0, nil
			case strings.HasPrefix(address, "bc1p"):
				return AddressTaproot, nil
			default:
				return AddressSegwit, nil
			}
		}
	}
	return "", ErrInvalidAddress
}
