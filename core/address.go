package core

import "regexp"

// AddressLength is the length of a wallet address (base-32, no padding).
const AddressLength = 58

var addressPattern = regexp.MustCompile(`^[A-Z2-7]{58}$`)

// IsValidAddress reports whether address is exactly 58 characters of A-Z and 2-7.
func IsValidAddress(address string) bool {
	return addressPattern.MatchString(address)
}

// ValidateAddress returns ErrInvalidAddressFormat when the address fails IsValidAddress.
func ValidateAddress(address string) error {
	if !IsValidAddress(address) {
		return ErrInvalidAddressFormat
	}
	return nil
}
