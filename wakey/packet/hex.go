package wakey_packet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const MACLength = 6

var ErrInvalidLength = errors.New("mac address must be exactly 6 bytes")

// DecodeError reports hex input that is not a whole number of valid pairs.
type DecodeError struct {
	Input string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode hex %q: %v", e.Input, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeHex decodes s two characters at a time. An incomplete final pair or a
// non-hex character fails; nothing is truncated or padded.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &DecodeError{Input: s, Err: err}
	}

	return b, nil
}

// ParseMAC decodes a 12 character hex string into a MAC address.
func ParseMAC(s string) ([MACLength]byte, error) {
	var mac [MACLength]byte

	b, err := DecodeHex(s)
	if err != nil {
		return mac, err
	}

	if len(b) != MACLength {
		return mac, fmt.Errorf("%w, got %d", ErrInvalidLength, len(b))
	}

	copy(mac[:], b)
	return mac, nil
}

func CleanMAC(mac string) string {
	return strings.ToUpper(
		strings.ReplaceAll(
			strings.ReplaceAll(strings.TrimSpace(mac), ":", ""),
			"-", ""),
	)
}

// ParseAnyMAC accepts the colon, hyphen and bare forms.
func ParseAnyMAC(mac string) ([MACLength]byte, error) {
	return ParseMAC(CleanMAC(mac))
}

func FormatMAC(mac [MACLength]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}
