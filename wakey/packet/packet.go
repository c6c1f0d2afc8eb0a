package wakey_packet

import (
	"fmt"

	"github.com/sabhiram/go-wol/wol"
)

const MagicPacketLength = 102

// BuildMagicPacket returns six 0xFF bytes followed by sixteen copies of mac.
func BuildMagicPacket(mac [MACLength]byte) ([]byte, error) {
	mp, err := wol.New(FormatMAC(mac))
	if err != nil {
		return nil, fmt.Errorf("failed to create magic packet: %w", err)
	}

	packet, err := mp.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal magic packet: %w", err)
	}

	if len(packet) != MagicPacketLength {
		return nil, fmt.Errorf("magic packet must be %d bytes, got %d", MagicPacketLength, len(packet))
	}

	return packet, nil
}
