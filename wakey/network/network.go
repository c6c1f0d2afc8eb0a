package wakey_network

import (
	"context"
	"net"
	"strconv"
	"time"
	wakey_log "wakey-bot/wakey/log"
	wakey_packet "wakey-bot/wakey/packet"

	"github.com/pkg/errors"
)

const (
	DefaultWoLPort = 9

	AlternativeWoLPort = 7

	DefaultBroadcastAddr = "255.255.255.255"

	writeTimeout = 5 * time.Second
)

// Sender transmits magic packets as a single UDP datagram.
type Sender struct {
	BroadcastAddr string
	Port          int
	Logger        *wakey_log.Logger
}

func NewSender(broadcastAddr string, port int, logger *wakey_log.Logger) *Sender {
	if broadcastAddr == "" {
		broadcastAddr = DefaultBroadcastAddr
	}
	if port == 0 {
		port = DefaultWoLPort
	}

	return &Sender{
		BroadcastAddr: broadcastAddr,
		Port:          port,
		Logger:        logger,
	}
}

func (s *Sender) getLogger() *wakey_log.Logger {
	if s.Logger == nil {
		return wakey_log.Discard()
	}
	return s.Logger
}

// Target is the host:port the datagram is sent to.
func (s *Sender) Target() string {
	return net.JoinHostPort(s.BroadcastAddr, strconv.Itoa(s.Port))
}

func (s *Sender) SendPacket(ctx context.Context, packet []byte) error {
	logger := s.getLogger()

	if len(packet) != wakey_packet.MagicPacketLength {
		err := errors.Errorf("invalid packet length: expected %d bytes, got %d", wakey_packet.MagicPacketLength, len(packet))
		logger.Error("Packet validation failed: %v", err)
		return err
	}

	target := s.Target()
	logger.Debug("Target broadcast address: %s", target)

	dialer := net.Dialer{Control: broadcastControl}
	conn, err := dialer.DialContext(ctx, "udp4", target)
	if err != nil {
		logger.Error("Failed to create UDP connection: %v", err)
		return errors.Wrapf(err, "failed to dial UDP %s", target)
	}

	defer conn.Close()

	err = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err != nil {
		logger.Warn("Failed to set write deadline: %v", err)
		return errors.Wrap(err, "failed to set write deadline")
	}

	logger.Debug("Sending magic packet...")
	bytesWritten, err := conn.Write(packet)
	if err != nil {
		logger.Error("Failed to send magic packet: %v", err)
		return errors.Wrapf(err, "failed to send magic packet to %s", target)
	}

	if bytesWritten != len(packet) {
		err := errors.Errorf("incomplete packet sent: sent %d bytes, expected %d", bytesWritten, len(packet))
		logger.Error("Packet transmission incomplete: %v", err)
		return err
	}

	logger.Debug("Magic packet sent successfully: %d bytes", bytesWritten)
	return nil
}

// Send builds the magic packet for mac and broadcasts it once.
func (s *Sender) Send(ctx context.Context, mac [wakey_packet.MACLength]byte) error {
	logger := s.getLogger()
	macStr := wakey_packet.FormatMAC(mac)
	target := s.Target()

	packet, err := wakey_packet.BuildMagicPacket(mac)
	if err != nil {
		logger.LogWakeAttempt(macStr, target, false, err)
		return errors.Wrap(err, "failed to build magic packet")
	}

	logger.LogPacketDetails(macStr, len(packet), target)

	err = s.SendPacket(ctx, packet)
	if err != nil {
		logger.LogWakeAttempt(macStr, target, false, err)
		return errors.Wrap(err, "failed to send wake packet")
	}

	logger.LogWakeAttempt(macStr, target, true, nil)
	return nil
}
