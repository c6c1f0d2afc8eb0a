package cmd

import (
	"fmt"
	wakey_device "wakey-bot/wakey/device"
	wakey_network "wakey-bot/wakey/network"
	wakey_packet "wakey-bot/wakey/packet"

	"github.com/spf13/cobra"
)

var wakeCmd = &cobra.Command{
	Use:   "wake <device-name-or-mac>",
	Short: "Send a Wake-on-LAN magic packet",
	Args:  cobra.ExactArgs(1),
	RunE:  runWake,
}

func init() {
	wakeCmd.Flags().IntP("port", "p", 0, "UDP port (default: wake.port from config)")
	wakeCmd.Flags().String("broadcast", "", "Broadcast address (default: wake.broadcast from config)")

	rootCmd.AddCommand(wakeCmd)
}

func runWake(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	store, err := wakey_device.NewDeviceStore(wakey_device.DeviceConfig{ConfigPath: cfg.Devices.Path})
	if err != nil {
		return err
	}

	target := args[0]
	deviceName := "Unknown Device"

	mac, known := store.LookupMAC(target)
	if known {
		deviceName = target
		logger.Info("Waking device by name: %s (MAC: %s)", target, wakey_packet.FormatMAC(mac))
	} else {
		mac, err = wakey_packet.ParseAnyMAC(target)
		if err != nil {
			logger.Error("Invalid target %s: %v", target, err)
			return fmt.Errorf("'%s' is not a valid device name or MAC address: %w", target, err)
		}
		logger.Info("Waking device by MAC: %s", wakey_packet.FormatMAC(mac))
	}

	port := cfg.Wake.Port
	if p, _ := cmd.Flags().GetInt("port"); p != 0 {
		port = p
	}
	broadcast := cfg.Wake.Broadcast
	if b, _ := cmd.Flags().GetString("broadcast"); b != "" {
		broadcast = b
	}

	sender := wakey_network.NewSender(broadcast, port, logger)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sending Wake-on-LAN packet to %s (%s) via %s...\n", deviceName, wakey_packet.FormatMAC(mac), sender.Target())

	if err := sender.Send(cmd.Context(), mac); err != nil {
		return fmt.Errorf("failed to send Wake-on-LAN packet: %w", err)
	}

	if known {
		if err := store.UpdateLastWoken(target); err != nil {
			logger.Warn("Failed to update last woken time for %s: %v", target, err)
		}
	}

	fmt.Fprintf(out, "✓ Wake-on-LAN packet sent successfully to %s\n", deviceName)
	return nil
}
