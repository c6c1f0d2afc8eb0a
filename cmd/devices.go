package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"
	wakey_device "wakey-bot/wakey/device"

	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"device"},
	Short:   "Manage named devices that \"!wake\" accepts in place of a MAC",
}

var devicesAddCmd = &cobra.Command{
	Use:     "add <name> <mac> [description]",
	Short:   "Add a device",
	Example: `  wakey devices add desktop AA:BB:CC:DD:EE:FF "My desktop computer"`,
	Args:    cobra.RangeArgs(2, 3),
	RunE:    runDevicesAdd,
}

var devicesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List configured devices",
	Args:    cobra.NoArgs,
	RunE:    runDevicesList,
}

var devicesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one device",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesShow,
}

var devicesRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a device",
	Args:    cobra.ExactArgs(1),
	RunE:    runDevicesRemove,
}

func init() {
	devicesCmd.AddCommand(devicesAddCmd, devicesListCmd, devicesShowCmd, devicesRemoveCmd)

	rootCmd.AddCommand(devicesCmd)
}

func openStore(cmd *cobra.Command) (*wakey_device.DeviceStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return wakey_device.NewDeviceStore(wakey_device.DeviceConfig{ConfigPath: cfg.Devices.Path})
}

func runDevicesAdd(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	name, mac := args[0], args[1]
	description := ""
	if len(args) > 2 {
		description = args[2]
	}

	if err := store.AddDevice(name, mac, description); err != nil {
		return fmt.Errorf("failed to add device: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Device '%s' added successfully\n", name)
	return nil
}

func runDevicesList(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	devices := store.ListDevices()

	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices configured.")
		fmt.Fprintln(out, "Use 'wakey devices add <name> <mac>' to add a device.")
		return nil
	}

	fmt.Fprintf(out, "Configured Devices (%d):\n", len(devices))
	fmt.Fprintln(out, strings.Repeat("=", 80))

	for _, device := range devices {
		printDevice(out, device)
		fmt.Fprintln(out, strings.Repeat("-", 80))
	}

	return nil
}

func runDevicesShow(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	device, err := store.GetDevice(args[0])
	if err != nil {
		return fmt.Errorf("%w (use 'wakey devices list' to see available devices)", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Device Details: %s\n", device.Name)
	fmt.Fprintln(out, strings.Repeat("=", 40))
	printDevice(out, device)

	if device.LastWoken.IsZero() {
		fmt.Fprintln(out, "Last Woken:  Never")
	} else {
		fmt.Fprintf(out, "Time Since:  %s\n", time.Since(device.LastWoken).Round(time.Second))
	}

	return nil
}

func runDevicesRemove(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	name := args[0]
	if err := store.RemoveDevice(name); err != nil {
		return fmt.Errorf("failed to remove device: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Device '%s' removed successfully\n", name)
	return nil
}

func printDevice(out io.Writer, device wakey_device.Device) {
	fmt.Fprintf(out, "Name:        %s\n", device.Name)
	fmt.Fprintf(out, "MAC:         %s\n", device.MACAddress)
	if device.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", device.Description)
	}
	fmt.Fprintf(out, "Added:       %s\n", device.AddedAt.Format(timeLayout))
	if !device.LastWoken.IsZero() {
		fmt.Fprintf(out, "Last Woken:  %s\n", device.LastWoken.Format(timeLayout))
	}
}
