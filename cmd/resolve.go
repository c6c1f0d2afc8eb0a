package cmd

import (
	"fmt"
	wakey_ipcache "wakey-bot/wakey/ipcache"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Look up the public IPv4 address once and print it",
	Args:  cobra.NoArgs,
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().Bool("dns", false, "Ask OpenDNS (myip.opendns.com) instead of the HTTP endpoint")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	settings := cfg.ResolverSettings()
	if useDNS, _ := cmd.Flags().GetBool("dns"); useDNS {
		settings.Mode = wakey_ipcache.ModeDNS
	}

	resolver, err := wakey_ipcache.NewResolver(settings)
	if err != nil {
		return err
	}

	addr, err := resolver.Resolve(cmd.Context())
	if err != nil {
		logger.Error("Could not resolve public ip: %v", err)
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), addr)
	return nil
}
