package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	wakey_device "wakey-bot/wakey/device"
	wakey_discord "wakey-bot/wakey/discord"
	wakey_dispatch "wakey-bot/wakey/dispatch"
	wakey_ipcache "wakey-bot/wakey/ipcache"
	wakey_network "wakey-bot/wakey/network"
	wakey_probe "wakey-bot/wakey/probe"
	wakey_server "wakey-bot/wakey/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord and answer operator commands",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool("api", false, "Also start the HTTP control API (overrides api.enabled)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("api") {
		cfg.API.Enabled, _ = cmd.Flags().GetBool("api")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config:\n%w", err)
	}

	logger, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	resolver, err := wakey_ipcache.NewResolver(cfg.ResolverSettings())
	if err != nil {
		return err
	}

	store, err := wakey_device.NewDeviceStore(wakey_device.DeviceConfig{ConfigPath: cfg.Devices.Path})
	if err != nil {
		logger.Error("Failed to initialize device store: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := wakey_ipcache.NewCache(resolver, logger)
	logger.Info("Initial ip: %s", wakey_ipcache.Format(cache.GetOrRefresh(ctx, true)))

	dispatcher, err := wakey_dispatch.New(wakey_dispatch.Config{
		OperatorID: cfg.Operator.ID,
		IPCache:    cache,
		Waker:      wakey_network.NewSender(cfg.Wake.Broadcast, cfg.Wake.Port, logger),
		Prober:     wakey_probe.NewRunner(logger),
		Devices:    store,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	bot := wakey_discord.NewBot(wakey_discord.BotConfig{
		Token:      cfg.Discord.Token,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	g.Go(func() error {
		return bot.Run(ctx)
	})

	if cfg.API.Enabled {
		server := wakey_server.NewServer(wakey_server.ServerConfig{
			Host:        cfg.API.Host,
			Port:        cfg.API.Port,
			Token:       cfg.API.Token,
			Version:     Version,
			EnableCORS:  cfg.API.CORS,
			Dispatcher:  dispatcher,
			IPCache:     cache,
			DeviceStore: store,
			Logger:      logger,
		})
		g.Go(func() error {
			return server.Run(ctx)
		})
	}

	logger.Info("wakey %s serving operator %s (devices: %s)", Version, cfg.Operator.ID, store.Path())

	if err := g.Wait(); err != nil {
		logger.Error("Serve stopped: %v", err)
		return err
	}

	logger.Info("Shut down cleanly")
	return nil
}
