package wakey_config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	wakey_device "wakey-bot/wakey/device"
	wakey_ipcache "wakey-bot/wakey/ipcache"
	wakey_network "wakey-bot/wakey/network"

	"github.com/spf13/viper"
)

const (
	envPrefix  = "WAKEY"
	configName = ".wakey"
)

type Config struct {
	Discord  DiscordConfig  `mapstructure:"discord"`
	Operator OperatorConfig `mapstructure:"operator"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Wake     WakeConfig     `mapstructure:"wake"`
	API      APIConfig      `mapstructure:"api"`
	Devices  DevicesConfig  `mapstructure:"devices"`
	Log      LogConfig      `mapstructure:"log"`
}

type DiscordConfig struct {
	Token string `mapstructure:"token"`
}

type OperatorConfig struct {
	ID string `mapstructure:"id"`
}

type ResolverConfig struct {
	Mode      string        `mapstructure:"mode"`
	URL       string        `mapstructure:"url"`
	DNSServer string        `mapstructure:"dns_server"`
	DNSName   string        `mapstructure:"dns_name"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type WakeConfig struct {
	Broadcast string `mapstructure:"broadcast"`
	Port      int    `mapstructure:"port"`
}

type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Token   string `mapstructure:"token"`
	CORS    bool   `mapstructure:"cors"`
}

type DevicesConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	// Keys without a real default are still registered so AutomaticEnv sees them.
	v.SetDefault("operator.id", "")
	v.SetDefault("api.token", "")
	v.SetDefault("log.file", "")

	v.SetDefault("resolver.mode", wakey_ipcache.ModeHTTP)
	v.SetDefault("resolver.url", wakey_ipcache.DefaultHTTPURL)
	v.SetDefault("resolver.dns_server", wakey_ipcache.DefaultDNSServer)
	v.SetDefault("resolver.dns_name", wakey_ipcache.DefaultDNSName)
	v.SetDefault("resolver.timeout", wakey_ipcache.DefaultTimeout)
	v.SetDefault("wake.broadcast", wakey_network.DefaultBroadcastAddr)
	v.SetDefault("wake.port", wakey_network.DefaultWoLPort)
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors", false)
	v.SetDefault("devices.path", wakey_device.DefaultDeviceConfig().ConfigPath)
	v.SetDefault("log.level", "info")
}

// Load reads defaults, then the config file, then WAKEY_* environment
// variables. explicitPath may be empty, in which case ~/.wakey.yaml and
// ./.wakey.yaml are tried and a missing file is not an error.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The token variable name used by earlier deployments.
	if err := v.BindEnv("discord.token", envPrefix+"_DISCORD_TOKEN", "DISCORD_TOKEN"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Operator.ID = strings.TrimSpace(cfg.Operator.ID)
	cfg.Discord.Token = strings.TrimSpace(cfg.Discord.Token)

	return &cfg, nil
}

// Validate checks what "serve" needs before any transport starts.
func (c *Config) Validate() error {
	var errs []error

	if c.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required (set WAKEY_DISCORD_TOKEN or DISCORD_TOKEN)"))
	}

	if c.Operator.ID == "" {
		errs = append(errs, errors.New("operator.id is required"))
	} else if _, err := strconv.ParseUint(c.Operator.ID, 10, 64); err != nil {
		errs = append(errs, fmt.Errorf("operator.id must be a numeric user id, got %q", c.Operator.ID))
	}

	if c.Wake.Port <= 0 || c.Wake.Port > 65535 {
		errs = append(errs, fmt.Errorf("wake.port out of range: %d", c.Wake.Port))
	}

	if c.API.Enabled {
		if c.API.Token == "" {
			errs = append(errs, errors.New("api.token is required when api.enabled is set"))
		}
		if c.API.Port <= 0 || c.API.Port > 65535 {
			errs = append(errs, fmt.Errorf("api.port out of range: %d", c.API.Port))
		}
	}

	return errors.Join(errs...)
}

// ResolverSettings converts the resolver section for wakey_ipcache.NewResolver.
func (c *Config) ResolverSettings() wakey_ipcache.ResolverConfig {
	return wakey_ipcache.ResolverConfig{
		Mode:      c.Resolver.Mode,
		URL:       c.Resolver.URL,
		DNSServer: c.Resolver.DNSServer,
		DNSName:   c.Resolver.DNSName,
		Timeout:   c.Resolver.Timeout,
	}
}

// DefaultFilePath is where "wakey" looks first for its config file.
func DefaultFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configName + ".yaml"
	}
	return filepath.Join(home, configName+".yaml")
}
