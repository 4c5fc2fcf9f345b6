// Package config loads the process-wide Config from a YAML file, with
// environment variables overriding any key the file sets. It is the single
// place that understands how the gateway is configured; every subsystem's
// own Config type (server.Config, log.Config, mysql.Config) nests under it.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/relaywright/gatewaycore/internal/log"
	"github.com/relaywright/gatewaycore/internal/server"
	"github.com/relaywright/gatewaycore/internal/store/mysql"
)

// EnvPrefix is the prefix every environment override carries, e.g.
// GATEWAY_SERVER_PORT for Server.Port.
const EnvPrefix = "gateway"

// Config is the root configuration tree. Provider credentials are
// deliberately absent: those are loaded once from the environment by
// gateway.LoadCredentialsFromEnv, never through this file.
type Config struct {
	Server server.Config `conf:"server" yaml:"server" json:"server"`
	Log    log.Config    `conf:"log"    yaml:"log"    json:"log"`
	MySQL  mysql.Config  `conf:"mysql"  yaml:"mysql"  json:"mysql"`
}

// Default returns the configuration the gateway runs with when no file or
// environment override is present.
func Default() Config {
	return Config{
		Server: server.DefaultConfig(),
		Log: log.Config{
			Level:  "info",
			Format: "json",
		},
		MySQL: mysql.Config{
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
		},
	}
}

// Load reads path (if non-empty; a missing file is an error) as YAML into a copy of
// Default(), then applies any GATEWAY_* environment overrides, e.g.
// GATEWAY_MYSQL_DSN or GATEWAY_SERVER_PORT. path may be empty, in which case
// only the environment is consulted.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.TagName = "conf"
		c.DecodeHook = decodeHook
	}); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}
