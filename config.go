package xplorer

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
)

// Config is the global set of configuration for a Server instance: a single
// flat struct of plain fields, each documented with its default value.
type Config struct {
	// AppName identifies this xplorer instance in log lines.
	//
	// Default value: "xplorer"
	AppName string `mapstructure:"app_name" toml:"app_name"`

	// DebugMode gates whether a recovered handler panic's stack trace is
	// included in the InternalError response body.
	//
	// Default value: false
	DebugMode bool `mapstructure:"debug_mode" toml:"debug_mode"`

	// LoggerFormat is the "${field}"-placeholder format string the Logger
	// renders each line with; placeholders are expanded into text/template
	// actions when the Logger is built.
	//
	// Default value: see DefaultConfig.
	LoggerFormat string `mapstructure:"logger_format" toml:"logger_format"`

	// HTTPAddress is the TCP address the HTTP transport listens on. If
	// empty, the HTTP transport is not started by the Server façade.
	//
	// Default value: "localhost:8080"
	HTTPAddress string `mapstructure:"http_address" toml:"http_address"`

	// P2PAddress is the UDP address the P2P transport's QUIC endpoint
	// binds to.
	//
	// Default value: "0.0.0.0:4433"
	P2PAddress string `mapstructure:"p2p_address" toml:"p2p_address"`

	// P2PStoragePath is the directory the P2P transport persists its
	// identity key and endpoint state under.
	//
	// Default value: "xplorer-p2p"
	P2PStoragePath string `mapstructure:"p2p_storage_path" toml:"p2p_storage_path"`

	// P2PForceNewIdentity, if true, discards any existing identity and
	// endpoint state on the next P2P transport start.
	//
	// Default value: false
	P2PForceNewIdentity bool `mapstructure:"p2p_force_new_identity" toml:"p2p_force_new_identity"`

	// P2PEnabled controls whether the Server façade starts the P2P
	// transport at all.
	//
	// Default value: true
	P2PEnabled bool `mapstructure:"p2p_enabled" toml:"p2p_enabled"`

	// LogStorePath is the directory sessions/<id>/logs.db is rooted
	// under.
	//
	// Default value: "xplorer-logs"
	LogStorePath string `mapstructure:"log_store_path" toml:"log_store_path"`

	// HandlerTimeout is the main-thread trampoline deadline. It exists as
	// a Config field purely so tests can shrink it; production code
	// should leave it at the default.
	//
	// Default value: 30s
	HandlerTimeout time.Duration `mapstructure:"-" toml:"-"`
}

// DefaultConfig returns the Config the Server façade uses when the caller
// supplies none.
func DefaultConfig() Config {
	return Config{
		AppName: "xplorer",
		LoggerFormat: `{"app_name":"${app_name}","time":"${time_rfc3339}",` +
			`"level":"${level}","message":"${message}"}`,
		HTTPAddress:    "localhost:8080",
		P2PAddress:     "0.0.0.0:4433",
		P2PStoragePath: "xplorer-p2p",
		P2PEnabled:     true,
		LogStorePath:   "xplorer-logs",
		HandlerTimeout: mainThreadTimeout,
	}
}

// LoadTOML reads path as a TOML document on top of DefaultConfig, returning
// the merged Config. A missing file is not an error; DefaultConfig is
// returned unchanged.
func LoadTOML(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("xplorer: decode config file %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyOverrides loosely decodes overrides (e.g. parsed CLI flags or
// environment variables collected into a map) on top of cfg. Unknown keys
// in overrides are ignored rather than treated as an error, since callers
// may pass through flags meant for other components.
func ApplyOverrides(cfg Config, overrides map[string]interface{}) (Config, error) {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return Config{}, fmt.Errorf("xplorer: build config decoder: %w", err)
	}
	if err := decoder.Decode(overrides); err != nil {
		return Config{}, fmt.Errorf("xplorer: apply config overrides: %w", err)
	}
	return cfg, nil
}
