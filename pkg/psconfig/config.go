// Package psconfig loads the endpoint and relay daemon TOML config files
// (spec §6) and watches them for edits, hot-reloading non-identity fields.
package psconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/proxystore-go/proxystore/pkg/connector"
)

var nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// RelayAuthConfig is the `[relay.auth]`/`[auth]` table.
type RelayAuthConfig struct {
	Method string                 `toml:"method"`
	Extra  map[string]interface{} `toml:"-"`
}

// RelayRefConfig is an endpoint's `[relay]` table: where to find the relay
// it registers with.
type RelayRefConfig struct {
	Address            string          `toml:"address"`
	PeerChannels        int             `toml:"peer_channels"`
	VerifyCertificate   bool            `toml:"verify_certificate"`
	Auth                RelayAuthConfig `toml:"auth"`
}

// StorageConfig is an endpoint's `[storage]` table.
type StorageConfig struct {
	DatabasePath   string `toml:"database_path"`
	MaxObjectSize  int64  `toml:"max_object_size"`
}

// EndpointConfig is the endpoint daemon config file (spec §6).
type EndpointConfig struct {
	Name  string         `toml:"name"`
	UUID  string         `toml:"uuid"`
	Host  string         `toml:"host"`
	Port  int            `toml:"port"`
	Relay RelayRefConfig `toml:"relay"`
	Storage StorageConfig `toml:"storage"`
}

// Validate checks the required fields and value ranges named in spec §6.
func (c *EndpointConfig) Validate() error {
	if !nameRE.MatchString(c.Name) {
		return &connector.ConfigurationError{Message: fmt.Sprintf("invalid endpoint name %q", c.Name)}
	}
	if _, err := uuid.Parse(c.UUID); err != nil {
		return &connector.ConfigurationError{Message: fmt.Sprintf("invalid endpoint uuid %q: %s", c.UUID, err)}
	}
	if c.Port != 0 && (c.Port < 1 || c.Port > 65535) {
		return &connector.ConfigurationError{Message: fmt.Sprintf("port %d out of range", c.Port)}
	}
	if c.Relay.Address != "" && c.Relay.PeerChannels < 1 {
		c.Relay.PeerChannels = 1
	}
	return nil
}

// LoadEndpointConfig reads and validates an endpoint config file.
func LoadEndpointConfig(path string) (*EndpointConfig, error) {
	var cfg EndpointConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("psconfig: decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoggingConfig is the relay's `[logging]` table.
type LoggingConfig struct {
	LogDir                 string `toml:"log_dir"`
	DefaultLevel            string `toml:"default_level"`
	WebsocketsLevel         string `toml:"websockets_level"`
	CurrentClientInterval   int    `toml:"current_client_interval"`
	CurrentClientLimit      int    `toml:"current_client_limit"`
}

// RelayConfig is the relay daemon config file (spec §6).
type RelayConfig struct {
	Host            string          `toml:"host"`
	Port            int             `toml:"port"`
	CertFile        string          `toml:"certfile"`
	KeyFile         string          `toml:"keyfile"`
	MaxMessageBytes int64           `toml:"max_message_bytes"`
	Auth            RelayAuthConfig `toml:"auth"`
	Logging         LoggingConfig   `toml:"logging"`
}

// Validate applies the relay's defaults and range checks.
func (c *RelayConfig) Validate() error {
	if c.Port == 0 {
		c.Port = 8700
	}
	if c.Port < 1 || c.Port > 65535 {
		return &connector.ConfigurationError{Message: fmt.Sprintf("port %d out of range", c.Port)}
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return &connector.ConfigurationError{Message: "certfile and keyfile must be set together"}
	}
	return nil
}

// LoadRelayConfig reads and validates a relay config file.
func LoadRelayConfig(path string) (*RelayConfig, error) {
	var cfg RelayConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("psconfig: decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Home resolves $PROXYSTORE_HOME, falling back to
// $XDG_DATA_HOME/proxystore, falling back to ~/.local/share/proxystore,
// per spec §6's persisted-state layout.
func Home() (string, error) {
	if v := os.Getenv("PROXYSTORE_HOME"); v != "" {
		return v, nil
	}
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "proxystore"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("psconfig: resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "proxystore"), nil
}

// EndpointDir returns the persisted-state directory for a named endpoint,
// containing config.toml, daemon.pid, log.txt, and blobs.db.
func EndpointDir(name string) (string, error) {
	base, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, name), nil
}
