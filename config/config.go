// Package config loads the harness configuration from YAML.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/report"
	"gopkg.in/yaml.v3"
)

// Config holds all harness configuration.
type Config struct {
	Adapter           string         `yaml:"adapter"`
	DeviceName        string         `yaml:"device_name"`
	Tester            TesterConfig   `yaml:"tester"`
	Security          SecurityConfig `yaml:"security"`
	Authorization     string         `yaml:"authorization"` // "auto" or "prompt"
	ClearOnDisconnect bool           `yaml:"clear_on_disconnect"`
	AutoConnect       bool           `yaml:"auto_connect"`
	Scan              bool           `yaml:"scan"`
	Format            string         `yaml:"format"` // "text" or "json"
	LogLevel          string         `yaml:"log_level"`
}

// TesterConfig is the peer the connect command dials.
type TesterConfig struct {
	Address string `yaml:"address"`
	Type    string `yaml:"type"` // "public" or "random"
}

// SecurityConfig is the pairing configuration pushed at start-up.
type SecurityConfig struct {
	IOCapability string `yaml:"io_capability"`
	MITM         bool   `yaml:"mitm"`
	Bondable     bool   `yaml:"bondable"`
	OOB          bool   `yaml:"oob"`
	OOBData      string `yaml:"oob_data"`
	MinKeySize   int    `yaml:"min_key_size"`
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "blecentral", "config.yaml")
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Adapter:    "hci0",
		DeviceName: "blecentral",
		Tester: TesterConfig{
			Address: "00:1B:DC:07:32:EF",
			Type:    "public",
		},
		Security: SecurityConfig{
			IOCapability: "NoInputNoOutput",
			OOBData:      string(blecentral.DefaultOOBData[:]),
			MinKeySize:   blecentral.MinEncryptionKeySize,
		},
		Authorization: "auto",
		Scan:          true,
		Format:        "text",
		LogLevel:      "info",
	}
}

// Load reads and parses a YAML config file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if os.IsNotExist(errors.Cause(err)) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Adapter == "" {
		return errors.New("adapter must not be empty")
	}
	if _, err := c.TesterAddr(); err != nil {
		return errors.Wrap(err, "tester")
	}
	if _, err := c.SecurityPolicy(); err != nil {
		return errors.Wrap(err, "security")
	}
	if _, err := blecentral.ParseAuthPolicy(c.Authorization); err != nil {
		return err
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return err
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// TesterAddr parses the tester address.
func (c *Config) TesterAddr() (blecentral.Addr, error) {
	t, err := blecentral.ParseAddrType(c.Tester.Type)
	if err != nil {
		return blecentral.Addr{}, err
	}
	return blecentral.ParseAddr(c.Tester.Address, t)
}

// SecurityPolicy converts the security section.
func (c *Config) SecurityPolicy() (blecentral.SecurityPolicy, error) {
	p := blecentral.DefaultSecurityPolicy()

	ioc, err := blecentral.ParseIOCapability(c.Security.IOCapability)
	if err != nil {
		return p, err
	}
	p.IOCapability = ioc
	p.MITM = c.Security.MITM
	p.Bondable = c.Security.Bondable
	p.OOBAvailable = c.Security.OOB
	p.MinKeySize = c.Security.MinKeySize

	if len(c.Security.OOBData) != len(p.OOBData) {
		return p, errors.Errorf("oob_data must be %d bytes, got %d", len(p.OOBData), len(c.Security.OOBData))
	}
	copy(p.OOBData[:], c.Security.OOBData)

	return p, p.Validate()
}

// Options converts the config into harness options.
func (c *Config) Options() ([]blecentral.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	tester, _ := c.TesterAddr()
	policy, _ := c.SecurityPolicy()
	auth, _ := blecentral.ParseAuthPolicy(c.Authorization)

	return []blecentral.Option{
		blecentral.OptDeviceName(c.DeviceName),
		blecentral.OptTester(tester),
		blecentral.OptSecurityPolicy(policy),
		blecentral.OptAuthorizationPolicy(auth),
		blecentral.OptClearOnDisconnect(c.ClearOnDisconnect),
		blecentral.OptAutoConnect(c.AutoConnect),
		blecentral.OptReportFormat(c.Format),
	}, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
