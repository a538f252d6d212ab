package toml

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/DABSquared/google-apps-ldap-server/pkg/config"
)

var (
	log *slog.Logger = slog.Default()
)

func SetLogger(logger *slog.Logger) {
	log = logger
}

// NewConfig reads and validates the config file.
func NewConfig(configFile string) (*config.Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("could not read config file %s: %w", configFile, err)
	}

	cfg, err := parseConfig(string(data))
	if err != nil {
		return nil, err
	}
	cfg.ConfigFile = configFile

	cfg, err = validateConfig(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseConfig(data string) (*config.Config, error) {
	cfg := new(config.Config)

	if _, err := toml.Decode(data, cfg); err != nil {
		return cfg, err
	}

	// Patch with default values where not specified
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 300
	}
	if cfg.LDAP.Listen == "" {
		cfg.LDAP.Listen = "0.0.0.0:10389"
	}
	if cfg.ClientSecretFile == "" {
		cfg.ClientSecretFile = "client_secret.json"
	}

	return cfg, nil
}

func validateConfig(cfg *config.Config) (*config.Config, error) {
	if cfg.Domain == "" {
		return cfg, fmt.Errorf("no domain was specified: please set the 'domain' option")
	}
	if len(strings.Split(cfg.Domain, ".")) != 2 {
		return cfg, fmt.Errorf("domain %q must have exactly two dot-separated labels, e.g. 'example.com'", cfg.Domain)
	}

	if cfg.LDAP.Enabled && len(cfg.LDAP.Listen) == 0 {
		return cfg, fmt.Errorf("no LDAP bind address was specified: please disable LDAP or use the 'listen' option")
	}
	if cfg.LDAP.TLS && (cfg.LDAP.TLSCertPath == "" || cfg.LDAP.TLSKeyPath == "") {
		return cfg, fmt.Errorf("LDAP TLS was requested without 'tlscertpath' and 'tlskeypath'")
	}

	// The scaffold entries (root plus the two containers) share the cache
	// with live traffic and are not pinned; a tiny capacity would let a
	// single listing evict them.
	if cfg.CacheSize < 16 {
		return cfg, fmt.Errorf("cachesize %d is too small - the minimum is 16", cfg.CacheSize)
	}

	for _, sa := range cfg.ServiceAccounts {
		if sa.Name == "" {
			return cfg, fmt.Errorf("a service account is missing its 'name'")
		}
		if sa.PassSHA256 == "" && sa.PassBcrypt == "" {
			log.Info(fmt.Sprintf("Service account '%s' has no password hash and will never bind", sa.Name))
		}
	}

	return cfg, nil
}
