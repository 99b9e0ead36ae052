package types

import (
	"errors"
	"regexp"
	"time"
)

// Config holds backend selection and parameters for Backend.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
	DSN     string `json:"dsn,omitempty" yaml:"dsn,omitempty"`

	// TablePrefix is the base prefix of every per-site table. Site 1 uses it
	// as is; site N uses TablePrefix + "N_".
	TablePrefix string `json:"table_prefix,omitempty" yaml:"table_prefix,omitempty"`

	// NetworkID selects which network's sites are enumerated on network-wide
	// activation.
	NetworkID int64 `json:"network_id,omitempty" yaml:"network_id,omitempty"`

	// LargeNetworkThreshold is the site count above which network-wide
	// activation skips per-site installation.
	LargeNetworkThreshold int `json:"large_network_threshold,omitempty" yaml:"large_network_threshold,omitempty"`

	Cache CacheConfig `json:"cache" yaml:"cache"`
}

// CacheConfig configures the metadata object cache. An empty RedisAddr
// disables caching.
type CacheConfig struct {
	RedisAddr string        `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	TTL       time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Defaults applied by the Get* accessors.
const (
	DefaultTablePrefix           = "wp_"
	DefaultNetworkID             = 1
	DefaultLargeNetworkThreshold = 10000
	DefaultCacheTTL              = 10 * time.Minute
)

// Config validation errors.
var (
	ErrBackendEmpty      = errors.New("backend must not be empty")
	ErrBackendUnknown    = errors.New("unknown backend")
	ErrDSNEmpty          = errors.New("dsn must not be empty for postgres backend")
	ErrTablePrefixFormat = errors.New("table prefix may only contain letters, digits and underscores")
	ErrThresholdInvalid  = errors.New("large network threshold must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
}

var tablePrefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendPostgres && c.DSN == "" {
		return ErrDSNEmpty
	}
	// The prefix is interpolated into DDL and queries.
	if !tablePrefixPattern.MatchString(c.TablePrefix) {
		return ErrTablePrefixFormat
	}
	if c.LargeNetworkThreshold < 0 {
		return ErrThresholdInvalid
	}
	return nil
}

// GetTablePrefix returns the base table prefix, defaulting to "wp_".
func (c Config) GetTablePrefix() string {
	if c.TablePrefix == "" {
		return DefaultTablePrefix
	}
	return c.TablePrefix
}

// GetNetworkID returns the configured network, defaulting to 1.
func (c Config) GetNetworkID() int64 {
	if c.NetworkID <= 0 {
		return DefaultNetworkID
	}
	return c.NetworkID
}

// GetLargeNetworkThreshold returns the large network threshold, defaulting
// to 10000 sites.
func (c Config) GetLargeNetworkThreshold() int {
	if c.LargeNetworkThreshold == 0 {
		return DefaultLargeNetworkThreshold
	}
	return c.LargeNetworkThreshold
}

// GetTTL returns the cache entry lifetime, defaulting to ten minutes.
func (c CacheConfig) GetTTL() time.Duration {
	if c.TTL <= 0 {
		return DefaultCacheTTL
	}
	return c.TTL
}
