package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/termmeta/internal/paths"
	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// Config keys. Nested keys use viper's dotted form; the environment form is
// TERMMETA_ followed by the key with dots replaced by underscores.
const (
	keyBackend        = "backend"
	keyDataDir        = "data_dir"
	keyDSN            = "dsn"
	keyTablePrefix    = "table_prefix"
	keyNetworkID      = "network_id"
	keyLargeThreshold = "large_network_threshold"
	keyRedisAddr      = "cache.redis_addr"
	keyCacheTTL       = "cache.ttl"
)

const envPrefix = "TERMMETA"

// configFile is the document written to config.yaml by init.
type configFile struct {
	Backend               string      `yaml:"backend"`
	DataDir               string      `yaml:"data_dir,omitempty"`
	DSN                   string      `yaml:"dsn,omitempty"`
	TablePrefix           string      `yaml:"table_prefix"`
	NetworkID             int64       `yaml:"network_id"`
	LargeNetworkThreshold int         `yaml:"large_network_threshold"`
	Cache                 cacheConfig `yaml:"cache"`
}

type cacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	TTL       string `yaml:"ttl"`
}

func defaultConfigFile(dataDir string) configFile {
	return configFile{
		Backend:               types.BackendSQLite,
		DataDir:               dataDir,
		TablePrefix:           types.DefaultTablePrefix,
		NetworkID:             types.DefaultNetworkID,
		LargeNetworkThreshold: types.DefaultLargeNetworkThreshold,
		Cache: cacheConfig{
			TTL: types.DefaultCacheTTL.String(),
		},
	}
}

// writeConfigIfMissing writes a default config.yaml. An existing file is
// left alone.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(defaultConfigFile(dataDir))
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := "# termmeta configuration\n# Every key can be overridden with TERMMETA_<KEY>, e.g. TERMMETA_CACHE_REDIS_ADDR.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// newViper returns a viper instance with defaults and environment binding.
// It reads config.yaml from configDir when present.
func newViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(keyBackend, types.BackendSQLite)
	v.SetDefault(keyTablePrefix, types.DefaultTablePrefix)
	v.SetDefault(keyNetworkID, types.DefaultNetworkID)
	v.SetDefault(keyLargeThreshold, types.DefaultLargeNetworkThreshold)
	v.SetDefault(keyCacheTTL, types.DefaultCacheTTL)
	v.SetDefault(keyRedisAddr, "")
	v.SetDefault(keyDSN, "")
	v.SetDefault(keyDataDir, "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(paths.ConfigFile(configDir))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// loadConfig resolves the configuration directory, reads it and applies the
// data directory flag.
func loadConfig() (types.Config, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := newViper(configDir)
	if err != nil {
		return types.Config{}, err
	}
	return configFromViper(v, flags.dataDir)
}

func configFromViper(v *viper.Viper, dataDirFlag string) (types.Config, error) {
	cfg := types.Config{
		Backend:               v.GetString(keyBackend),
		DSN:                   v.GetString(keyDSN),
		TablePrefix:           v.GetString(keyTablePrefix),
		NetworkID:             v.GetInt64(keyNetworkID),
		LargeNetworkThreshold: v.GetInt(keyLargeThreshold),
		Cache: types.CacheConfig{
			RedisAddr: v.GetString(keyRedisAddr),
			TTL:       v.GetDuration(keyCacheTTL),
		},
	}
	if cfg.Backend == types.BackendSQLite {
		dataDir, err := paths.ResolveDataDir(dataDirFlag, v.GetString(keyDataDir))
		if err != nil {
			return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = dataDir
	}
	return cfg, cfg.Validate()
}
