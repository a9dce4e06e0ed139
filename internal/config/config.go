// Path: internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Role names for the partitioned API key pool.
const (
	RoleHunting    = "hunting"
	RoleTracking   = "tracking"
	RoleArcheology = "archeology"
)

// Config holds all configuration for the pipeline.
type Config struct {
	Database DatabaseConfig
	Vault    VaultConfig
	API      APIConfig
	Janitor  JanitorConfig
}

// DatabaseConfig holds the hot-tier (Postgres) connection settings.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

// VaultConfig selects and configures the cold-tier storage provider.
type VaultConfig struct {
	Provider       string `mapstructure:"provider"` // "gcs" or "mongo"
	GCSBucket      string `mapstructure:"gcs_bucket"`
	GCSCredentials string `mapstructure:"gcs_credentials"`
	MongoURI       string `mapstructure:"mongo_uri"`
	MongoDatabase  string `mapstructure:"mongo_database"`
}

// APIConfig holds the external API key pool and pacing settings.
type APIConfig struct {
	// KeyPool is a JSON list of API keys. A bare string is accepted and
	// treated as a single-key pool.
	KeyPool string `mapstructure:"key_pool"`
	// ComplianceMode restricts the pool to its first key so the process
	// stays within a single standard quota.
	ComplianceMode bool `mapstructure:"compliance_mode"`

	// Reserved sub-pool sizes per agent role. When the reservations
	// exceed the pool size, every role falls back to sharing the full
	// pool instead of failing.
	HuntingReserve    int `mapstructure:"hunting_reserve"`
	TrackingReserve   int `mapstructure:"tracking_reserve"`
	ArcheologyReserve int `mapstructure:"archeology_reserve"`

	RequestsPerSecond int `mapstructure:"requests_per_second"`
	BurstLimit        int `mapstructure:"burst_limit"`
}

// JanitorConfig holds the retention and cleanup settings.
type JanitorConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RetentionDays int  `mapstructure:"retention_days"`
	SafetyCheck   bool `mapstructure:"safety_check"`
	ArchiveBatch  int  `mapstructure:"archive_batch"`
}

// Load loads the configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetDefault("DATABASE.MAX_CONNS", 20)
	viper.SetDefault("VAULT.PROVIDER", "gcs")
	viper.SetDefault("VAULT.MONGO_DATABASE", "viralvelocity")
	viper.SetDefault("API.COMPLIANCE_MODE", true)
	viper.SetDefault("API.HUNTING_RESERVE", 1)
	viper.SetDefault("API.TRACKING_RESERVE", 1)
	viper.SetDefault("API.ARCHEOLOGY_RESERVE", 0)
	viper.SetDefault("API.REQUESTS_PER_SECOND", 5)
	viper.SetDefault("API.BURST_LIMIT", 10)
	viper.SetDefault("JANITOR.ENABLED", true)
	viper.SetDefault("JANITOR.RETENTION_DAYS", 7)
	viper.SetDefault("JANITOR.SAFETY_CHECK", true)
	viper.SetDefault("JANITOR.ARCHIVE_BATCH", 5000)

	// Unmarshal only visits keys viper already knows about; settings with
	// no natural default still need registering, or env-only values
	// (DATABASE_URL, API_KEY_POOL, the vault credentials) never surface.
	for _, key := range []string{
		"DATABASE.URL",
		"API.KEY_POOL",
		"VAULT.GCS_BUCKET",
		"VAULT.GCS_CREDENTIALS",
		"VAULT.MONGO_URI",
	} {
		viper.SetDefault(key, "")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.API.KeyPool == "" {
		return nil, fmt.Errorf("API_KEY_POOL is required")
	}

	return &cfg, nil
}

// Keys parses the configured key pool. Compliance mode truncates the pool
// to its first key.
func (c *APIConfig) Keys() []string {
	var keys []string
	if err := json.Unmarshal([]byte(c.KeyPool), &keys); err != nil {
		// Not a JSON list: treat the raw value as a single key.
		keys = []string{c.KeyPool}
	}
	if c.ComplianceMode && len(keys) > 1 {
		keys = keys[:1]
	}
	return keys
}

// KeyRings partitions the key pool into disjoint role-scoped sub-pools of
// the reserved sizes, in pool order. Leftover keys stay with the hunting
// role, which burns quota fastest. If the reservations exceed the pool
// size, partitioning is abandoned and every role shares the full pool.
func (c *APIConfig) KeyRings() map[string][]string {
	keys := c.Keys()
	total := c.HuntingReserve + c.TrackingReserve + c.ArcheologyReserve

	if total > len(keys) {
		return map[string][]string{
			RoleHunting:    keys,
			RoleTracking:   keys,
			RoleArcheology: keys,
		}
	}

	rings := make(map[string][]string, 3)
	cursor := 0
	carve := func(n int) []string {
		part := keys[cursor : cursor+n]
		cursor += n
		return part
	}
	rings[RoleTracking] = carve(c.TrackingReserve)
	rings[RoleArcheology] = carve(c.ArcheologyReserve)
	// Hunting takes its reservation plus everything left over.
	rings[RoleHunting] = keys[cursor:]
	return rings
}
