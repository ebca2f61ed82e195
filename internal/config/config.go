package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"warc-ops/internal/model"
)

const (
	EnvPrefix  = "WARCOPS"
	ConfigName = "warc-ops"
	ConfigRoot = ".warc-ops"

	DefaultCompletionMarker = "Download finished"
)

type Config struct {
	Sync     SyncConfig     `mapstructure:"sync"`
	Priority PriorityConfig `mapstructure:"priority"`
	Runner   RunnerConfig   `mapstructure:"runner"`
	Log      LogConfig      `mapstructure:"log"`
	Sinks    SinksConfig    `mapstructure:"sinks"`

	v *viper.Viper
}

type SyncConfig struct {
	WARCGlobs       []string `mapstructure:"warc_globs"`
	CollectionsRoot string   `mapstructure:"collections_root"`
	Collection      string   `mapstructure:"collection"`
	ArchiveDir      string   `mapstructure:"archive_dir"`
	IndexDir        string   `mapstructure:"index_dir"`
	Indexer         string   `mapstructure:"indexer"`
	ManagerBin      string   `mapstructure:"manager_bin"`
	CDXJIndexerBin  string   `mapstructure:"cdxj_indexer_bin"`
	FailurePolicy   string   `mapstructure:"failure_policy"`
}

type PriorityConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Nice        int  `mapstructure:"nice"`
	IONiceClass int  `mapstructure:"ionice_class"`
}

type RunnerConfig struct {
	DownloaderBin    string `mapstructure:"downloader_bin"`
	OutputRoot       string `mapstructure:"output_root"`
	Concurrency      int    `mapstructure:"concurrency"`
	CompletionMarker string `mapstructure:"completion_marker"`
	Echo             bool   `mapstructure:"echo"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type SinksConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
	S3    S3Config    `mapstructure:"s3"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Channel   string        `mapstructure:"channel"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"`
}

// legacyEnv carries the unprefixed variables the old shell scripts honoured.
type legacyEnv struct {
	Indexer       string `envconfig:"INDEXER"`
	Downloader    string `envconfig:"WB_DOWNLOADER"`
	Manager       string `envconfig:"WB_MANAGER"`
	CDXJIndexer   string `envconfig:"CDXJ_INDEXER"`
	CollectionDir string `envconfig:"COLLECTIONS_ROOT"`
	Collection    string `envconfig:"COLLECTION"`
}

var concurrencyPattern = regexp.MustCompile(`^[1-9][0-9]*$`)

// Load builds the configuration from defaults, an optional YAML file, WARCOPS_*
// variables and the legacy unprefixed variables, in increasing precedence.
// Flags are bound afterwards through Viper().
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	} else {
		for _, name := range []string{ConfigName + ".yaml", ConfigName + ".yml"} {
			if _, err := os.Stat(name); err == nil {
				v.SetConfigFile(name)
				if err := v.ReadInConfig(); err != nil {
					return nil, fmt.Errorf("reading config file %s: %w", name, err)
				}
				break
			}
		}
		localConfigPath := filepath.Join(ConfigRoot, "config.yaml")
		if _, err := os.Stat(localConfigPath); err == nil {
			v.SetConfigFile(localConfigPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merging local config: %w", err)
			}
		}
	}

	var legacy legacyEnv
	if err := envconfig.Process("", &legacy); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	applyLegacy(v, legacy)

	cfg := &Config{v: v}
	if err := cfg.Refresh(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Refresh re-reads the struct from viper, picking up flags bound after Load.
func (c *Config) Refresh() error {
	v := c.v
	var fresh Config
	if err := v.Unmarshal(&fresh); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}
	*c = fresh
	c.v = v
	c.Sync.WARCGlobs = splitList(strings.Join(c.Sync.WARCGlobs, ","))
	c.resolveDerived()
	return nil
}

// Override pins key to value above every other source. Used for flags the
// operator set explicitly.
func (c *Config) Override(key string, value any) {
	c.v.Set(key, value)
}

func (c *Config) Viper() *viper.Viper {
	return c.v
}

func (c *Config) ConfigFileUsed() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// CollectionDir is <collections_root>/<collection>.
func (c *Config) CollectionDir() string {
	return filepath.Join(c.Sync.CollectionsRoot, c.Sync.Collection)
}

func (c *Config) resolveDerived() {
	if strings.TrimSpace(c.Sync.ArchiveDir) == "" {
		c.Sync.ArchiveDir = filepath.Join(c.CollectionDir(), "archive")
	}
	if strings.TrimSpace(c.Sync.IndexDir) == "" {
		c.Sync.IndexDir = filepath.Join(c.CollectionDir(), "indexes")
	}
	if strings.TrimSpace(c.Runner.CompletionMarker) == "" {
		c.Runner.CompletionMarker = DefaultCompletionMarker
	}
}

// ValidateSync checks everything the sync orchestrator depends on and reports
// all problems at once.
func (c *Config) ValidateSync() error {
	var problems []string
	if len(c.Sync.WARCGlobs) == 0 {
		problems = append(problems, "  sync.warc_globs must list at least one pattern")
	}
	for _, g := range c.Sync.WARCGlobs {
		if _, err := filepath.Match(g, ""); err != nil {
			problems = append(problems, fmt.Sprintf("  sync.warc_globs: bad pattern %q", g))
		}
	}
	if strings.TrimSpace(c.Sync.Collection) == "" {
		problems = append(problems, "  sync.collection is required")
	}
	mode, err := model.NormalizeIndexerMode(c.Sync.Indexer)
	if err != nil {
		problems = append(problems, "  "+err.Error())
	} else {
		c.Sync.Indexer = mode
	}
	policy, err := model.NormalizeFailurePolicy(c.Sync.FailurePolicy)
	if err != nil {
		problems = append(problems, "  "+err.Error())
	} else {
		c.Sync.FailurePolicy = policy
	}
	if mode == model.IndexerManager && strings.TrimSpace(c.Sync.ManagerBin) == "" {
		problems = append(problems, "  sync.manager_bin is required for the manager indexer")
	}
	if mode == model.IndexerCDXJ && strings.TrimSpace(c.Sync.CDXJIndexerBin) == "" {
		problems = append(problems, "  sync.cdxj_indexer_bin is required for the cdxj indexer")
	}
	if c.Priority.Enabled && (c.Priority.Nice < 0 || c.Priority.Nice > 19) {
		problems = append(problems, "  priority.nice must be between 0 and 19")
	}
	if c.Priority.Enabled && (c.Priority.IONiceClass < 1 || c.Priority.IONiceClass > 3) {
		problems = append(problems, "  priority.ionice_class must be 1, 2 or 3")
	}
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// ValidConcurrency reports whether raw is a positive integer without sign or
// leading zeros.
func ValidConcurrency(raw string) bool {
	return concurrencyPattern.MatchString(raw)
}

func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sync.warc_globs", []string{
		"/data/crawls/collections/*/archive/*.warc.gz",
		"/data/crawls/collections/*/archive/*.warc",
	})
	v.SetDefault("sync.collections_root", "/webarchive/collections")
	v.SetDefault("sync.collection", "web")
	v.SetDefault("sync.archive_dir", "")
	v.SetDefault("sync.index_dir", "")
	v.SetDefault("sync.indexer", model.IndexerManager)
	v.SetDefault("sync.manager_bin", "wb-manager")
	v.SetDefault("sync.cdxj_indexer_bin", "cdxj-indexer")
	v.SetDefault("sync.failure_policy", model.FailurePolicyFailFast)

	v.SetDefault("priority.enabled", true)
	v.SetDefault("priority.nice", 19)
	v.SetDefault("priority.ionice_class", 3)

	v.SetDefault("runner.downloader_bin", "wayback_machine_downloader")
	v.SetDefault("runner.output_root", "/data/wayback")
	v.SetDefault("runner.concurrency", 5)
	v.SetDefault("runner.completion_marker", DefaultCompletionMarker)
	v.SetDefault("runner.echo", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("sinks.redis.addr", "")
	v.SetDefault("sinks.redis.password", "")
	v.SetDefault("sinks.redis.db", 0)
	v.SetDefault("sinks.redis.key_prefix", "warc-ops:run:")
	v.SetDefault("sinks.redis.channel", "warc-ops:runs")
	v.SetDefault("sinks.redis.ttl", 7*24*time.Hour)

	v.SetDefault("sinks.s3.endpoint", "")
	v.SetDefault("sinks.s3.access_key", "")
	v.SetDefault("sinks.s3.secret_key", "")
	v.SetDefault("sinks.s3.bucket", "")
	v.SetDefault("sinks.s3.region", "")
	v.SetDefault("sinks.s3.use_ssl", true)
	v.SetDefault("sinks.s3.prefix", "wayback-runs/")
}

func applyLegacy(v *viper.Viper, legacy legacyEnv) {
	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			v.Set(key, strings.TrimSpace(value))
		}
	}
	set("sync.indexer", legacy.Indexer)
	set("runner.downloader_bin", legacy.Downloader)
	set("sync.manager_bin", legacy.Manager)
	set("sync.cdxj_indexer_bin", legacy.CDXJIndexer)
	set("sync.collections_root", legacy.CollectionDir)
	set("sync.collection", legacy.Collection)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
