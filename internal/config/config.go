package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"json-dir":    "output.json_dir",
	"images-dir":  "output.images_dir",
	"max-workers": "storefront.max_workers",
	"max-pages":   "storefront.max_pages",
}

// RegisterFlags defines the flags LoadWithFlags understands.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("json-dir", "", "directory of the interchange JSON files")
	flags.String("images-dir", "", "directory of downloaded product images")
	flags.Int("max-workers", 0, "categories crawled concurrently")
	flags.Int("max-pages", 0, "listing pages crawled per category")
}

// Config holds all configuration for the application
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Storefront StorefrontConfig `mapstructure:"storefront"`
	Output     OutputConfig     `mapstructure:"output"`
	PrestaShop PrestaShopConfig `mapstructure:"prestashop"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StorefrontConfig holds settings for crawling the source shop
type StorefrontConfig struct {
	BaseURL              string   `mapstructure:"base_url"`
	StartPath            string   `mapstructure:"start_path"`
	Timeout              int      `mapstructure:"timeout"`
	MaxRetries           int      `mapstructure:"max_retries"`
	MaxWorkers           int      `mapstructure:"max_workers"`
	ProductWorkers       int      `mapstructure:"product_workers"`
	MaxPages             int      `mapstructure:"max_pages"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	CooldownSeconds      int      `mapstructure:"cooldown_seconds"`
	InsecureSkipVerify   bool     `mapstructure:"insecure_skip_verify"`
	Proxies              []string `mapstructure:"proxies"`
}

// OutputConfig holds the interchange and image locations shared by crawl and sync
type OutputConfig struct {
	JSONDir   string `mapstructure:"json_dir"`
	ImagesDir string `mapstructure:"images_dir"`
}

// PrestaShopConfig holds webservice access for the target shop
type PrestaShopConfig struct {
	APIURL               string `mapstructure:"api_url"`
	APIKey               string `mapstructure:"api_key"`
	LanguageID           int    `mapstructure:"language_id"`
	RootCategoryID       int    `mapstructure:"root_category_id"`
	ProtectedCategoryIDs []int  `mapstructure:"protected_category_ids"`
	Timeout              int    `mapstructure:"timeout"`
	MaxRetries           int    `mapstructure:"max_retries"`
	ListPageSize         int    `mapstructure:"list_page_size"`
	InsecureSkipVerify   bool   `mapstructure:"insecure_skip_verify"`
}

// CacheConfig selects where name -> id mappings are kept
type CacheConfig struct {
	Backend          string `mapstructure:"backend"` // file or redis
	CategoryFile     string `mapstructure:"category_file"`
	ManufacturerFile string `mapstructure:"manufacturer_file"`
	RedisPrefix      string `mapstructure:"redis_prefix"`
}

type SyncConfig struct {
	Stock   StockConfig   `mapstructure:"stock"`
	Weights WeightsConfig `mapstructure:"weights"`
}

type StockConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Min     int  `mapstructure:"min"`
	Max     int  `mapstructure:"max"`
}

type WeightsConfig struct {
	First float64 `mapstructure:"first"`
	Min   float64 `mapstructure:"min"`
	Max   float64 `mapstructure:"max"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load loads configuration from a YAML file with environment variable overrides.
// An empty path looks for config.yaml in the working directory.
func Load(path string) (*Config, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags is Load with flags from RegisterFlags taking precedence over
// the file and the environment when they are set.
func LoadWithFlags(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Storefront.MaxWorkers <= 0 {
		return fmt.Errorf("storefront.max_workers must be positive, got %d", c.Storefront.MaxWorkers)
	}
	if c.Storefront.MaxPages <= 0 {
		return fmt.Errorf("storefront.max_pages must be positive, got %d", c.Storefront.MaxPages)
	}
	switch c.Cache.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("cache.backend must be file or redis, got %q", c.Cache.Backend)
	}
	if c.Sync.Stock.Min > c.Sync.Stock.Max {
		return fmt.Errorf("sync.stock.min (%d) exceeds sync.stock.max (%d)", c.Sync.Stock.Min, c.Sync.Stock.Max)
	}
	if c.Sync.Weights.Min > c.Sync.Weights.Max {
		return fmt.Errorf("sync.weights.min exceeds sync.weights.max")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("storefront.base_url", "https://www.example-handles.pl")
	v.SetDefault("storefront.start_path", "/")
	v.SetDefault("storefront.timeout", 30)
	v.SetDefault("storefront.max_retries", 3)
	v.SetDefault("storefront.max_workers", 10)
	v.SetDefault("storefront.product_workers", 4)
	v.SetDefault("storefront.max_pages", 3)
	v.SetDefault("storefront.max_requests_per_second", 5)
	v.SetDefault("storefront.cooldown_seconds", 300)
	v.SetDefault("storefront.insecure_skip_verify", false)

	v.SetDefault("output.json_dir", "./scrapper_results/json")
	v.SetDefault("output.images_dir", "./scrapper_results/images")

	v.SetDefault("prestashop.api_url", "http://localhost:8080/api")
	v.SetDefault("prestashop.api_key", "")
	v.SetDefault("prestashop.language_id", 1)
	v.SetDefault("prestashop.root_category_id", 2)
	v.SetDefault("prestashop.protected_category_ids", []int{1, 2})
	v.SetDefault("prestashop.timeout", 30)
	v.SetDefault("prestashop.max_retries", 2)
	v.SetDefault("prestashop.list_page_size", 100)
	v.SetDefault("prestashop.insecure_skip_verify", false)

	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.category_file", "category_ids.json")
	v.SetDefault("cache.manufacturer_file", "manufacturers_ids.json")
	v.SetDefault("cache.redis_prefix", "mirror:cache:")

	v.SetDefault("sync.stock.enabled", true)
	v.SetDefault("sync.stock.min", 1)
	v.SetDefault("sync.stock.max", 100)
	v.SetDefault("sync.weights.first", 100.0)
	v.SetDefault("sync.weights.min", 0.01)
	v.SetDefault("sync.weights.max", 0.7)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "catalog_mirror")
	v.SetDefault("database.user", "mirror")
	v.SetDefault("database.password", "mirror")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)

	v.SetDefault("metrics.addr", "")
}
