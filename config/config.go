package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logging.level"`
	DB          DatabaseConfig
	SSH         SSHConfig
	Loader      LoaderConfig
	Redis       RedisConfig
	Elastic     ElasticConfig
	ServiceBus  ServiceBusConfig
	Tracing     TracingConfig
	Watch       WatchConfig
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"database.host"`
	Port     int    `mapstructure:"database.port"`
	Name     string `mapstructure:"database.name"`
	User     string `mapstructure:"database.user"`
	Password string `mapstructure:"database.password"`
	SSLMode  string `mapstructure:"database.ssl_mode"`
}

// SSHConfig holds the bastion tunnel configuration. An empty bastion host
// means the loader connects to PostgreSQL directly.
type SSHConfig struct {
	BastionHost string `mapstructure:"ssh.bastion_host"`
	BastionPort int    `mapstructure:"ssh.bastion_port"`
	User        string `mapstructure:"ssh.user"`
	KeyPath     string `mapstructure:"ssh.key_path"`
}

// LoaderConfig holds extraction and loading parameters
type LoaderConfig struct {
	BatchSize int    `mapstructure:"loader.batch_size"`
	CSVPath   string `mapstructure:"loader.csv_path"`
}

// RedisConfig holds the optional ingest-state cache configuration
type RedisConfig struct {
	Host     string        `mapstructure:"redis.host"`
	Port     int           `mapstructure:"redis.port"`
	Password string        `mapstructure:"redis.password"`
	DB       int           `mapstructure:"redis.db"`
	Enabled  bool          `mapstructure:"redis.enabled"`
	TTL      time.Duration `mapstructure:"redis.ttl"`
}

// ElasticConfig holds the optional event mirror configuration
type ElasticConfig struct {
	URL      string `mapstructure:"elastic.url"`
	Username string `mapstructure:"elastic.username"`
	Password string `mapstructure:"elastic.password"`
	Prefix   string `mapstructure:"elastic.prefix"`
	Index    string `mapstructure:"elastic.index"`
	Enabled  bool   `mapstructure:"elastic.enabled"`
}

// ServiceBusConfig holds the optional run-notification queue configuration
type ServiceBusConfig struct {
	ConnectionString string `mapstructure:"servicebus.connection_string"`
	QueueName        string `mapstructure:"servicebus.queue_name"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	LicenseKey     string `mapstructure:"tracing.license_key"`
	AppName        string `mapstructure:"tracing.app_name"`
	LogEnabled     bool   `mapstructure:"tracing.log_enabled"`
	DistribTracing bool   `mapstructure:"tracing.distributed_tracing_enabled"`
}

// WatchConfig holds the watch command's scheduler configuration
type WatchConfig struct {
	Interval       time.Duration `mapstructure:"watch.interval"`
	MetricsAddress string        `mapstructure:"watch.metrics_address"`
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Try to read the YAML config first
	if err := v.ReadInConfig(); err != nil {
		// If YAML not found, try ENV file
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			v.SetConfigName("app")
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				// Continue even if no config file is found - we'll use ENV vars and defaults
				fmt.Printf("Warning: No configuration file found: %v\n", err)
			}
		} else {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Enable environment variables to override config
	v.SetEnvPrefix("WHATSAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	config.SSH.KeyPath = expandHome(config.SSH.KeyPath)

	return config, nil
}

// ValidateForLoad checks the settings the production load path cannot run
// without. Debug mode needs none of them.
func (c Config) ValidateForLoad() error {
	if c.DB.Host == "" || c.DB.Name == "" || c.DB.User == "" {
		return errors.New("database host, name and user are required")
	}
	if c.SSH.BastionHost != "" {
		if c.SSH.User == "" {
			return errors.New("ssh user is required when a bastion host is set")
		}
		if _, err := os.Stat(c.SSH.KeyPath); err != nil {
			return errors.Wrapf(err, "ssh key %s is not readable", c.SSH.KeyPath)
		}
	}
	if c.Loader.BatchSize <= 0 {
		return errors.New("loader batch size must be positive")
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("logging.level", "info")

	// Database settings
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.user", "jodi")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")

	// SSH bastion settings
	v.SetDefault("ssh.bastion_host", "")
	v.SetDefault("ssh.bastion_port", 22)
	v.SetDefault("ssh.user", "ec2-user")
	v.SetDefault("ssh.key_path", "~/.ssh/id_rsa")

	// Loader settings
	v.SetDefault("loader.batch_size", 500)
	v.SetDefault("loader.csv_path", "data/raw/whatsapp_logs.csv")

	// Redis settings
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.ttl", "720h")

	// Elasticsearch settings
	v.SetDefault("elastic.url", "http://localhost:9200")
	v.SetDefault("elastic.prefix", "whatsapp")
	v.SetDefault("elastic.index", "membership-events")
	v.SetDefault("elastic.enabled", false)

	// Service Bus settings
	v.SetDefault("servicebus.queue_name", "whatsapp-ingest-runs")

	// Tracing settings
	v.SetDefault("tracing.app_name", "WhatsApp Log Loader")
	v.SetDefault("tracing.log_enabled", true)
	v.SetDefault("tracing.distributed_tracing_enabled", true)

	// Watch settings
	v.SetDefault("watch.interval", "1h")
	v.SetDefault("watch.metrics_address", "")
}

// DSN builds the PostgreSQL connection string, optionally pointed at the
// tunnel's local endpoint instead of the configured host.
func (c DatabaseConfig) DSN(hostOverride string, portOverride int) string {
	host, port := c.Host, c.Port
	if hostOverride != "" {
		host, port = hostOverride, portOverride
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// FormatIndex formats an Elasticsearch index name with the configured prefix
func FormatIndex(cfg ElasticConfig, index string) string {
	return cfg.Prefix + "-" + index
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
