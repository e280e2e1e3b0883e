package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Asset failure policies.
const (
	AssetPolicyAll     = "all"
	AssetPolicyPartial = "partial"
)

// Availability probe failure policies.
const (
	AvailabilityOnErrorUnavailable = "unavailable"
	AvailabilityOnErrorAbort       = "abort"
)

// Config is the root configuration for the storefront shell.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Bootstrap    BootstrapConfig    `mapstructure:"bootstrap"`
	Commerce     CommerceConfig     `mapstructure:"commerce"`
	Notification NotificationConfig `mapstructure:"notification"`
	Store        StoreConfig        `mapstructure:"store"`
	Assets       AssetsConfig       `mapstructure:"assets"`
	Theme        ThemeConfig        `mapstructure:"theme"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
	LogLevel     string `mapstructure:"log_level"`

	// SampleRatio in (0, 1) samples that share of traces; anything else samples all.
	SampleRatio    float64       `mapstructure:"sample_ratio"`
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

// BootstrapConfig controls the startup sequence itself.
type BootstrapConfig struct {
	MountTimeout        time.Duration `mapstructure:"mount_timeout"`
	AssetTimeout        time.Duration `mapstructure:"asset_timeout"`
	AssetPolicy         string        `mapstructure:"asset_policy" validate:"oneof=all partial"`
	AvailabilityOnError string        `mapstructure:"availability_on_error" validate:"oneof=unavailable abort"`
}

// CommerceConfig holds the WooCommerce REST credentials.
type CommerceConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	ConsumerKey     string        `mapstructure:"consumer_key" validate:"required"`
	ConsumerSecret  string        `mapstructure:"consumer_secret" validate:"required"`
	WPAPI           bool          `mapstructure:"wp_api"`
	Version         string        `mapstructure:"version" validate:"required"`
	QueryStringAuth bool          `mapstructure:"query_string_auth"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// NotificationConfig holds the push vendor settings. AppID is only required
// when notifications turn out to be available at mount time.
type NotificationConfig struct {
	AppID  string `mapstructure:"app_id" validate:"required"`
	APIURL string `mapstructure:"api_url" validate:"required,url"`
	// Enabled is the fallback answer for the availability probe when no
	// persisted user setting exists.
	Enabled  bool   `mapstructure:"enabled"`
	NATSURL  string `mapstructure:"nats_url"`
	DeviceID string `mapstructure:"device_id"`
}

type StoreConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type AssetsConfig struct {
	Dir       string `mapstructure:"dir"`
	CacheSize int    `mapstructure:"cache_size"`
}

type ThemeConfig struct {
	IsDark bool `mapstructure:"is_dark"`
}

// Addr returns the host:port of the store backend.
func (s StoreConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables with the STOREFRONT_ prefix (e.g. STOREFRONT_COMMERCE_URL).
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8082)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.service_name", "storefront")
	v.SetDefault("telemetry.log_level", "info")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.metric_interval", 10*time.Second)

	v.SetDefault("bootstrap.mount_timeout", 30*time.Second)
	v.SetDefault("bootstrap.asset_timeout", time.Minute)
	v.SetDefault("bootstrap.asset_policy", AssetPolicyAll)
	v.SetDefault("bootstrap.availability_on_error", AvailabilityOnErrorUnavailable)

	// Credentials have no defaults: they must come from the file or env.
	v.SetDefault("commerce.url", "")
	v.SetDefault("commerce.consumer_key", "")
	v.SetDefault("commerce.consumer_secret", "")
	v.SetDefault("commerce.wp_api", true)
	v.SetDefault("commerce.version", "wc/v2")
	v.SetDefault("commerce.query_string_auth", true)
	v.SetDefault("commerce.timeout", 15*time.Second)

	v.SetDefault("notification.app_id", "")
	v.SetDefault("notification.api_url", "https://onesignal.com/api/v1")
	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.nats_url", "")
	v.SetDefault("notification.device_id", "")

	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 6379)
	v.SetDefault("store.db", 0)
	v.SetDefault("store.key_prefix", "storefront")

	v.SetDefault("assets.dir", "assets")
	v.SetDefault("assets.cache_size", 32)

	v.SetDefault("theme.is_dark", false)
}
