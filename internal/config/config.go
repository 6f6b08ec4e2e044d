package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var validate = validator.New()

// ProviderConfig holds endpoints and credentials for the elevation providers.
type ProviderConfig struct {
	USGSBaseURL           string `validate:"omitempty,url"`
	OpenElevationBaseURL  string `validate:"omitempty,url"`
	OpenTopographyBaseURL string `validate:"omitempty,url"`
	OpenTopographyAPIKey  string
	OpenTopographyDataset string
	GoogleMapsAPIKey      string

	// MaxRetries is the number of retries per provider call after the first attempt.
	MaxRetries int `validate:"gte=0,lte=10"`
}

type AppConfig struct {
	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console text"`

	HTTPTimeout time.Duration `validate:"gt=0"`

	Providers ProviderConfig

	// MinRequestDelay spaces consecutive calls to the sequential provider.
	MinRequestDelay time.Duration `validate:"gte=0"`
	// AcceptMinSuccessful and AcceptMinRatio decide when a batch result is good enough.
	AcceptMinSuccessful int     `validate:"gte=0"`
	AcceptMinRatio      float64 `validate:"gte=0,lte=1"`
	// SequentialConcurrency > 1 runs that many single-point lookups at once.
	SequentialConcurrency int `validate:"gte=1,lte=16"`

	// Itinerary files refreshed by the scheduler.
	ItineraryFiles []string
	// RefreshInterval controls how often itineraries are resolved again (0 = once at start).
	RefreshInterval time.Duration `validate:"gte=0"`

	// In-memory store retention.
	StoreMaxHistory int           `validate:"gte=0"` // max number of reports per itinerary (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of reports (0 = unlimited)

	// Optional report sinks; each one is disabled when left empty.
	ReportDir    string
	DatabaseDSN  string
	KafkaBrokers []string
	KafkaTopic   string `validate:"required_with=KafkaBrokers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("http_timeout", "10s")

	v.SetDefault("usgs_base_url", "")
	v.SetDefault("open_elevation_base_url", "")
	v.SetDefault("opentopography_base_url", "")
	v.SetDefault("opentopography_api_key", "")
	v.SetDefault("opentopography_dataset", "")
	v.SetDefault("google_maps_api_key", "")
	v.SetDefault("provider_max_retries", 2)

	v.SetDefault("min_request_delay", "1s")
	v.SetDefault("accept_min_successful", 1)
	v.SetDefault("accept_min_ratio", 0.0)
	v.SetDefault("sequential_concurrency", 1)

	v.SetDefault("itinerary_files", "")
	v.SetDefault("refresh_interval", "6h")

	v.SetDefault("store_max_history", 20)
	v.SetDefault("store_max_age", "168h")

	v.SetDefault("report_dir", "")
	v.SetDefault("database_dsn", "")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "elevation.reports")
}

// Load reads configuration from .env, an optional config.yaml and the
// environment, in increasing order of precedence.
func Load(logger *zap.Logger) (*AppConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded", zap.Error(err))
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{
		Port:      v.GetString("port"),
		LogLevel:  strings.ToLower(v.GetString("log_level")),
		LogFormat: strings.ToLower(v.GetString("log_format")),
		Providers: ProviderConfig{
			USGSBaseURL:           v.GetString("usgs_base_url"),
			OpenElevationBaseURL:  v.GetString("open_elevation_base_url"),
			OpenTopographyBaseURL: v.GetString("opentopography_base_url"),
			OpenTopographyAPIKey:  v.GetString("opentopography_api_key"),
			OpenTopographyDataset: v.GetString("opentopography_dataset"),
			GoogleMapsAPIKey:      v.GetString("google_maps_api_key"),
			MaxRetries:            v.GetInt("provider_max_retries"),
		},
		AcceptMinSuccessful:   v.GetInt("accept_min_successful"),
		AcceptMinRatio:        v.GetFloat64("accept_min_ratio"),
		SequentialConcurrency: v.GetInt("sequential_concurrency"),
		ItineraryFiles:        splitList(v.GetString("itinerary_files")),
		StoreMaxHistory:       v.GetInt("store_max_history"),
		ReportDir:             v.GetString("report_dir"),
		DatabaseDSN:           v.GetString("database_dsn"),
		KafkaBrokers:          splitList(v.GetString("kafka_brokers")),
		KafkaTopic:            v.GetString("kafka_topic"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"http_timeout", &cfg.HTTPTimeout},
		{"min_request_delay", &cfg.MinRequestDelay},
		{"refresh_interval", &cfg.RefreshInterval},
		{"store_max_age", &cfg.StoreMaxAge},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", strings.ToUpper(d.key), err)
		}
		*d.dst = parsed
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
