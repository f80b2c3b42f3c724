package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// DefaultCities are polled when CITIES is unset.
var DefaultCities = []string{"Delhi", "Mumbai", "Chennai", "Bangalore", "Kolkata", "Hyderabad"}

// DefaultTimezone defines calendar days when TIMEZONE is unset.
const DefaultTimezone = "Asia/Kolkata"

// Cities returns the configured city list from CITIES.
func Cities() []string {
	return ParseList(sharedcfg.EnvOrDefault("CITIES", strings.Join(DefaultCities, ",")))
}

// Timezone returns the TIMEZONE name that defines calendar days.
func Timezone() string {
	return sharedcfg.EnvOrDefault("TIMEZONE", DefaultTimezone)
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	Cities      []string
	CountryCode string

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	SourceTimeout      time.Duration

	PollInterval        time.Duration
	PollWorkers         int
	AggregationSchedule string
	Location            *time.Location

	// Rules. An empty RulesFile synthesizes the default temperature rule.
	RulesFile                  string
	RuleMaxDepth               int
	DefaultCooldown            time.Duration
	DefaultTempThreshold       float64
	DefaultConsecutiveBreaches int
	TemperatureUnit            domain.TemperatureUnit

	StoreDriver  string
	SQLitePath   string
	StoreTimeout time.Duration
	SinkTimeout  time.Duration

	// Optional alert sinks. Each is enabled only when its settings are present.
	KafkaBrokers    []string
	KafkaAlertTopic string
	MQTTBrokerURL   string
	MQTTTopicPrefix string
	MQTTClientID    string
	SMTPAddr        string
	SMTPUsername    string
	SMTPPassword    string
	SMTPFrom        string
	SMTPTo          []string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is applied first; it
// never overrides variables already set.
func Load() (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Cities:              Cities(),
		CountryCode:         sharedcfg.EnvOrDefault("COUNTRY_CODE", "IN"),
		OpenWeatherAPIKey:   os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL:  sharedcfg.EnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		AggregationSchedule: sharedcfg.EnvOrDefault("AGGREGATION_SCHEDULE", "5 0 * * *"),
		RulesFile:           os.Getenv("RULES_FILE"),
		StoreDriver:         sharedcfg.EnvOrDefault("STORE_DRIVER", StoreSQLite),
		SQLitePath:          sharedcfg.EnvOrDefault("SQLITE_PATH", "weather.db"),
		KafkaAlertTopic:     sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "weather-alerts"),
		MQTTBrokerURL:       os.Getenv("MQTT_BROKER_URL"),
		MQTTTopicPrefix:     sharedcfg.EnvOrDefault("MQTT_TOPIC_PREFIX", "weather/alerts"),
		MQTTClientID:        sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "weather-monitor"),
		SMTPAddr:            os.Getenv("SMTP_ADDR"),
		SMTPUsername:        os.Getenv("SMTP_USERNAME"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:            os.Getenv("SMTP_FROM"),
		SMTPTo:              ParseList(os.Getenv("SMTP_TO")),
		HTTPAddr:            sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:            sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"SOURCE_TIMEOUT", "5s", &cfg.SourceTimeout},
		{"POLL_INTERVAL", "5m", &cfg.PollInterval},
		{"DEFAULT_COOLDOWN", "30m", &cfg.DefaultCooldown},
		{"STORE_TIMEOUT", "5s", &cfg.StoreTimeout},
		{"SINK_TIMEOUT", "10s", &cfg.SinkTimeout},
	}
	for _, d := range durations {
		if *d.dest, err = parsePositiveDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.PollWorkers, err = parsePositiveInt("POLL_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.RuleMaxDepth, err = parsePositiveInt("RULE_MAX_DEPTH", 8); err != nil {
		return nil, err
	}
	if cfg.DefaultConsecutiveBreaches, err = parsePositiveInt("DEFAULT_CONSECUTIVE_BREACHES", 2); err != nil {
		return nil, err
	}
	if cfg.DefaultTempThreshold, err = strconv.ParseFloat(sharedcfg.EnvOrDefault("DEFAULT_TEMP_THRESHOLD", "35"), 64); err != nil {
		return nil, errors.New("invalid DEFAULT_TEMP_THRESHOLD")
	}
	if cfg.TemperatureUnit, err = domain.ParseTemperatureUnit(sharedcfg.EnvOrDefault("TEMPERATURE_UNIT", "celsius")); err != nil {
		return nil, fmt.Errorf("invalid TEMPERATURE_UNIT: %w", err)
	}
	if cfg.Location, err = time.LoadLocation(Timezone()); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.OpenWeatherAPIKey == "" {
		return errors.New("OPENWEATHER_API_KEY is required")
	}
	if len(c.Cities) == 0 {
		return errors.New("CITIES is required")
	}
	seen := make(map[string]bool, len(c.Cities))
	for _, city := range c.Cities {
		if seen[city] {
			return fmt.Errorf("CITIES lists %q twice", city)
		}
		seen[city] = true
	}
	switch c.StoreDriver {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.KafkaEnabled() && c.KafkaAlertTopic == "" {
		return errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// LogSettings returns the log level and format for the logger.
func (c *Config) LogSettings() (level, format string) {
	return c.LogLevel, c.LogFormat
}

// KafkaEnabled reports whether alerts are published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// MQTTEnabled reports whether alerts are published over MQTT.
func (c *Config) MQTTEnabled() bool { return c.MQTTBrokerURL != "" }

// EmailEnabled reports whether every SMTP setting needed for email alerts
// is present. Partial configuration disables the sink.
func (c *Config) EmailEnabled() bool {
	return c.SMTPAddr != "" && c.SMTPUsername != "" && c.SMTPPassword != "" &&
		c.SMTPFrom != "" && len(c.SMTPTo) > 0
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// LoadDotEnv loads .env from the working directory when present. Variables
// already set are kept.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// ParseList splits a comma-separated value, trimming blanks.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
