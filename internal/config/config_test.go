package config

import (
	"testing"
	"time"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "ow-test-key"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", testAPIKey)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultCities, cfg.Cities)
	assert.Equal(t, "IN", cfg.CountryCode)
	assert.Equal(t, testAPIKey, cfg.OpenWeatherAPIKey)
	assert.Equal(t, "https://api.openweathermap.org", cfg.OpenWeatherBaseURL)
	assert.Equal(t, 5*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 4, cfg.PollWorkers)
	assert.Equal(t, "5 0 * * *", cfg.AggregationSchedule)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
	assert.Empty(t, cfg.RulesFile)
	assert.Equal(t, 8, cfg.RuleMaxDepth)
	assert.Equal(t, 30*time.Minute, cfg.DefaultCooldown)
	assert.InDelta(t, 35.0, cfg.DefaultTempThreshold, 1e-9)
	assert.Equal(t, 2, cfg.DefaultConsecutiveBreaches)
	assert.Equal(t, domain.Celsius, cfg.TemperatureUnit)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, "weather.db", cfg.SQLitePath)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 10*time.Second, cfg.SinkTimeout)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.MQTTEnabled())
	assert.False(t, cfg.EmailEnabled())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", testAPIKey)
	t.Setenv("CITIES", "Pune, Jaipur ,,Lucknow")
	t.Setenv("COUNTRY_CODE", "IN")
	t.Setenv("POLL_INTERVAL", "1m")
	t.Setenv("POLL_WORKERS", "2")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("RULES_FILE", "rules.yaml")
	t.Setenv("DEFAULT_TEMP_THRESHOLD", "40.5")
	t.Setenv("TEMPERATURE_UNIT", "Fahrenheit")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_ALERT_TOPIC", "alerts")
	t.Setenv("MQTT_BROKER_URL", "tcp://localhost:1883")
	t.Setenv("SMTP_ADDR", "smtp.gmail.com:587")
	t.Setenv("SMTP_USERNAME", "monitor@example.com")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("SMTP_FROM", "monitor@example.com")
	t.Setenv("SMTP_TO", "ops@example.com, oncall@example.com")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"Pune", "Jaipur", "Lucknow"}, cfg.Cities)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 2, cfg.PollWorkers)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "rules.yaml", cfg.RulesFile)
	assert.InDelta(t, 40.5, cfg.DefaultTempThreshold, 1e-9)
	assert.Equal(t, domain.Fahrenheit, cfg.TemperatureUnit)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "alerts", cfg.KafkaAlertTopic)
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, cfg.SMTPTo)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)

	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.MQTTEnabled())
	assert.True(t, cfg.EmailEnabled())

	level, format := cfg.LogSettings()
	assert.Equal(t, "debug", level)
	assert.Equal(t, "text", format)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENWEATHER_API_KEY")
}

func TestLoad_PartialSMTPDisablesEmail(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", testAPIKey)
	t.Setenv("SMTP_ADDR", "smtp.gmail.com:587")
	t.Setenv("SMTP_USERNAME", "monitor@example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.EmailEnabled())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"POLL_INTERVAL", "0s", "POLL_INTERVAL"},
		{"SOURCE_TIMEOUT", "-1s", "SOURCE_TIMEOUT"},
		{"POLL_WORKERS", "0", "POLL_WORKERS"},
		{"RULE_MAX_DEPTH", "deep", "RULE_MAX_DEPTH"},
		{"DEFAULT_TEMP_THRESHOLD", "hot", "DEFAULT_TEMP_THRESHOLD"},
		{"TEMPERATURE_UNIT", "kelvin", "TEMPERATURE_UNIT"},
		{"TIMEZONE", "Mars/Olympus", "TIMEZONE"},
		{"STORE_DRIVER", "postgres", "STORE_DRIVER"},
		{"CITIES", "Delhi,Delhi", "CITIES"},
		{"CITIES", " , ", "CITIES"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("OPENWEATHER_API_KEY", testAPIKey)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"Delhi", "New Delhi"}, ParseList(" Delhi ,, New Delhi"))
	assert.Empty(t, ParseList(""))
}

func TestTimezone(t *testing.T) {
	assert.Equal(t, DefaultTimezone, Timezone())

	t.Setenv("TIMEZONE", "Europe/London")
	assert.Equal(t, "Europe/London", Timezone())
}

func TestCities(t *testing.T) {
	assert.Equal(t, DefaultCities, Cities())

	t.Setenv("CITIES", "Pune,Jaipur")
	assert.Equal(t, []string{"Pune", "Jaipur"}, Cities())
}
