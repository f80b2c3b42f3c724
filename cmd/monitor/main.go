package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/weather-monitor-service/internal/adapter/email"
	httpadapter "github.com/couchcryptid/weather-monitor-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-monitor-service/internal/adapter/kafka"
	"github.com/couchcryptid/weather-monitor-service/internal/adapter/memstore"
	"github.com/couchcryptid/weather-monitor-service/internal/adapter/mqtt"
	"github.com/couchcryptid/weather-monitor-service/internal/adapter/openweather"
	"github.com/couchcryptid/weather-monitor-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-monitor-service/internal/aggregate"
	"github.com/couchcryptid/weather-monitor-service/internal/alert"
	"github.com/couchcryptid/weather-monitor-service/internal/config"
	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/couchcryptid/weather-monitor-service/internal/observability"
	"github.com/couchcryptid/weather-monitor-service/internal/pipeline"
	"github.com/couchcryptid/weather-monitor-service/internal/rules"
	"github.com/couchcryptid/weather-monitor-service/internal/scheduler"
)

// store is everything the service needs from the reading store.
type store interface {
	pipeline.ReadingStore
	alert.EventStore
	aggregate.Store
	httpadapter.Store
	Close() error
}

type namedCloser struct {
	name string
	io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	logger.Info("store opened", "driver", cfg.StoreDriver)

	alertRules, err := loadRules(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to load rules", "path", cfg.RulesFile, "error", err)
		os.Exit(1)
	}

	sinks, closers := buildSinks(ctx, cfg, logger)
	closers = append(closers, namedCloser{"store", st})

	source := openweather.NewClient(openweather.Options{
		APIKey:      cfg.OpenWeatherAPIKey,
		CountryCode: cfg.CountryCode,
		BaseURL:     cfg.OpenWeatherBaseURL,
		Timeout:     cfg.SourceTimeout,
	}, logger, metrics)

	dispatcher := alert.NewDispatcher(alert.NewDeduplicator(nil), st, sinks,
		cfg.SinkTimeout, cfg.StoreTimeout, logger, metrics)

	p := pipeline.New(source, st, dispatcher, cfg.Cities, alertRules, pipeline.Options{
		Workers:      cfg.PollWorkers,
		FetchTimeout: cfg.SourceTimeout,
		StoreTimeout: cfg.StoreTimeout,
	}, logger, metrics)

	aggregator := aggregate.New(st, cfg.Location, nil, logger, metrics)

	sched, err := scheduler.New(scheduler.Config{
		Cities:              cfg.Cities,
		PollInterval:        cfg.PollInterval,
		AggregationSchedule: cfg.AggregationSchedule,
		Location:            cfg.Location,
	}, p, aggregator, nil, logger, metrics)
	if err != nil {
		logger.Error("invalid scheduler config", "error", err)
		os.Exit(1)
	}

	api := httpadapter.NewAPI(st, httpadapter.APIOptions{
		Cities:       cfg.Cities,
		PollInterval: cfg.PollInterval,
		Location:     cfg.Location,
		Unit:         cfg.TemperatureUnit,
	}, nil, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, api, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start polling and aggregation.
	sched.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if !stopScheduler(shutdownCtx, sched, logger) {
		logger.Error("shutdown incomplete, leaving store and sinks open for in-flight work")
		os.Exit(1)
	}
	closeAll(closers, logger)

	logger.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		return memstore.New(), nil
	}
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	s, err := sqlite.Open(openCtx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func loadRules(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) ([]domain.AlertRule, error) {
	if cfg.RulesFile == "" {
		defaults := rules.Defaults(cfg.Cities, cfg.DefaultTempThreshold, cfg.DefaultConsecutiveBreaches, cfg.DefaultCooldown)
		metrics.RulesLoaded.WithLabelValues("active").Set(float64(len(defaults)))
		metrics.RulesLoaded.WithLabelValues("disabled").Set(0)
		logger.Info("no rules file, using default temperature rule",
			"threshold", cfg.DefaultTempThreshold, "consecutive_breaches", cfg.DefaultConsecutiveBreaches)
		return defaults, nil
	}

	loader := rules.NewLoader(rules.Options{
		Cities:          cfg.Cities,
		MaxDepth:        cfg.RuleMaxDepth,
		DefaultCooldown: cfg.DefaultCooldown,
	}, logger)
	res, err := loader.LoadFile(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	metrics.RulesLoaded.WithLabelValues("active").Set(float64(len(res.Rules)))
	metrics.RulesLoaded.WithLabelValues("disabled").Set(float64(len(res.Disabled)))
	return res.Rules, nil
}

// buildSinks returns the log sink plus every optional sink whose settings
// are present. A sink that cannot start is logged and skipped.
func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]alert.Sink, []namedCloser) {
	sinks := []alert.Sink{alert.NewLogSink(logger, cfg.TemperatureUnit)}
	var closers []namedCloser

	if cfg.KafkaEnabled() {
		w := kafkaadapter.NewAlertWriter(cfg, logger)
		sinks = append(sinks, w)
		closers = append(closers, namedCloser{"kafka writer", w})
		logger.Info("kafka alert sink enabled", "topic", cfg.KafkaAlertTopic)
	}

	if cfg.MQTTEnabled() {
		pub := mqtt.NewPublisher(cfg, logger)
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := pub.Connect(connectCtx)
		cancel()
		if err != nil {
			// Auto-reconnect keeps trying in the background.
			logger.Warn("mqtt connect failed, will retry", "broker", cfg.MQTTBrokerURL, "error", err)
		}
		sinks = append(sinks, pub)
		closers = append(closers, namedCloser{"mqtt publisher", pub})
		logger.Info("mqtt alert sink enabled", "prefix", cfg.MQTTTopicPrefix)
	}

	if cfg.EmailEnabled() {
		sender, err := email.NewSender(cfg, logger)
		if err != nil {
			logger.Error("email alert sink disabled", "error", err)
		} else {
			sinks = append(sinks, sender)
			logger.Info("email alert sink enabled", "recipients", len(cfg.SMTPTo))
		}
	} else if cfg.SMTPAddr != "" {
		logger.Warn("email alert sink disabled, smtp configuration incomplete")
	}

	return sinks, closers
}

type stopper interface {
	Stop()
}

// stopScheduler waits for in-flight ticks up to the shutdown deadline and
// reports whether they finished.
func stopScheduler(ctx context.Context, sched stopper, logger *slog.Logger) bool {
	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		logger.Error("scheduler did not stop before shutdown timeout")
		return false
	}
}

func closeAll(closers []namedCloser, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("close error", "component", c.name, "error", err)
		}
	}
}
