// Command backfill recomputes daily summaries for one city over a date range
// in the SQLite store. Re-running it is safe; summaries are upserted. Day
// boundaries follow TIMEZONE unless -timezone is given.
//
// Usage:
//
//	go run ./cmd/backfill \
//	  -db weather.db \
//	  -city Delhi \
//	  -from 2024-04-01 -to 2024-04-30
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/weather-monitor-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-monitor-service/internal/aggregate"
	"github.com/couchcryptid/weather-monitor-service/internal/config"
	"github.com/couchcryptid/weather-monitor-service/internal/observability"
)

type logSettings string

func (l logSettings) LogSettings() (level, format string) { return string(l), "text" }

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	dbPath := flag.String("db", "weather.db", "path to the SQLite database")
	city := flag.String("city", "", "city to backfill")
	from := flag.String("from", "", "first date, YYYY-MM-DD")
	to := flag.String("to", "", "last date, YYYY-MM-DD (defaults to -from)")
	tz := flag.String("timezone", config.Timezone(), "time zone that defines calendar days (defaults to TIMEZONE)")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	if *city == "" || *from == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -city, -from")
	}
	if *to == "" {
		*to = *from
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("load time zone: %w", err)
	}

	logger := observability.NewLogger(logSettings(*level))
	// Unregistered: nothing scrapes a one-shot command.
	metrics := observability.NewMetricsForTesting()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := aggregate.New(store, loc, nil, logger, metrics).AggregateRange(ctx, *city, *from, *to)
	for _, s := range summaries {
		fmt.Fprintf(os.Stdout, "%s  %-10s min %6.1f  max %6.1f  avg %6.1f  %-12s n=%d\n",
			s.Date, s.City, s.MinTemp, s.MaxTemp, s.AvgTemp, s.DominantCondition, s.SampleCount)
	}
	logger.Info("backfill complete", "city", *city, "from", *from, "to", *to, "stored", len(summaries))
	return err
}
