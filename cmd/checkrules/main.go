// Command checkrules validates an alert rules file and reports every rule as
// PASS or FAIL. It exits 1 when any rule would be disabled at startup.
//
// Usage:
//
//	go run ./cmd/checkrules -rules rules.yaml -cities Delhi,Mumbai
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/weather-monitor-service/internal/config"
	"github.com/couchcryptid/weather-monitor-service/internal/rules"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	path := flag.String("rules", "", "path to the rules YAML file")
	cities := flag.String("cities", strings.Join(config.Cities(), ","), "comma-separated configured cities (defaults to CITIES)")
	maxDepth := flag.Int("max-depth", 8, "maximum condition tree depth")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, *path, config.ParseList(*cities), *maxDepth))
}

func run(out io.Writer, path string, cities []string, maxDepth int) int {
	loader := rules.NewLoader(rules.Options{
		Cities:          cities,
		MaxDepth:        maxDepth,
		DefaultCooldown: 30 * time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	res, err := loader.LoadFile(path)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "=== Rule Check: %s ===\n\n", path)
	for _, r := range res.Rules {
		fmt.Fprintf(out, "  [PASS] %s (%s): %v\n", r.ID, r.City, r.Condition)
	}
	for _, e := range res.Disabled {
		fmt.Fprintf(out, "  [FAIL] %s: %s\n", e.RuleID, e.Reason)
	}

	fmt.Fprintf(out, "\n%d passed, %d failed\n", len(res.Rules), len(res.Disabled))
	if len(res.Disabled) > 0 {
		return 1
	}
	return 0
}
