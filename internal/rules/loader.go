// Package rules loads alert rules from YAML and validates them once, so the
// evaluator only ever sees well-formed condition trees.
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

// Options bound what a rules file may contain.
type Options struct {
	Cities          []string
	MaxDepth        int
	DefaultCooldown time.Duration
}

// Result is the outcome of loading a rules file. Disabled rules are reported
// but never returned in Rules.
type Result struct {
	Rules    []domain.AlertRule
	Disabled []*domain.RuleConfigError
}

// Loader parses rules documents.
type Loader struct {
	opts     Options
	validate *validator.Validate
	logger   *slog.Logger
}

// NewLoader creates a Loader for the given options.
func NewLoader(opts Options, logger *slog.Logger) *Loader {
	if opts.MaxDepth < 1 {
		opts.MaxDepth = 8
	}
	return &Loader{
		opts:     opts,
		validate: validator.New(),
		logger:   logger,
	}
}

type document struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	ID                  string    `yaml:"id" validate:"required"`
	City                string    `yaml:"city" validate:"required"`
	Description         string    `yaml:"description"`
	Cooldown            string    `yaml:"cooldown"`
	ConsecutiveBreaches int       `yaml:"consecutive_breaches" validate:"gte=0"`
	Condition           yaml.Node `yaml:"condition" validate:"-"`
}

// LoadFile reads and parses the rules file at path.
func (l *Loader) LoadFile(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read rules file: %w", err)
	}
	return l.Parse(data)
}

// Parse decodes a rules document. A document that is not valid YAML is an
// error; an individual bad rule is disabled and listed in Result.Disabled.
func (l *Loader) Parse(data []byte) (Result, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Result{}, fmt.Errorf("parse rules file: %w", err)
	}

	var res Result
	seen := make(map[string]bool, len(doc.Rules))
	for i, spec := range doc.Rules {
		rule, err := l.build(spec)
		if err == nil && seen[rule.ID] {
			err = errors.New("duplicate rule id")
		}
		if err != nil {
			id := spec.ID
			if id == "" {
				id = fmt.Sprintf("#%d", i+1)
			}
			rce := &domain.RuleConfigError{RuleID: id, Reason: err.Error()}
			l.logger.Warn("rule disabled", "rule_id", id, "reason", rce.Reason)
			res.Disabled = append(res.Disabled, rce)
			continue
		}
		seen[rule.ID] = true
		res.Rules = append(res.Rules, rule)
	}

	l.logger.Info("rules loaded", "active", len(res.Rules), "disabled", len(res.Disabled))
	return res, nil
}

func (l *Loader) build(spec ruleSpec) (domain.AlertRule, error) {
	if err := l.validate.Struct(spec); err != nil {
		return domain.AlertRule{}, describeValidation(err)
	}
	if len(l.opts.Cities) > 0 && !slices.Contains(l.opts.Cities, spec.City) {
		return domain.AlertRule{}, fmt.Errorf("city %q is not configured", spec.City)
	}

	cooldown := l.opts.DefaultCooldown
	if spec.Cooldown != "" {
		d, err := time.ParseDuration(spec.Cooldown)
		if err != nil || d < 0 {
			return domain.AlertRule{}, fmt.Errorf("invalid cooldown %q", spec.Cooldown)
		}
		cooldown = d
	}

	if spec.Condition.IsZero() {
		return domain.AlertRule{}, errors.New("condition is required")
	}
	var raw rawNode
	if err := spec.Condition.Decode(&raw); err != nil {
		return domain.AlertRule{}, err
	}
	cond, err := raw.toNode()
	if err != nil {
		return domain.AlertRule{}, err
	}
	if err := domain.Validate(cond, l.opts.MaxDepth); err != nil {
		return domain.AlertRule{}, err
	}

	return domain.AlertRule{
		ID:                  spec.ID,
		City:                spec.City,
		Description:         spec.Description,
		Condition:           cond,
		Cooldown:            cooldown,
		ConsecutiveBreaches: spec.ConsecutiveBreaches,
	}, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	default:
		return fmt.Errorf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
}

// Defaults returns one temperature rule per city, used when no rules file is
// configured.
func Defaults(cities []string, threshold float64, consecutive int, cooldown time.Duration) []domain.AlertRule {
	out := make([]domain.AlertRule, 0, len(cities))
	for _, city := range cities {
		out = append(out, domain.AlertRule{
			ID:                  "default-temperature",
			City:                city,
			Description:         fmt.Sprintf("Temperature above %.1f°C for %d consecutive readings", threshold, max(consecutive, 1)),
			Condition:           domain.Compare(domain.FieldTemperature, domain.OpGreater, threshold),
			Cooldown:            cooldown,
			ConsecutiveBreaches: consecutive,
		})
	}
	return out
}
