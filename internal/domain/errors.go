package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means the weather provider could not be reached or
	// answered with a server error. The city is skipped for the tick.
	ErrSourceUnavailable = errors.New("weather source unavailable")

	// ErrInvalidReading means the provider answered but the payload could not
	// be normalized. Handled like ErrSourceUnavailable.
	ErrInvalidReading = errors.New("invalid reading")

	// ErrRateLimited means the provider rejected the request with HTTP 429.
	ErrRateLimited = errors.New("weather source rate limited")

	// ErrRuleConfig marks a rule that cannot be evaluated. See RuleConfigError.
	ErrRuleConfig = errors.New("invalid rule configuration")

	// ErrStorage wraps any Reading Store failure.
	ErrStorage = errors.New("storage failure")

	// ErrDispatch wraps a notification sink failure.
	ErrDispatch = errors.New("alert dispatch failed")

	// ErrDateNotElapsed is returned when aggregating a day that has not ended.
	ErrDateNotElapsed = errors.New("date has not fully elapsed")
)

// RuleConfigError describes why a rule was disabled at load time.
type RuleConfigError struct {
	RuleID string
	Reason string
}

func (e *RuleConfigError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("rule: %s", e.Reason)
	}
	return fmt.Sprintf("rule %q: %s", e.RuleID, e.Reason)
}

func (e *RuleConfigError) Unwrap() error { return ErrRuleConfig }

// SourceErrorKind classifies a fetch error for logs and metric labels.
func SourceErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidReading):
		return "invalid_reading"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unavailable"
	}
}
