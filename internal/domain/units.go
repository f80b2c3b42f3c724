package domain

import (
	"fmt"
	"strings"
)

// TemperatureUnit selects how temperatures are rendered in alert text.
// Stored readings are always Celsius.
type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "celsius"
	Fahrenheit TemperatureUnit = "fahrenheit"
)

// ParseTemperatureUnit accepts "celsius" or "fahrenheit", case-insensitively.
func ParseTemperatureUnit(s string) (TemperatureUnit, error) {
	switch TemperatureUnit(strings.ToLower(strings.TrimSpace(s))) {
	case Celsius:
		return Celsius, nil
	case Fahrenheit:
		return Fahrenheit, nil
	default:
		return "", fmt.Errorf("unknown temperature unit %q", s)
	}
}

// Symbol returns the display suffix, e.g. "°C".
func (u TemperatureUnit) Symbol() string {
	if u == Fahrenheit {
		return "°F"
	}
	return "°C"
}

// KelvinToCelsius converts a provider temperature to the canonical unit.
func KelvinToCelsius(k float64) float64 {
	return k - 273.15
}

// CelsiusToFahrenheit converts for display.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FormatTemperature renders a Celsius value in unit with one decimal.
func FormatTemperature(c float64, unit TemperatureUnit) string {
	if unit == Fahrenheit {
		c = CelsiusToFahrenheit(c)
	}
	return fmt.Sprintf("%.1f%s", c, unit.Symbol())
}
