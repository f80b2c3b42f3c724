// Package domain models city weather readings, alert rules, and the daily
// rollups computed from them.
//
// # Readings
//
// A [Reading] is one normalized observation for a city. Temperatures are
// always degrees Celsius regardless of what the provider returns; the
// OpenWeatherMap adapter converts from Kelvin with [KelvinToCelsius].
// Humidity is optional: providers occasionally omit it and a nil value is
// preserved through storage.
//
// # Conditions
//
// Alert rules carry a tree of [Node] values. A node is either a [Predicate]
// comparing one reading field against a constant, or a [Compound] joining
// children with AND, OR, or NOT:
//
//	AND(temperature > 40, OR(condition == "Haze", condition == "Dust"))
//
// Trees are validated once at load time with [Validate] and then evaluated
// with [Evaluate], which never fails: a predicate over a field the reading
// does not carry (for example humidity) is simply false.
//
// Numeric fields (temperature, feels_like, humidity) accept all six
// comparison operators. The condition field is compared as a case-sensitive
// string and only accepts == and !=.
//
// # Days
//
// Daily summaries are keyed by a YYYY-MM-DD date in the monitor's configured
// time zone. [DayWindow] returns the half-open interval [00:00, next 00:00)
// for a date, which is also the range the aggregator reads.
package domain
