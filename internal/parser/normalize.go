package parser

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Maximum lengths applied during string cleaning.
const (
	maxNameLen        = 500
	maxCategoryLen    = 100
	maxDescriptionLen = 500
)

// requiredFields must be present and non-nil for a record to be accepted.
var requiredFields = []string{"id", "name", "latitude", "longitude", "category"}

// Validate checks required-field presence and coordinate bounds on a raw
// record. It never returns an error for malformed input: malformed input
// is reported through the boolean and the caller logs and skips.
func Validate(raw map[string]any, log *slog.Logger) bool {
	if log == nil {
		log = slog.Default()
	}

	for _, field := range requiredFields {
		v, ok := raw[field]
		if !ok || v == nil {
			log.Warn("record missing required field", "field", field)
			return false
		}
	}

	lat, err := toFloat(raw["latitude"])
	if err != nil {
		log.Warn("invalid coordinates", "error", err)
		return false
	}
	lon, err := toFloat(raw["longitude"])
	if err != nil {
		log.Warn("invalid coordinates", "error", err)
		return false
	}

	if lat < -90 || lat > 90 {
		log.Warn("invalid latitude", "latitude", lat)
		return false
	}
	if lon < -180 || lon > 180 {
		log.Warn("invalid longitude", "longitude", lon)
		return false
	}

	return true
}

// Normalize maps a validated raw record into the canonical Record shape.
// Call only after Validate has succeeded. The only error path is a native
// ratings list containing an uncoercible element.
func Normalize(raw map[string]any) (Record, error) {
	lat, _ := toFloat(raw["latitude"])
	lon, _ := toFloat(raw["longitude"])

	ratings, err := ParseRatings(raw["ratings"])
	if err != nil {
		return Record{}, err
	}

	return Record{
		ExternalID:  stringify(raw["id"]),
		Name:        CleanString(raw["name"], maxNameLen),
		Category:    CleanString(raw["category"], maxCategoryLen),
		Latitude:    lat,
		Longitude:   lon,
		Ratings:     ratings,
		Description: CleanString(raw["description"], maxDescriptionLen),
	}, nil
}

// CleanString strips NUL bytes, collapses whitespace runs to single
// spaces, and truncates to max characters. Nil yields the empty string.
func CleanString(value any, max int) string {
	if value == nil {
		return ""
	}

	s := stringify(value)
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.Join(strings.Fields(s), " ")

	// Truncation counts runes, not bytes; slicing bytes would split
	// multibyte sequences and produce invalid UTF-8.
	if max > 0 && len(s) > max {
		if runes := []rune(s); len(runes) > max {
			s = string(runes[:max])
		}
	}
	return s
}

// ParseRatings converts the three source encodings of a ratings field
// into a float slice:
//
//   - a native list: nils are filtered out, every other element must
//     coerce to float (an uncoercible element is an error so the caller
//     can skip the record)
//   - a delimited string wrapped in {} or []: wrapping characters are
//     stripped and comma-separated tokens parsed; any bad token yields
//     an empty slice, never partial results
//   - anything else: an empty slice
//
// The three shapes exist because JSON carries native arrays, CSV exports
// carry PostgreSQL-style "{4.5,3.0}" strings, and XML carries
// comma-joined text.
func ParseRatings(data any) ([]float64, error) {
	switch v := data.(type) {
	case []float64:
		return v, nil

	case []any:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			f, err := toFloat(item)
			if err != nil {
				return nil, fmt.Errorf("unparsable rating element: %w", err)
			}
			out = append(out, f)
		}
		return out, nil

	case string:
		s := strings.Trim(v, "{}[]")
		if s == "" {
			return []float64{}, nil
		}
		parts := strings.Split(s, ",")
		out := make([]float64, 0, len(parts))
		for _, part := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				// All-or-nothing: one bad token discards the whole field.
				slog.Warn("could not parse ratings", "ratings", v)
				return []float64{}, nil
			}
			out = append(out, f)
		}
		return out, nil

	default:
		return []float64{}, nil
	}
}

// toFloat coerces the numeric shapes the three formats produce.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("value is nil")
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// stringify renders a raw value the way the source formats expect:
// numbers without a trailing ".0" for integral values, everything else
// via fmt.
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
