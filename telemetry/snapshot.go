package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Snapshot is one flat key/value view of the router database.
type Snapshot map[string]any

// Fetcher returns the current telemetry snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (Snapshot, error)

func (f FetcherFunc) Fetch(ctx context.Context) (Snapshot, error) { return f(ctx) }

// Has reports whether key is present with a non-nil value.
func (s Snapshot) Has(key string) bool {
	v, ok := s[key]
	return ok && v != nil
}

func (s Snapshot) value(key string) (any, error) {
	v, ok := s[key]
	if !ok || v == nil {
		return nil, &MissingFieldError{Key: key}
	}
	return v, nil
}

// Float reads key as a number. Numeric strings are accepted.
func (s Snapshot) Float(key string) (float64, error) {
	v, err := s.value(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s is %q", ErrFieldType, key, n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %s is %T", ErrFieldType, key, v)
}

// Int reads key as a whole number.
func (s Snapshot) Int(key string) (int64, error) {
	v, err := s.value(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}

	f, err := s.Float(key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s is not a whole number (%v)", ErrFieldType, key, f)
	}
	return int64(f), nil
}

// String reads key as text. Numbers are rendered without exponent.
func (s Snapshot) String(key string) (string, error) {
	v, err := s.value(key)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	return "", fmt.Errorf("%w: %s is %T", ErrFieldType, key, v)
}

// Clone returns a shallow copy of s.
func (s Snapshot) Clone() Snapshot {
	return maps.Clone(s)
}
