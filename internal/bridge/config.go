package bridge

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Recognized option names.
const (
	OptGatherStats    = "gather_stats"
	OptSaveMessages   = "save_messages"
	OptMaxMemoryBytes = "max_memory_bytes"
	OptMaxTimeoutUS   = "max_timeout_us"
)

const (
	MinMemoryBytes = 128 * 1024
	MinTimeout     = 500 * time.Millisecond

	DefaultMaxMemoryBytes = 64 << 20
	DefaultMaxTimeout     = 5 * time.Second
)

// Config holds per-context settings. Numeric limits below their floor are
// raised to it when the context is created; a zero Config therefore runs
// with the floors, use DefaultConfig for roomier limits.
type Config struct {
	GatherStats    bool
	SaveMessages   bool
	MaxMemoryBytes int64
	MaxTimeout     time.Duration
}

// DefaultConfig returns the limits used when an option bag leaves them out.
func DefaultConfig() Config {
	return Config{
		MaxMemoryBytes: DefaultMaxMemoryBytes,
		MaxTimeout:     DefaultMaxTimeout,
	}
}

// Normalize applies the floors.
func (c Config) Normalize() Config {
	if c.MaxMemoryBytes < MinMemoryBytes {
		c.MaxMemoryBytes = MinMemoryBytes
	}
	if c.MaxTimeout < MinTimeout {
		c.MaxTimeout = MinTimeout
	}
	return c
}

// Options renders c as an option bag accepted by ParseConfig.
func (c Config) Options() map[string]any {
	return map[string]any{
		OptGatherStats:    c.GatherStats,
		OptSaveMessages:   c.SaveMessages,
		OptMaxMemoryBytes: c.MaxMemoryBytes,
		OptMaxTimeoutUS:   c.MaxTimeout.Microseconds(),
	}
}

// ParseConfig builds a Config from an untyped option bag. Missing options
// keep their DefaultConfig values. Unknown names and malformed values fail
// with a *ConfigError.
func ParseConfig(raw map[string]any) (Config, error) {
	cfg := DefaultConfig()

	// Sorted so the reported error does not depend on map order.
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := raw[name]
		switch name {
		case OptGatherStats:
			b, err := parseBool(name, value)
			if err != nil {
				return Config{}, err
			}
			cfg.GatherStats = b
		case OptSaveMessages:
			b, err := parseBool(name, value)
			if err != nil {
				return Config{}, err
			}
			cfg.SaveMessages = b
		case OptMaxMemoryBytes:
			n, err := parseInt(name, value)
			if err != nil {
				return Config{}, err
			}
			cfg.MaxMemoryBytes = n
		case OptMaxTimeoutUS:
			n, err := parseInt(name, value)
			if err != nil {
				return Config{}, err
			}
			if n > math.MaxInt64/int64(time.Microsecond) {
				return Config{}, &ConfigError{Option: name, Value: value, Reason: "out of range"}
			}
			cfg.MaxTimeout = time.Duration(n) * time.Microsecond
		default:
			return Config{}, &ConfigError{Option: name, Reason: "unknown option"}
		}
	}
	return cfg.Normalize(), nil
}

func parseBool(name string, value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, &ConfigError{Option: name, Value: value, Reason: "not a boolean"}
		}
		return b, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0, nil
	}
	return false, &ConfigError{Option: name, Value: value, Reason: "not a boolean"}
}

func parseInt(name string, value any) (int64, error) {
	if s, ok := value.(string); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, &ConfigError{Option: name, Value: value, Reason: "not an integer"}
		}
		return n, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return 0, &ConfigError{Option: name, Value: value, Reason: "out of range"}
		}
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, &ConfigError{Option: name, Value: value, Reason: "not an integer"}
		}
		return int64(f), nil
	}
	return 0, &ConfigError{Option: name, Value: value, Reason: "not an integer"}
}
