package xindex

import (
	"math"
	"strconv"

	reflect "github.com/goccy/go-reflect"
	"github.com/oarkflow/json"
)

// Config holds the recognised configuration keys from spec.md §6, tagged
// with their properties-file key for LoadProperties.
type Config struct {
	// TokenBudget is inverted2direct.processtokens: the token budget per
	// transposition pass.
	TokenBudget uint64 `prop:"inverted2direct.processtokens"`
	// IgnoreLowIDFTerms is ignore.low.idf.terms.
	IgnoreLowIDFTerms bool `prop:"ignore.low.idf.terms"`
	// LowIDFThresholdDF is the document-frequency threshold above which a
	// term is considered low-IDF when IgnoreLowIDFTerms is set. Not a
	// spec.md-named key (the threshold itself is implementation
	// configurable per spec.md §4.4); exposed as an option for callers
	// that want to tune it directly instead of via a properties map.
	// DefaultConfig sets it to math.MaxUint32, so the default configuration
	// excludes no term until a caller lowers it.
	LowIDFThresholdDF uint32
	// Plugins is matching.postinglist.manager.plugins, comma-delimited
	// plugin identifiers.
	Plugins []string `prop:"matching.postinglist.manager.plugins"`
	// FieldCount is the number of tracked fields, 0 if the index does not
	// track fields.
	FieldCount int
}

// DefaultConfig mirrors the defaults spec.md §6 lists.
func DefaultConfig() Config {
	return Config{
		TokenBudget:       100_000_000,
		IgnoreLowIDFTerms: true,
		LowIDFThresholdDF: math.MaxUint32,
		Plugins:           nil,
		FieldCount:        0,
	}
}

// Option mutates a Config under construction, mirroring the teacher's
// functional-options pattern (Options func(*Index)).
type Option func(*Config)

// WithTokenBudget overrides the per-pass token budget.
func WithTokenBudget(n uint64) Option {
	return func(c *Config) { c.TokenBudget = n }
}

// WithLowIDFFiltering toggles low-IDF term filtering and its DF threshold.
func WithLowIDFFiltering(enabled bool, thresholdDF uint32) Option {
	return func(c *Config) {
		c.IgnoreLowIDFTerms = enabled
		c.LowIDFThresholdDF = thresholdDF
	}
}

// WithPlugins registers plugin identifiers to resolve against the process
// registry (see plugin.go) when Manager.Assemble runs.
func WithPlugins(ids ...string) Option {
	return func(c *Config) { c.Plugins = append(c.Plugins, ids...) }
}

// WithFieldCount declares how many per-field frequency slots postings
// carry.
func WithFieldCount(n int) Option {
	return func(c *Config) { c.FieldCount = n }
}

// NewConfig builds a Config starting from DefaultConfig and applying opts
// in order.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LoadProperties applies a properties bag (as read from an index's
// property file) onto c, matching each Config field's `prop` tag against a
// key in props. Unrecognised keys are ignored. Grounded on the teacher's
// reflection-based decoding of dynamic query filters in prepareQuery
// (manager.go), which walks a map[string]any by reflect.Kind rather than
// hand-writing a switch per known key.
func LoadProperties(c *Config, props map[string]string) error {
	rv := reflect.ValueOf(c).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("prop")
		if tag == "" {
			continue
		}
		raw, ok := props[tag]
		if !ok {
			continue
		}
		fv := rv.Field(i)
		switch field.Type.Kind() {
		case reflect.Uint64, reflect.Uint32, reflect.Uint:
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return newPreconditionError("property %s: not an integer: %v", tag, err)
			}
			fv.SetUint(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return newPreconditionError("property %s: not a boolean: %v", tag, err)
			}
			fv.SetBool(b)
		case reflect.Int:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return newPreconditionError("property %s: not an integer: %v", tag, err)
			}
			fv.SetInt(int64(n))
		case reflect.Slice:
			fv.Set(reflect.ValueOf(splitCSV(raw)))
		}
	}
	return nil
}

// LoadPropertiesJSON decodes a JSON object of string values (as an index's
// property file might be persisted in JSON form) and applies it through
// LoadProperties. Grounded on the teacher's document.go, which round-trips
// arbitrary values through json.Marshal/json.Unmarshal to coerce them into
// a known struct shape rather than hand-writing a decoder per source type.
func LoadPropertiesJSON(c *Config, data []byte) error {
	var props map[string]string
	if err := json.Unmarshal(data, &props); err != nil {
		return newPreconditionError("decode properties json: %v", err)
	}
	return LoadProperties(c, props)
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
