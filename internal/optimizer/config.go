package optimizer

import (
	"fmt"
	"slices"
	"strings"
)

// Pass names an optimization pass.
type Pass string

const (
	PassColumns     Pass = "columns"
	PassLayerChains Pass = "layer-chains"
)

// ValidPasses lists every pass in execution order.
var ValidPasses = []Pass{PassColumns, PassLayerChains}

// OnFail is the policy applied when column projection fails.
type OnFail string

const (
	OnFailWarn  OnFail = "warn"
	OnFailPass  OnFail = "pass"
	OnFailRaise OnFail = "raise"
)

// ValidOnFail lists every accepted on-fail policy.
var ValidOnFail = []OnFail{OnFailWarn, OnFailPass, OnFailRaise}

// Config selects which passes run and how projection failures are handled.
type Config struct {
	// Enabled turns the whole optimizer on or off.
	Enabled bool `json:"enabled"`

	// Which lists the passes to run. Order is ignored; passes always run
	// columns first.
	Which []Pass `json:"which"`

	// OnFail is the projection failure policy.
	OnFail OnFail `json:"on-fail"`
}

// DefaultConfig returns the documented defaults: enabled, both passes,
// warn on failure.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Which:   slices.Clone(ValidPasses),
		OnFail:  OnFailWarn,
	}
}

// Runs reports whether the pass is enabled.
func (c Config) Runs(p Pass) bool {
	return c.Enabled && slices.Contains(c.Which, p)
}

// Validate checks every field against its valid set.
func (c Config) Validate() error {
	for _, p := range c.Which {
		if !slices.Contains(ValidPasses, p) {
			return &ConfigError{Key: "optimization.which", Value: string(p), Valid: passNames()}
		}
	}
	return validateOnFail(c.OnFail)
}

func validateOnFail(v OnFail) error {
	if slices.Contains(ValidOnFail, v) {
		return nil
	}
	valid := make([]string, len(ValidOnFail))
	for i, o := range ValidOnFail {
		valid[i] = string(o)
	}
	return &ConfigError{Key: "optimization.on-fail", Value: string(v), Valid: valid}
}

func passNames() []string {
	out := make([]string, len(ValidPasses))
	for i, p := range ValidPasses {
		out[i] = string(p)
	}
	return out
}

// ConfigError reports a configuration value outside its valid set.
type ConfigError struct {
	Key   string   `json:"key"`
	Value string   `json:"value"`
	Valid []string `json:"valid"`
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	quoted := make([]string, len(e.Valid))
	for i, v := range e.Valid {
		quoted[i] = "'" + v + "'"
	}
	return fmt.Sprintf("invalid %s option: %q; valid options are %s", e.Key, e.Value, joinOr(quoted))
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
	}
}
