package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/zkslice/internal/policy"
)

//go:embed schema.cue
var schemaSource string

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ZKSLICE"

// RowsPerStep is the number of circuit rows one trace entry occupies. The
// default slice capacity is 2^k / RowsPerStep.
const RowsPerStep = 16

// DefaultK is the circuit size used when none is configured.
const DefaultK = 18

// Sink kinds.
const (
	SinkMemory = "memory"
	SinkFile   = "file"
	SinkSQLite = "sqlite"
	SinkPebble = "pebble"
)

// SinkConfig selects where sealed slices go.
type SinkConfig struct {
	Kind string `mapstructure:"kind" json:"kind"`
	Path string `mapstructure:"path" json:"path"`
}

// Config is the resolved zkslice configuration.
type Config struct {
	// K is log2 of the circuit row count.
	K int `mapstructure:"k" json:"k"`
	// Capacity is the slice capacity in entries. Zero derives it from K.
	Capacity int `mapstructure:"capacity" json:"capacity"`
	// Families names the host-call families the flush policy tracks.
	Families []string   `mapstructure:"families" json:"families"`
	Sink     SinkConfig `mapstructure:"sink" json:"sink"`
	LogLevel string     `mapstructure:"log_level" json:"log_level"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"k":         "k",
	"capacity":  "capacity",
	"families":  "families",
	"sink":      "sink.kind",
	"sink-path": "sink.path",
	"log-level": "log_level",
}

// Options controls where Load looks for settings.
type Options struct {
	// File is an explicit config file path. Empty skips the file.
	File string
	// Flags are bound by name when present; only flags the user set
	// override file and environment values.
	Flags *pflag.FlagSet
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		K:        DefaultK,
		Families: policy.FamilyNames(policy.StandardFamilies()),
		Sink:     SinkConfig{Kind: SinkMemory},
		LogLevel: "info",
	}
}

// Load resolves the configuration and validates it.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("k", def.K)
	v.SetDefault("capacity", def.Capacity)
	v.SetDefault("families", def.Families)
	v.SetDefault("sink.kind", def.Sink.Kind)
	v.SetDefault("sink.path", def.Sink.Path)
	v.SetDefault("log_level", def.LogLevel)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Families) == 0 {
		cfg.Families = def.Families
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("config loaded",
		slog.Int("k", cfg.K),
		slog.Int("capacity", cfg.EffectiveCapacity()),
		slog.String("sink", cfg.Sink.Kind),
		slog.Any("families", cfg.Families))
	return cfg, nil
}

// Validate checks the configuration against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	val := ctx.Encode(c)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// ValidationError reports a configuration rejected by the schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is a schema rejection.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// EffectiveCapacity returns Capacity, or 2^K / RowsPerStep when unset.
func (c *Config) EffectiveCapacity() int {
	if c.Capacity > 0 {
		return c.Capacity
	}
	return (1 << c.K) / RowsPerStep
}

// SelectedFamilies returns the configured families in configuration order.
func (c *Config) SelectedFamilies() ([]policy.Family, error) {
	std := policy.StandardFamilies()
	out := make([]policy.Family, 0, len(c.Families))
	for _, name := range c.Families {
		f, ok := policy.FamilyByName(std, name)
		if !ok {
			return nil, fmt.Errorf("unknown family %q (have %s)", name, strings.Join(policy.FamilyNames(std), ", "))
		}
		out = append(out, f)
	}
	return out, nil
}

// Policy builds the round policy for the configured k and families.
func (c *Config) Policy(opts ...policy.RoundOption) (*policy.RoundPolicy, error) {
	fams, err := c.SelectedFamilies()
	if err != nil {
		return nil, err
	}
	return policy.NewRoundPolicy(c.K, fams, opts...)
}
