package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config selects which lints run and how diagnostics are reported.
// If some field is not defined in the config file, it will be empty/zero in
// the struct. Private fields are not populated from a yaml file, but computed
// after initialization.
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// EnabledLints restricts the run to the named lints. Empty means all
	// registered lints run.
	EnabledLints []string `yaml:"enabled-lints"`

	// DisabledLints removes lints from the run after EnabledLints applies.
	DisabledLints []string `yaml:"disabled-lints"`

	// TestPathPatterns identify source files that should not be linted,
	// e.g. `tests/` or `_test`. Each pattern is a regex when it compiles,
	// a path prefix otherwise.
	TestPathPatterns []string `yaml:"test-path-patterns"`

	// Suppressions lists diagnostics to silence.
	Suppressions []Suppression `yaml:"suppressions"`

	testPathRegexes []*regexp.Regexp
}

// Options are the scalar knobs of a run.
type Options struct {
	// ReportFormat is "text" or "json".
	ReportFormat string `yaml:"report-format"`

	// MaxAlarms sets a limit for the number of diagnostics reported. If
	// MaxAlarms > 0, then at most MaxAlarms will be reported. Otherwise it
	// is ignored.
	MaxAlarms int `yaml:"max-alarms"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// SilenceWarn suppresses warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:   "",
		EnabledLints: nil,
		Options: Options{
			ReportFormat: DefaultReportFormat,
			MaxAlarms:    0,
			LogLevel:     int(InfoLevel),
			SilenceWarn:  false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	if cfg.ReportFormat == "" {
		cfg.ReportFormat = DefaultReportFormat
	}
	if cfg.ReportFormat != "text" && cfg.ReportFormat != "json" {
		return nil, fmt.Errorf("unknown report format %q", cfg.ReportFormat)
	}

	for _, pattern := range cfg.TestPathPatterns {
		r, err := regexp.Compile(pattern)
		if err == nil {
			cfg.testPathRegexes = append(cfg.testPathRegexes, r)
		} else {
			cfg.testPathRegexes = append(cfg.testPathRegexes, nil)
		}
	}

	for i := range cfg.Suppressions {
		cfg.Suppressions[i] = CompileRegexes(cfg.Suppressions[i])
	}

	return cfg, nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// LintEnabled reports whether the named lint should run under this config.
func (c Config) LintEnabled(name string) bool {
	if len(c.EnabledLints) > 0 {
		found := false
		for _, n := range c.EnabledLints {
			if n == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, n := range c.DisabledLints {
		if n == name {
			return false
		}
	}
	return true
}

// IsTestPath returns true if the file name matches one of the test path
// patterns. A pattern that could not be compiled to a regex is used as a
// prefix, the safe fallback.
func (c Config) IsTestPath(filename string) bool {
	for i, pattern := range c.TestPathPatterns {
		if r := c.testPathRegexes[i]; r != nil {
			if r.MatchString(filename) {
				return true
			}
		} else if strings.HasPrefix(filename, pattern) {
			return true
		}
	}
	return false
}

// IsSuppressed returns true if a diagnostic from the named lint at the given
// file matches any suppression in the config.
func (c Config) IsSuppressed(lint, file, message string) bool {
	return ExistsSuppression(c.Suppressions, func(s Suppression) bool {
		return s.matchesOnNonEmptyFields(lint, file, message)
	})
}

// Verbose returns true if the configuration verbosity setting is larger than
// Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxAlarms returns true if the input exceeds the maximum alarm count
// of the configuration (if the setting is <= 0, this always returns false)
func (c Config) ExceedsMaxAlarms(n int) bool {
	if c.MaxAlarms <= 0 {
		return false
	}
	return n >= c.MaxAlarms
}
