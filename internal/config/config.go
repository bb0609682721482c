// Package config resolves planverify settings from flags, environment and
// an optional YAML file.
//
// Precedence, highest first: explicitly set flags, PLANVERIFY_* environment
// variables, the config file, then defaults. The file is planverify.yaml in
// the working directory or $HOME/.planverify unless one is named explicitly.
//
//	# planverify.yaml
//	root: /data/planverify
//	format: text
//	large: false
//	filter: "mnist_*"
//	scenarios: ./extra-scenarios.yaml
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when reading the environment.
const EnvPrefix = "PLANVERIFY"

// Keys understood in files, the environment and flags.
const (
	KeyRoot      = "root"
	KeyFormat    = "format"
	KeyVerbose   = "verbose"
	KeyLarge     = "large"
	KeyFilter    = "filter"
	KeyScenarios = "scenarios"
)

// Config is the resolved configuration.
type Config struct {
	// Root is the data directory scenario plan paths are relative to.
	Root string `mapstructure:"root"`

	// Format is the report format: "text" or "json".
	Format string `mapstructure:"format"`

	// Verbose enables debug logging.
	Verbose bool `mapstructure:"verbose"`

	// Large admits long-running scenarios.
	Large bool `mapstructure:"large"`

	// Filter is a glob over scenario names.
	Filter string `mapstructure:"filter"`

	// Scenarios optionally names a YAML scenario table to use instead of the
	// builtin one.
	Scenarios string `mapstructure:"scenarios"`
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Loader reads configuration into a private viper instance.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with defaults and environment lookup set up.
func NewLoader() *Loader {
	v := viper.New()
	v.SetDefault(KeyRoot, ".")
	v.SetDefault(KeyFormat, "text")
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyLarge, false)
	v.SetDefault(KeyFilter, "")
	v.SetDefault(KeyScenarios, "")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	return &Loader{v: v}
}

// BindFlag lets an explicitly set flag override every other source for key.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: flag not defined", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads the config file and returns the merged configuration along with
// the file it used ("" when none was found). An explicit file that cannot be
// read is an error; a missing file in the search path is not.
func (l *Loader) Load(file string) (*Config, string, error) {
	if file != "" {
		l.v.SetConfigFile(file)
	} else {
		l.v.AddConfigPath(".")
		l.v.AddConfigPath("$HOME/.planverify")
		l.v.SetConfigType("yaml")
		l.v.SetConfigName("planverify")
	}

	used := ""
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		used = l.v.ConfigFileUsed()
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, used, nil
}

// Validate checks field values that viper cannot type-check.
func (c *Config) Validate() error {
	for _, f := range ValidFormats {
		if c.Format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %v", c.Format, ValidFormats)
}
