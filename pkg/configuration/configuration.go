// Package configuration implements loading, validation, and compilation of
// the agent's configuration.
package configuration

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/logtide-io/logtide/pkg/encoding"
	"github.com/logtide-io/logtide/pkg/logging"
	"github.com/logtide-io/logtide/pkg/rules"
)

const (
	// DefaultDebounce is the default debounce interval for the watch adapter.
	DefaultDebounce = 2 * time.Second
	// DefaultLogLevel is the default log level name.
	DefaultLogLevel = "info"
)

// Duration is a time.Duration that unmarshals from Go duration syntax.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.UnmarshalYAML.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return errors.Wrap(err, "unable to parse duration")
	}
	*d = Duration(parsed)
	return nil
}

// MatcherConfiguration holds pattern lists for one rule direction.
type MatcherConfiguration struct {
	// Glob are doublestar glob patterns.
	Glob []string `yaml:"glob"`
	// Regex are regular expression patterns.
	Regex []string `yaml:"regex"`
}

// compile appends the configured patterns to the specified direction of a
// rule set.
func (m *MatcherConfiguration) compile(set *rules.Set, exclude bool) error {
	add := set.AddInclusion
	if exclude {
		add = set.AddExclusion
	}
	for _, pattern := range m.Glob {
		rule, err := rules.NewGlobRule(pattern)
		if err != nil {
			return errors.Wrapf(err, "unable to compile glob pattern %q", pattern)
		}
		add(rule)
	}
	for _, pattern := range m.Regex {
		rule, err := rules.NewRegexRule(pattern)
		if err != nil {
			return errors.Wrapf(err, "unable to compile regex pattern %q", pattern)
		}
		add(rule)
	}
	return nil
}

// LogConfiguration is the log-collection section of the configuration.
type LogConfiguration struct {
	// Dirs are the root directories to track.
	Dirs []string `yaml:"dirs"`
	// Include are the inclusion patterns.
	Include MatcherConfiguration `yaml:"include"`
	// Exclude are the exclusion patterns.
	Exclude MatcherConfiguration `yaml:"exclude"`
	// Debounce is the watch adapter's debounce interval.
	Debounce Duration `yaml:"debounce"`
	// Level is the log level name.
	Level string `yaml:"level"`
}

// Configuration is the agent's YAML configuration object type.
type Configuration struct {
	// Log is the log-collection configuration.
	Log LogConfiguration `yaml:"log"`
}

// Default returns the default configuration: track /var/log, admit
// everything, debounce over two seconds.
func Default() *Configuration {
	return &Configuration{
		Log: LogConfiguration{
			Dirs: []string{"/var/log"},
			Include: MatcherConfiguration{
				Glob: []string{"**"},
			},
			Debounce: Duration(DefaultDebounce),
			Level:    DefaultLogLevel,
		},
	}
}

// Load attempts to load a YAML-based configuration file from the specified
// path, overlaying it on the defaults. A missing file yields the defaults
// unchanged.
func Load(path string) (*Configuration, error) {
	result := Default()
	if err := encoding.LoadAndUnmarshalYAML(path, result); err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, err
	}
	return result, nil
}

// LoadDotEnv reads a .env-style file into an environment map. A missing file
// yields an empty map.
func LoadDotEnv(path string) (map[string]string, error) {
	environment, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrap(err, "unable to read environment file")
	}
	return environment, nil
}

// ApplyEnvironment overlays environment variable overrides onto the
// configuration. List-valued variables are comma-separated.
func (c *Configuration) ApplyEnvironment(environment map[string]string) error {
	if dirs, ok := environment["LOGTIDE_LOG_DIRS"]; ok {
		c.Log.Dirs = splitList(dirs)
	}
	if include, ok := environment["LOGTIDE_INCLUDE"]; ok {
		c.Log.Include = MatcherConfiguration{Glob: splitList(include)}
	}
	if exclude, ok := environment["LOGTIDE_EXCLUDE"]; ok {
		c.Log.Exclude = MatcherConfiguration{Glob: splitList(exclude)}
	}
	if debounce, ok := environment["LOGTIDE_DEBOUNCE"]; ok {
		parsed, err := time.ParseDuration(debounce)
		if err != nil {
			return errors.Wrap(err, "unable to parse LOGTIDE_DEBOUNCE")
		}
		c.Log.Debounce = Duration(parsed)
	}
	if level, ok := environment["LOGTIDE_LOG_LEVEL"]; ok {
		c.Log.Level = level
	}
	return nil
}

// Validate verifies the configuration's coherence.
func (c *Configuration) Validate() error {
	if len(c.Log.Dirs) == 0 {
		return errors.New("no log directories configured")
	}
	for _, dir := range c.Log.Dirs {
		if !filepath.IsAbs(dir) {
			return errors.Errorf("log directory %s is not absolute", dir)
		}
	}
	if c.Log.Debounce <= 0 {
		return errors.New("debounce interval must be positive")
	}
	if _, ok := logging.NameToLevel(c.Log.Level); !ok {
		return errors.Errorf("unknown log level: %s", c.Log.Level)
	}
	return nil
}

// Rules compiles the configured patterns into a rule set.
func (c *Configuration) Rules() (*rules.Set, error) {
	set := rules.NewSet()
	if err := c.Log.Include.compile(set, false); err != nil {
		return nil, err
	}
	if err := c.Log.Exclude.compile(set, true); err != nil {
		return nil, err
	}
	return set, nil
}

// splitList splits a comma-separated list, trimming whitespace and dropping
// empty elements.
func splitList(value string) []string {
	var result []string
	for _, element := range strings.Split(value, ",") {
		if element = strings.TrimSpace(element); element != "" {
			result = append(result, element)
		}
	}
	return result
}
