package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultValidates verifies that the default configuration is coherent.
func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Error("default configuration failed validation:", err)
	}
}

// TestLoad verifies YAML loading over the defaults.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `log:
  dirs: ["/var/log/containers"]
  include:
    glob: ["*.log"]
  exclude:
    glob: ["*.tmp", "*.gz"]
  debounce: 500ms
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal("unable to write configuration:", err)
	}

	configuration, err := Load(path)
	if err != nil {
		t.Fatal("unable to load configuration:", err)
	}
	if err := configuration.Validate(); err != nil {
		t.Fatal("configuration failed validation:", err)
	}
	if len(configuration.Log.Dirs) != 1 || configuration.Log.Dirs[0] != "/var/log/containers" {
		t.Error("unexpected dirs:", configuration.Log.Dirs)
	}
	if time.Duration(configuration.Log.Debounce) != 500*time.Millisecond {
		t.Error("unexpected debounce:", configuration.Log.Debounce)
	}
	if configuration.Log.Level != "debug" {
		t.Error("unexpected level:", configuration.Log.Level)
	}
	if len(configuration.Log.Exclude.Glob) != 2 {
		t.Error("unexpected exclusions:", configuration.Log.Exclude.Glob)
	}
}

// TestLoadMissingFileYieldsDefaults verifies that a missing file is not an
// error.
func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	configuration, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal("expected defaults for a missing file, got:", err)
	}
	if len(configuration.Log.Dirs) != 1 || configuration.Log.Dirs[0] != "/var/log" {
		t.Error("unexpected default dirs:", configuration.Log.Dirs)
	}
}

// TestLoadRejectsUnknownKeys verifies strict unmarshaling.
func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  dir: [\"/var/log\"]\n"), 0600); err != nil {
		t.Fatal("unable to write configuration:", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected unknown keys to be rejected")
	}
}

// TestApplyEnvironment verifies environment variable overrides.
func TestApplyEnvironment(t *testing.T) {
	configuration := Default()
	err := configuration.ApplyEnvironment(map[string]string{
		"LOGTIDE_LOG_DIRS":  "/srv/logs, /var/log/app",
		"LOGTIDE_INCLUDE":   "*.log",
		"LOGTIDE_EXCLUDE":   "*.bak",
		"LOGTIDE_DEBOUNCE":  "250ms",
		"LOGTIDE_LOG_LEVEL": "trace",
	})
	if err != nil {
		t.Fatal("unable to apply environment:", err)
	}
	if len(configuration.Log.Dirs) != 2 || configuration.Log.Dirs[1] != "/var/log/app" {
		t.Error("unexpected dirs:", configuration.Log.Dirs)
	}
	if time.Duration(configuration.Log.Debounce) != 250*time.Millisecond {
		t.Error("unexpected debounce:", configuration.Log.Debounce)
	}
	if configuration.Log.Level != "trace" {
		t.Error("unexpected level:", configuration.Log.Level)
	}
	if err := configuration.Validate(); err != nil {
		t.Error("overridden configuration failed validation:", err)
	}
}

// TestApplyEnvironmentRejectsBadDebounce verifies duration parsing errors.
func TestApplyEnvironmentRejectsBadDebounce(t *testing.T) {
	configuration := Default()
	if err := configuration.ApplyEnvironment(map[string]string{"LOGTIDE_DEBOUNCE": "soon"}); err == nil {
		t.Error("expected a malformed debounce to be rejected")
	}
}

// TestLoadDotEnv verifies .env file reading.
func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LOGTIDE_LOG_LEVEL=debug\n"), 0600); err != nil {
		t.Fatal("unable to write environment file:", err)
	}
	environment, err := LoadDotEnv(path)
	if err != nil {
		t.Fatal("unable to read environment file:", err)
	}
	if environment["LOGTIDE_LOG_LEVEL"] != "debug" {
		t.Error("unexpected environment:", environment)
	}

	// A missing file yields an empty map.
	environment, err = LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil || len(environment) != 0 {
		t.Error("expected an empty map for a missing file")
	}
}

// TestValidateRejectsRelativeDirs verifies path validation.
func TestValidateRejectsRelativeDirs(t *testing.T) {
	configuration := Default()
	configuration.Log.Dirs = []string{"var/log"}
	if err := configuration.Validate(); err == nil {
		t.Error("expected a relative directory to be rejected")
	}
}

// TestRulesCompilation verifies pattern compilation into a rule set.
func TestRulesCompilation(t *testing.T) {
	configuration := Default()
	configuration.Log.Include = MatcherConfiguration{
		Glob:  []string{"*.log"},
		Regex: []string{`syslog(\.\d+)?$`},
	}
	configuration.Log.Exclude = MatcherConfiguration{Glob: []string{"*.tmp.log"}}

	set, err := configuration.Rules()
	if err != nil {
		t.Fatal("unable to compile rules:", err)
	}
	if !set.Passes("/var/log/app.log").Ok() {
		t.Error("expected glob inclusion to admit path")
	}
	if !set.Passes("/var/log/syslog.1").Ok() {
		t.Error("expected regex inclusion to admit path")
	}
	if set.Passes("/var/log/app.tmp.log").Ok() {
		t.Error("expected exclusion to block path")
	}

	// Malformed patterns surface as errors.
	configuration.Log.Include.Regex = []string{"("}
	if _, err := configuration.Rules(); err == nil {
		t.Error("expected a malformed pattern to be rejected")
	}
}
