package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/logtide-io/logtide/pkg/configuration"
	"github.com/logtide-io/logtide/pkg/filesystem/cache"
	"github.com/logtide-io/logtide/pkg/logging"
	"github.com/logtide-io/logtide/pkg/logtide"
	"github.com/logtide-io/logtide/pkg/metrics"
)

// environmentKeys are the environment variables consulted for configuration
// overrides. Process environment values outrank .env file values.
var environmentKeys = []string{
	"LOGTIDE_LOG_DIRS",
	"LOGTIDE_INCLUDE",
	"LOGTIDE_EXCLUDE",
	"LOGTIDE_DEBOUNCE",
	"LOGTIDE_LOG_LEVEL",
}

// collectEnvironment merges the .env file contents with the process
// environment.
func collectEnvironment(envFile string) (map[string]string, error) {
	environment, err := configuration.LoadDotEnv(envFile)
	if err != nil {
		return nil, err
	}
	for _, key := range environmentKeys {
		if value, ok := os.LookupEnv(key); ok {
			environment[key] = value
		}
	}
	return environment, nil
}

// describe renders a semantic event for the trace output.
func describe(fs *cache.FileSystem, event cache.Event) string {
	view, ok := fs.View(event.Key)
	if !ok {
		return fmt.Sprintf("%s %s", event.Kind, event.Key)
	}
	switch {
	case view.Kind == cache.EntrySymlink:
		return fmt.Sprintf("%s symlink %s -> %s", event.Kind, view.Path, view.Link)
	case view.Kind == cache.EntryFile && (event.Kind == cache.EventInitialize || event.Kind == cache.EventNew):
		if info, err := os.Stat(view.Path); err == nil {
			return fmt.Sprintf("%s file %s (%s)", event.Kind, view.Path, humanize.Bytes(uint64(info.Size())))
		}
		return fmt.Sprintf("%s file %s", event.Kind, view.Path)
	default:
		return fmt.Sprintf("%s %s %s", event.Kind, view.Kind, view.Path)
	}
}

func runMain(command *cobra.Command, arguments []string) error {
	// Load the configuration file and overlay environment and flag
	// overrides.
	cfg, err := configuration.Load(runConfiguration.configFile)
	if err != nil {
		return errors.Wrap(err, "unable to load configuration")
	}
	environment, err := collectEnvironment(runConfiguration.envFile)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnvironment(environment); err != nil {
		return err
	}
	if len(runConfiguration.dirs) > 0 {
		cfg.Log.Dirs = runConfiguration.dirs
	}
	if len(runConfiguration.include) > 0 {
		cfg.Log.Include = configuration.MatcherConfiguration{Glob: runConfiguration.include}
	}
	if len(runConfiguration.exclude) > 0 {
		cfg.Log.Exclude = configuration.MatcherConfiguration{Glob: runConfiguration.exclude}
	}
	if runConfiguration.debounce != 0 {
		cfg.Log.Debounce = configuration.Duration(runConfiguration.debounce)
	}
	if runConfiguration.logLevel != "" {
		cfg.Log.Level = runConfiguration.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	// Configure logging.
	level, _ := logging.NameToLevel(cfg.Log.Level)
	if logtide.DebugEnabled && level < logging.LevelDebug {
		level = logging.LevelDebug
	}
	logging.SetLevel(level)
	logger := logging.RootLogger.Sublogger("agent")

	// Tag this invocation.
	runID := uuid.New().String()
	logger.Infof("starting logtide %s (run %s)", logtide.Version, runID)

	// Compile the rule set and validate the roots.
	set, err := cfg.Rules()
	if err != nil {
		return errors.Wrap(err, "unable to compile rules")
	}
	var dirs []cache.DirPath
	for _, dir := range cfg.Log.Dirs {
		validated, err := cache.NewDirPath(dir)
		if err != nil {
			return errors.Wrap(err, "invalid log directory")
		}
		dirs = append(dirs, validated)
	}

	// Construct the cache. Bootstrap happens here.
	fs, err := cache.New(dirs, set, time.Duration(cfg.Log.Debounce), logger.Sublogger("fs"))
	if err != nil {
		return errors.Wrap(err, "unable to construct filesystem cache")
	}
	defer fs.Terminate()

	// Cancel the stream on termination signals.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	termination := make(chan os.Signal, 1)
	signal.Notify(termination, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-termination
		logger.Infof("termination requested, shutting down")
		cancel()
	}()

	// Drain the event stream, tracing each semantic event. This is where a
	// tailer pipeline would attach.
	for event := range fs.Stream(ctx) {
		fmt.Println(describe(fs, event))
	}

	// Report final counters.
	snapshot := metrics.Current()
	logger.Infof("shutdown: %d files tracked, %d events, %d errors",
		snapshot.TrackedFiles, snapshot.Events, snapshot.Errors)

	// Success.
	return nil
}

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the agent, streaming filesystem events for the configured log directories",
	Args:  cobra.NoArgs,
	RunE:  runMain,
}

var runConfiguration struct {
	// configFile is the path to the YAML configuration file.
	configFile string
	// envFile is the path to the .env-style environment file.
	envFile string
	// dirs overrides the configured log directories.
	dirs []string
	// include overrides the configured inclusion globs.
	include []string
	// exclude overrides the configured exclusion globs.
	exclude []string
	// debounce overrides the configured debounce interval.
	debounce time.Duration
	// logLevel overrides the configured log level.
	logLevel string
}

func init() {
	flags := runCommand.Flags()
	flags.StringVarP(&runConfiguration.configFile, "config", "c", "/etc/logtide/config.yaml", "Configuration file path")
	flags.StringVar(&runConfiguration.envFile, "env-file", ".env", "Environment file path")
	flags.StringSliceVarP(&runConfiguration.dirs, "dir", "d", nil, "Log directory to track (repeatable)")
	flags.StringSliceVar(&runConfiguration.include, "include", nil, "Inclusion glob (repeatable)")
	flags.StringSliceVar(&runConfiguration.exclude, "exclude", nil, "Exclusion glob (repeatable)")
	flags.DurationVar(&runConfiguration.debounce, "debounce", 0, "Debounce interval for filesystem notifications")
	flags.StringVar(&runConfiguration.logLevel, "log-level", "", "Log level (disabled|error|warn|info|debug|trace)")
}
