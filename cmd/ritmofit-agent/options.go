package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/peterbourgon/ff/v3"
)

// Options is the set of agent options configurable via command-line flags,
// environment variables (RITMOFIT_AGENT_ prefix), or a plain config file.
type Options struct {
	// ServerURL is the base URL of the RitmoFit backend, including the API
	// version prefix.
	ServerURL string

	// RootDirectory is where the agent keeps its database and other local
	// state.
	RootDirectory string

	// PollInterval is the foreground notification polling period.
	PollInterval time.Duration

	// BackgroundInterval is the background fetch period; values below the
	// platform minimum of 15 minutes are raised to it.
	BackgroundInterval time.Duration

	// LogFile, when set, adds a rotating JSON debug log at the given path.
	LogFile string

	// Debug enables debug-level logging on stderr.
	Debug bool
}

// ParseOptions parses the options that may be configured via command-line
// flags and/or environment variables, determines order of precedence and
// returns a typed struct of options for further application use
func ParseOptions(args []string) (*Options, error) {
	flagset := flag.NewFlagSet("ritmofit-agent", flag.ExitOnError)

	var (
		flServerURL          = flagset.String("server_url", "http://localhost:3000/api/v1", "The base URL of the RitmoFit backend")
		flRootDirectory      = flagset.String("root_directory", "", "The location of the local database and other agent state")
		flPollInterval       = flagset.Duration("poll_interval", 15*time.Minute, "The interval at which notifications are polled while the app is in the foreground")
		flBackgroundInterval = flagset.Duration("background_interval", 15*time.Minute, "The interval at which the background fetch task runs (minimum 15m)")
		flLogFile            = flagset.String("log_file", "", "Optionally, a path for a rotating debug log file")
		flDebug              = flagset.Bool("debug", false, "Whether or not debug logging is turned on")
		_                    = flagset.String("config", "", "config file to parse options from (optional)")
	)

	ffOpts := []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("RITMOFIT_AGENT"),
	}

	if err := ff.Parse(flagset, args, ffOpts...); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if *flRootDirectory == "" {
		return nil, fmt.Errorf("root_directory is required")
	}

	opts := &Options{
		ServerURL:          *flServerURL,
		RootDirectory:      *flRootDirectory,
		PollInterval:       *flPollInterval,
		BackgroundInterval: *flBackgroundInterval,
		LogFile:            *flLogFile,
		Debug:              *flDebug,
	}

	return opts, nil
}
