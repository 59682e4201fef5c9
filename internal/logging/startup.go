package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects process identity, configured accounts, and feature
// flags, then emits a single structured zerolog event summarising the state
// at run start. This makes it easy to see exactly how a run was configured
// when troubleshooting from scheduler logs.
type StartupLogger struct {
	name         string
	runID        string
	initDuration time.Duration

	accounts []string
	features map[string]bool
	config   map[string]string
}

// NewStartupLogger creates a StartupLogger for the given process name
// (e.g. "threads-autopost").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:     name,
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// RunID sets the unique identifier for this run.
func (s *StartupLogger) RunID(id string) *StartupLogger {
	s.runID = id
	return s
}

// Account registers a configured account name. Only the name is logged,
// never the credentials.
func (s *StartupLogger) Account(name string) *StartupLogger {
	s.accounts = append(s.accounts, name)
	return s
}

// Feature registers a boolean feature flag (e.g. "telegram").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long startup initialization took to complete.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits a single structured INFO log event with all collected information.
func (s *StartupLogger) Log() {
	evt := log.Info()

	processDict := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", os.Getenv("AUTOPOST_LOG_LEVEL"))

	if s.runID != "" {
		processDict = processDict.Str("runId", s.runID)
	}

	evt = evt.Dict("process", processDict)

	if len(s.accounts) > 0 {
		evt = evt.Strs("accounts", s.accounts)
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		d := zerolog.Dict()
		for k, v := range s.config {
			d = d.Str(k, v)
		}
		evt = evt.Dict("config", d)
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Run startup complete")
}
