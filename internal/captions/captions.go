// Package captions resolves the caption to post for an account on a given day.
//
// The schedule file is YAML mapping account name -> weekday name -> caption:
//
//	eclipsed.by.you:
//	  Monday: "Start of the week ✨"
//	  Friday: "Weekend loading..."
//
// Missing files or entries fall back to a generated default caption, never an
// error: a run should still post even when the schedule is incomplete.
package captions

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Schedule is the parsed schedule file contents.
type Schedule map[string]map[string]string

// Resolver resolves captions from a schedule file in a fixed timezone.
type Resolver struct {
	path     string
	location *time.Location

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

// NewResolver creates a Resolver for the given schedule file path and
// timezone location.
func NewResolver(path string, loc *time.Location) *Resolver {
	return &Resolver{
		path:     path,
		location: loc,
		now:      time.Now,
	}
}

// Resolve returns the caption for the account on today's weekday, or the
// default caption when the schedule file or entry is missing.
func (r *Resolver) Resolve(account string) string {
	schedule, err := r.load()
	if err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("Could not load caption schedule, using default caption")
		return DefaultCaption(account)
	}

	weekday := r.now().In(r.location).Weekday().String()
	caption, ok := schedule[account][weekday]
	if !ok || caption == "" {
		log.Debug().Str("account", account).Str("weekday", weekday).Msg("No scheduled caption, using default")
		return DefaultCaption(account)
	}
	return caption
}

// DefaultCaption is the fallback caption embedding the account name.
func DefaultCaption(account string) string {
	return fmt.Sprintf("✨ #%s ✨", account)
}

func (r *Resolver) load() (Schedule, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}

	var schedule Schedule
	if err := yaml.Unmarshal(data, &schedule); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	return schedule, nil
}
