// Package runner executes the posting workflow for each configured account
// and aggregates a run summary.
//
// Execution is fully sequential: one account at a time, one file at a time.
// A failure (or panic) in one account's run never aborts the others; it is
// folded into that account's summary line.
package runner

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/threads-autopost/internal/config"
	"github.com/fpang/threads-autopost/internal/dropbox"
	"github.com/fpang/threads-autopost/internal/telegram"
	"github.com/fpang/threads-autopost/internal/threads"
)

// Storage is the Dropbox surface the runner needs. *dropbox.Client satisfies this.
type Storage interface {
	Authenticate(ctx context.Context) error
	ListFolder(ctx context.Context, path string) ([]dropbox.Entry, error)
	TemporaryLink(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
}

// Publisher publishes one file to an account's feed. *threads.Publisher
// satisfies this.
type Publisher interface {
	Publish(ctx context.Context, fileName, mediaURL, caption string, video bool) threads.Result
}

// Captions resolves the caption for an account. *captions.Resolver satisfies this.
type Captions interface {
	Resolve(account string) string
}

// Reporter is the per-account notification surface. *telegram.Notifier
// satisfies this.
type Reporter interface {
	Logf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Criticalf(ctx context.Context, format string, args ...any)
	Flush(ctx context.Context)
}

// SummarySender delivers the aggregated run summary.
type SummarySender interface {
	Send(ctx context.Context, text string) error
}

// Runner drives the full multi-account run. Collaborator construction is
// injectable for tests.
type Runner struct {
	cfg      *config.Config
	captions Captions

	newReporter  func(acct config.Account) Reporter
	newStorage   func(acct config.Account) Storage
	newPublisher func(acct config.Account, rep Reporter) Publisher
	summary      SummarySender

	runID string

	// pick selects a file index uniformly at random; a hook for tests.
	pick func(n int) int
	now  func() time.Time
}

// New creates a Runner wired to the real Dropbox, Threads, and Telegram
// collaborators.
func New(cfg *config.Config, resolver Captions) *Runner {
	return &Runner{
		cfg:      cfg,
		captions: resolver,
		newReporter: func(acct config.Account) Reporter {
			prefix := fmt.Sprintf("[%s] [threads-autopost]", acct.Name)
			return telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, prefix)
		},
		newStorage: func(acct config.Account) Storage {
			return dropbox.NewClient(acct.DropboxAppKey, acct.DropboxAppSecret, acct.DropboxRefreshToken)
		},
		newPublisher: func(acct config.Account, rep Reporter) Publisher {
			client := threads.NewClient(acct.ThreadsAccessToken, acct.ThreadsUserID)
			return threads.NewPublisher(client, rep, acct.PrePublishDelay)
		},
		summary: telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, ""),
		runID:   uuid.NewString(),
		pick:    rand.Intn,
		now:     time.Now,
	}
}

// RunID returns the unique identifier for this run.
func (r *Runner) RunID() string {
	return r.runID
}

// Run processes all configured accounts sequentially, then sends one
// aggregated summary notification.
func (r *Runner) Run(ctx context.Context) {
	log.Info().Str("runId", r.runID).Int("accounts", len(r.cfg.Accounts)).Msg("Starting multi-account run")

	lines := make([]string, 0, len(r.cfg.Accounts))
	for _, acct := range r.cfg.Accounts {
		lines = append(lines, r.RunAccount(ctx, acct))
	}

	summary := "[Threads Multi-Account Summary]\n" + strings.Join(lines, "\n")
	log.Info().Str("runId", r.runID).Msg(summary)
	if err := r.summary.Send(ctx, summary); err != nil {
		log.Error().Err(err).Msg("Telegram send error (overall summary)")
	}
}

// RunAccount executes the workflow for one account end-to-end and returns its
// summary line. Panics are recovered and reported so one account cannot take
// down the run.
func (r *Runner) RunAccount(ctx context.Context, acct config.Account) (line string) {
	rep := r.newReporter(acct)
	start := r.now()

	defer rep.Flush(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			rep.Criticalf(ctx, "❌ Run crashed: %v", rec)
			line = fmt.Sprintf("%s: run crashed, ❌ Failed", acct.Name)
		}
		rep.Logf("🏁 Run complete in %.1f seconds", r.now().Sub(start).Seconds())
	}()

	rep.Logf("📡 Threads run started at: %s", start.Format("2006-01-02 15:04:05"))

	caption := r.captions.Resolve(acct.Name)

	storage := r.newStorage(acct)
	if err := storage.Authenticate(ctx); err != nil {
		rep.Errorf("❌ Dropbox authentication failed: %v", err)
		return fmt.Sprintf("%s: Dropbox error, could not count files.", acct.Name)
	}

	entries, err := storage.ListFolder(ctx, acct.DropboxFolder)
	if err != nil {
		rep.Errorf("❌ Dropbox listing failed: %v", err)
		return fmt.Sprintf("%s: Dropbox error, could not count files.", acct.Name)
	}

	files := dropbox.EligibleFiles(entries)
	count := len(files)
	if count == 0 {
		rep.Logf("📭 No files found in Dropbox folder.")
		return fmt.Sprintf("%s: %d files, no file posted.", acct.Name, count)
	}

	file := files[r.pick(count)]
	rep.Logf("🎲 Selected %s (%d eligible files)", file.Name, count)

	link, err := storage.TemporaryLink(ctx, file.PathLower)
	if err != nil {
		// No direct link routes to the text-only post path.
		rep.Warnf("⚠️ Could not get temporary link for %s: %v", file.Name, err)
		link = ""
	}

	result := r.newPublisher(acct, rep).Publish(ctx, file.Name, link, caption, file.IsVideo())

	// The source file is consumed by the attempt, success or not. A failed
	// delete only warns so the publish outcome is preserved.
	if err := storage.Delete(ctx, file.PathLower); err != nil {
		rep.Warnf("⚠️ Failed to delete file %s: %v", file.Name, err)
	} else {
		rep.Logf("🗑️ Deleted file after attempt: %s", file.Name)
	}

	status := "❌ Failed"
	if result.Success {
		status = "✅ Success"
	}
	return fmt.Sprintf("%s: %d files, posted: %s, %s", acct.Name, count, file.Name, status)
}
