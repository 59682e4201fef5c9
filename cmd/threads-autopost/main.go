// Command threads-autopost posts one media file per configured account from
// a Dropbox folder to Threads, then reports a run summary to Telegram.
//
// Intended to run from a scheduler (cron, GitHub Actions): one invocation is
// one complete run, all configuration comes from environment variables.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/threads-autopost/internal/captions"
	"github.com/fpang/threads-autopost/internal/config"
	"github.com/fpang/threads-autopost/internal/logging"
	"github.com/fpang/threads-autopost/internal/runner"
)

// CLI flags
var (
	captionsFlag string
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "threads-autopost",
	Short: "Post media from Dropbox folders to Threads accounts",
	Long: `threads-autopost runs the posting workflow once for every configured
account: it picks one random eligible media file from the account's Dropbox
folder, publishes it to Threads (with transcode polling and bounded publish
retries), deletes the source file, and sends a per-account report plus an
overall summary to a Telegram chat.

Accounts are configured through numbered environment variables
(ACCOUNT_NAME_1, THREADS_USER_ID_1, DROPBOX_APP_KEY_1, ...). Captions come
from a YAML schedule keyed by account name and weekday.

Examples:
  threads-autopost
  threads-autopost --captions /etc/autopost/captions.yaml
  AUTOPOST_LOG_LEVEL=debug threads-autopost`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&captionsFlag, "captions", "", "Path to the caption schedule file (default: CAPTIONS_FILE env or captions.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if captionsFlag != "" {
		cfg.CaptionsFile = captionsFlag
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Invalid timezone")
	}

	resolver := captions.NewResolver(cfg.CaptionsFile, loc)
	run := runner.New(cfg, resolver)

	startup := logging.NewStartupLogger("threads-autopost").
		RunID(run.RunID()).
		Feature("telegram", cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "").
		Config("captionsFile", cfg.CaptionsFile).
		Config("timezone", cfg.Timezone).
		InitDuration(time.Since(initStart))
	for _, acct := range cfg.Accounts {
		startup.Account(acct.Name)
	}
	startup.Log()

	run.Run(context.Background())
}
