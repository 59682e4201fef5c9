// Package config loads run configuration from environment variables.
//
// Accounts are declared with numbered variable groups (ACCOUNT_NAME_1,
// THREADS_USER_ID_1, DROPBOX_APP_KEY_1, ...). Discovery stops at the first
// gap in the numbering, so accounts must be declared contiguously from 1.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Account holds the credentials and settings for one Threads account and its
// Dropbox source folder. Loaded once at process start, never mutated.
type Account struct {
	Name                string
	ThreadsUserID       string
	ThreadsAccessToken  string
	DropboxAppKey       string
	DropboxAppSecret    string
	DropboxRefreshToken string
	DropboxFolder       string

	// PrePublishDelay is an extra wait applied unconditionally before the
	// publish step for this account. Zero for most accounts.
	PrePublishDelay time.Duration
}

// Telegram holds the shared notification channel settings. Both fields empty
// means notifications are log-only.
type Telegram struct {
	BotToken string
	ChatID   string
}

// Config is the full run configuration.
type Config struct {
	Accounts     []Account
	Telegram     Telegram
	CaptionsFile string
	Timezone     string
}

// requiredAccountVars are the per-account environment variables that must all
// be present once an account number is declared.
var requiredAccountVars = []string{
	"THREADS_USER_ID",
	"THREADS_ACCESS_TOKEN",
	"DROPBOX_APP_KEY",
	"DROPBOX_APP_SECRET",
	"DROPBOX_REFRESH_TOKEN",
	"DROPBOX_FOLDER",
}

// Load reads configuration from the environment. At least one fully
// configured account is required.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("CAPTIONS_FILE", "captions.yaml")
	v.SetDefault("TIMEZONE", "Asia/Kolkata")

	cfg := &Config{
		Telegram: Telegram{
			BotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
			ChatID:   v.GetString("TELEGRAM_CHAT_ID"),
		},
		CaptionsFile: v.GetString("CAPTIONS_FILE"),
		Timezone:     v.GetString("TIMEZONE"),
	}

	for i := 1; ; i++ {
		name := v.GetString(fmt.Sprintf("ACCOUNT_NAME_%d", i))
		if name == "" {
			break
		}

		acct := Account{Name: name}
		for _, key := range requiredAccountVars {
			envVar := fmt.Sprintf("%s_%d", key, i)
			val := v.GetString(envVar)
			if val == "" {
				return nil, fmt.Errorf("account %q: missing required environment variable %s", name, envVar)
			}
			switch key {
			case "THREADS_USER_ID":
				acct.ThreadsUserID = val
			case "THREADS_ACCESS_TOKEN":
				acct.ThreadsAccessToken = strings.TrimSpace(val)
			case "DROPBOX_APP_KEY":
				acct.DropboxAppKey = val
			case "DROPBOX_APP_SECRET":
				acct.DropboxAppSecret = val
			case "DROPBOX_REFRESH_TOKEN":
				acct.DropboxRefreshToken = val
			case "DROPBOX_FOLDER":
				acct.DropboxFolder = val
			}
		}

		if secs := v.GetInt(fmt.Sprintf("PRE_PUBLISH_DELAY_SECONDS_%d", i)); secs > 0 {
			acct.PrePublishDelay = time.Duration(secs) * time.Second
		}

		cfg.Accounts = append(cfg.Accounts, acct)
	}

	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured: set ACCOUNT_NAME_1 and related variables")
	}

	return cfg, nil
}
