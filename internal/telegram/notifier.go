// Package telegram delivers run reports to a Telegram chat via the Bot API.
//
// The Notifier buffers human-readable lines during a run and flushes them as
// one message at the end; critical events can be sent immediately. Messages
// longer than Telegram's limit are split into sequential chunks preserving
// order. An unconfigured notifier (empty bot token) degrades to log-only.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	// defaultBaseURL is the Telegram Bot API base URL.
	defaultBaseURL = "https://api.telegram.org"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second

	// maxMessageLen is the Telegram message length limit this tool splits at.
	maxMessageLen = 4000
)

// Notifier buffers log lines for one account's run and sends them to a
// Telegram chat.
type Notifier struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
	chatID     string

	// prefix is prepended to every buffered line, e.g. "[inkwisp] [threads-autopost]".
	prefix string

	buffer []string
}

// NewNotifier creates a Notifier for the given bot credentials and chat.
// An empty botToken produces a log-only notifier.
func NewNotifier(botToken, chatID, prefix string) *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:  defaultBaseURL,
		botToken: botToken,
		chatID:   chatID,
		prefix:   prefix,
	}
}

// Configured reports whether the notifier can actually reach Telegram.
func (n *Notifier) Configured() bool {
	return n.botToken != "" && n.chatID != ""
}

// Logf buffers a progress line and logs it at INFO level.
func (n *Notifier) Logf(format string, args ...any) {
	msg := n.buffered(format, args...)
	log.Info().Msg(msg)
}

// Warnf buffers a progress line and logs it at WARN level.
func (n *Notifier) Warnf(format string, args ...any) {
	msg := n.buffered(format, args...)
	log.Warn().Msg(msg)
}

// Errorf buffers a progress line and logs it at ERROR level.
func (n *Notifier) Errorf(format string, args ...any) {
	msg := n.buffered(format, args...)
	log.Error().Msg(msg)
}

// Criticalf buffers a line, logs it at ERROR level, and sends it to the chat
// immediately rather than waiting for Flush.
func (n *Notifier) Criticalf(ctx context.Context, format string, args ...any) {
	msg := n.buffered(format, args...)
	log.Error().Msg(msg)
	if err := n.Send(ctx, msg); err != nil {
		log.Error().Err(err).Msg("Telegram send error")
	}
}

func (n *Notifier) buffered(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if n.prefix != "" {
		msg = n.prefix + "\n" + msg
	}
	n.buffer = append(n.buffer, msg)
	return msg
}

// Flush sends all buffered lines as one message (split as needed) and clears
// the buffer. Send errors are logged, never escalated: a lost notification
// must not fail the run.
func (n *Notifier) Flush(ctx context.Context) {
	if len(n.buffer) == 0 {
		return
	}
	summary := strings.Join(n.buffer, "\n")
	n.buffer = nil

	if err := n.Send(ctx, summary); err != nil {
		log.Error().Err(err).Msg("Telegram send error")
	}
}

// Send delivers text to the chat, splitting it into sequential messages when
// it exceeds the length limit.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if !n.Configured() {
		log.Warn().Msg("Telegram bot is not configured, message not sent")
		return nil
	}

	for _, chunk := range splitMessage(text, maxMessageLen) {
		if err := n.sendMessage(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// sendMessage posts one chunk to the Bot API sendMessage endpoint.
func (n *Notifier) sendMessage(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	params := url.Values{
		"chat_id": {n.chatID},
		"text":    {text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Telegram API error: status %s", resp.Status)
	}
	return nil
}

// splitMessage splits text into chunks of at most maxLen bytes, preserving
// order. Cuts only land on rune boundaries: the report lines are full of
// multi-byte characters and Telegram rejects invalid UTF-8.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = maxLen
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}
