package threads

import (
	"context"
	"fmt"
	"time"
)

const (
	// maxPollAttempts bounds transcode status polling.
	maxPollAttempts = 20
	pollInterval    = 1 * time.Second

	// settleDelay gives the backend time to finalize a transcoded video
	// after the status endpoint reports FINISHED.
	settleDelay = 3 * time.Second

	// maxPublishAttempts bounds publish retries on the backend-not-ready
	// subcode. Any other publish failure is terminal immediately.
	maxPublishAttempts = 3
	publishRetryDelay  = 5 * time.Second
)

// Notifier receives human-readable progress messages for the run report.
// *telegram.Notifier satisfies this.
type Notifier interface {
	Logf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Result is the outcome of one publish attempt.
type Result struct {
	Success  bool
	FileName string
	Err      error
}

// Publisher drives the publish protocol for one file: container creation,
// transcode polling, then publish with bounded retries. No state is retained
// between calls.
type Publisher struct {
	client   *Client
	notifier Notifier

	// prePublishDelay is an extra wait applied unconditionally before the
	// publish step; zero for most accounts.
	prePublishDelay time.Duration

	// sleep is a hook for tests; defaults to time.Sleep.
	sleep func(time.Duration)
}

// NewPublisher creates a Publisher for one account's client.
func NewPublisher(client *Client, notifier Notifier, prePublishDelay time.Duration) *Publisher {
	return &Publisher{
		client:          client,
		notifier:        notifier,
		prePublishDelay: prePublishDelay,
		sleep:           time.Sleep,
	}
}

// Publish posts one media file to the account's feed. An empty mediaURL
// routes to a single text-only post with no container lifecycle.
func (p *Publisher) Publish(ctx context.Context, fileName, mediaURL, caption string, video bool) Result {
	if mediaURL == "" {
		return p.publishText(ctx, fileName, caption)
	}

	mediaType := "IMAGE"
	if video {
		mediaType = "VIDEO"
	}
	p.notifier.Logf("🚀 Uploading to Threads: %s\n📐 Type: %s", fileName, mediaType)

	creationID, err := p.client.CreateMediaContainer(ctx, mediaURL, caption, video)
	if err != nil {
		p.notifier.Errorf("❌ Threads media container creation failed: %s\n%v", fileName, err)
		return Result{FileName: fileName, Err: err}
	}

	if err := p.waitForContainer(ctx, creationID, fileName); err != nil {
		p.notifier.Errorf("❌ %v", err)
		return Result{FileName: fileName, Err: err}
	}

	if p.prePublishDelay > 0 {
		p.notifier.Logf("⏳ Extra wait before publishing (%s)...", p.prePublishDelay)
		p.sleep(p.prePublishDelay)
	}

	if err := p.publishWithRetry(ctx, creationID, fileName); err != nil {
		return Result{FileName: fileName, Err: err}
	}

	p.notifier.Logf("✅ Successfully posted to Threads: %s", fileName)
	return Result{Success: true, FileName: fileName}
}

// publishText issues a single text-post creation call.
func (p *Publisher) publishText(ctx context.Context, fileName, caption string) Result {
	p.notifier.Logf("🚀 No media link available, posting text-only for: %s", fileName)
	if err := p.client.CreateTextPost(ctx, caption); err != nil {
		p.notifier.Errorf("❌ Threads post failed: %s\n%v", fileName, err)
		return Result{FileName: fileName, Err: err}
	}
	p.notifier.Logf("✅ Successfully posted to Threads: %s", fileName)
	return Result{Success: true, FileName: fileName}
}

// waitForContainer polls transcode status until FINISHED or ERROR, up to
// maxPollAttempts. Exhausting the budget is a terminal failure: publishing a
// container that never reported FINISHED would only fail downstream with a
// less clear error.
func (p *Publisher) waitForContainer(ctx context.Context, creationID, fileName string) error {
	for attempt := 1; attempt <= maxPollAttempts; attempt++ {
		status, err := p.client.ContainerStatus(ctx, creationID)
		if err != nil {
			return fmt.Errorf("polling failed for %s: %w", fileName, err)
		}

		switch status {
		case StatusFinished:
			p.sleep(settleDelay)
			return nil
		case StatusError:
			return fmt.Errorf("transcode failed for %s (container %s)", fileName, creationID)
		}

		p.sleep(pollInterval)
	}
	return fmt.Errorf("transcode for %s not finished after %d polls (container %s)", fileName, maxPollAttempts, creationID)
}

// publishWithRetry submits the creation ID for publishing, retrying only on
// the backend-not-ready subcode.
func (p *Publisher) publishWithRetry(ctx context.Context, creationID, fileName string) error {
	for attempt := 1; attempt <= maxPublishAttempts; attempt++ {
		_, err := p.client.PublishContainer(ctx, creationID)
		if err == nil {
			return nil
		}

		if !IsBackendNotReady(err) {
			p.notifier.Errorf("❌ Threads publish failed: %s\n%v", fileName, err)
			return err
		}

		if attempt == maxPublishAttempts {
			p.notifier.Errorf("❌ Threads publish failed after retries: %s", fileName)
			return fmt.Errorf("publish failed after %d attempts: %w", maxPublishAttempts, err)
		}

		p.notifier.Warnf("⚠️ Threads backend not ready yet, retrying... (%d/%d)", attempt, maxPublishAttempts)
		p.sleep(publishRetryDelay)
	}
	return nil
}
