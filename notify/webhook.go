// Package notify delivers new-listing notifications to Discord-compatible
// webhooks, batching lines to stay under message-size and rate limits.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/yogiovic/sreality-cron-querybot/models"
)

type DeliverStatus int

const (
	DeliverOK DeliverStatus = iota
	DeliverRateLimited
	DeliverFailed
)

type DeliverResult struct {
	Status     DeliverStatus
	RetryAfter time.Duration // populated on DeliverRateLimited
	Err        error
}

// Sink is the delivery collaborator. Status distinguishes success,
// rate-limited (with the sink's requested backoff) and hard failure.
type Sink interface {
	Deliver(ctx context.Context, destination, content string) DeliverResult
}

// WebhookSink posts message content to a Discord webhook URL.
type WebhookSink struct {
	client *http.Client
}

func NewWebhookSink(client *http.Client) *WebhookSink {
	return &WebhookSink{client: client}
}

func (s *WebhookSink) Deliver(ctx context.Context, destination, content string) DeliverResult {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return DeliverResult{Status: DeliverFailed, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(payload))
	if err != nil {
		return DeliverResult{Status: DeliverFailed, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return DeliverResult{Status: DeliverFailed, Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		return DeliverResult{Status: DeliverOK}
	case resp.StatusCode == http.StatusTooManyRequests:
		return DeliverResult{
			Status:     DeliverRateLimited,
			RetryAfter: parseRetryAfter(body),
		}
	default:
		return DeliverResult{
			Status: DeliverFailed,
			Err:    fmt.Errorf("webhook status %d: %s", resp.StatusCode, body),
		}
	}
}

func parseRetryAfter(body []byte) time.Duration {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.RetryAfter <= 0 {
		return 5 * time.Second
	}
	return time.Duration(payload.RetryAfter * float64(time.Second))
}

// Dispatcher groups listing lines into batches and delivers them with one
// retry on rate limiting and a fixed delay between batches.
type Dispatcher struct {
	sink       Sink
	batchSize  int
	batchDelay time.Duration
}

func NewDispatcher(sink Sink, batchSize int, batchDelay time.Duration) *Dispatcher {
	if batchSize < 1 {
		batchSize = 10
	}
	return &Dispatcher{sink: sink, batchSize: batchSize, batchDelay: batchDelay}
}

// Dispatch formats one line per listing and sends them in batches. A batch
// that still fails after the single rate-limit retry is logged and
// abandoned; its identities are already folded into the seen-set, so
// re-queueing would change nothing except double-reporting risk later.
// Returns the number of listings delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, destination string, listings []models.Listing, mention string) int {
	if len(listings) == 0 {
		return 0
	}

	lines := make([]string, len(listings))
	for i, listing := range listings {
		lines[i] = FormatListing(listing, mention)
	}

	delivered := 0
	for start := 0; start < len(lines); start += d.batchSize {
		end := start + d.batchSize
		if end > len(lines) {
			end = len(lines)
		}
		batch := lines[start:end]
		content := joinLines(batch)

		if d.deliverBatch(ctx, destination, content) {
			delivered += len(batch)
			log.Printf("Posted %d listing(s) to webhook", len(batch))
		}

		if end < len(lines) {
			sleepCtx(ctx, d.batchDelay)
		}
	}

	return delivered
}

func (d *Dispatcher) deliverBatch(ctx context.Context, destination, content string) bool {
	result := d.sink.Deliver(ctx, destination, content)
	if result.Status == DeliverRateLimited {
		log.Printf("Rate limited by webhook, waiting %s before retry", result.RetryAfter)
		sleepCtx(ctx, result.RetryAfter)
		result = d.sink.Deliver(ctx, destination, content)
	}
	if result.Status != DeliverOK {
		log.Printf("Webhook delivery failed, batch abandoned: %v", result.Err)
		return false
	}
	return true
}

// FormatListing renders one human-readable notification line.
func FormatListing(l models.Listing, mention string) string {
	name := l.Name()
	if name == "" {
		name = "N/A"
	}
	line := "**New Listing:** " + name
	if mention != "" {
		line += " - " + mention
	}
	if url := l.URL(); url != "" {
		line += " - <" + url + ">"
	}
	return line
}

func joinLines(lines []string) string {
	var b bytes.Buffer
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
