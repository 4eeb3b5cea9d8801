// Package poller is the downstream orchestration sensor: it watches the
// finished-job high-water mark and fires exactly one webhook call per
// observed increase, using the mark as the dedup key. The transformation
// pipeline behind the webhook is an external system.
package poller

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/colby/bambulog/internal/logger"
	"github.com/colby/bambulog/internal/repository"
)

// Config holds poller configuration.
type Config struct {
	// Interval between watermark checks.
	Interval time.Duration
	// WebhookURL receives one POST per watermark increase. Empty means the
	// poller only logs new marks, for setups where the consumer polls the
	// HTTP API instead.
	WebhookURL string
	// CursorFile persists the last triggered mark so restarts do not
	// re-fire old jobs. Empty keeps the cursor in memory only.
	CursorFile string
	// RequestTimeout bounds each webhook call.
	RequestTimeout time.Duration
}

// triggerRequest is the webhook body. RunKey deduplicates on the consumer
// side; JobID is the watermark row id for direct lookup.
type triggerRequest struct {
	RunKey string `json:"run_key"`
	JobID  int64  `json:"job_id"`
}

// Poller polls the job store and triggers the downstream webhook.
type Poller struct {
	repo       *repository.JobRepository
	client     *resty.Client
	interval   time.Duration
	webhookURL string
	cursorFile string
	cursor     int64
}

// New creates a Poller, restoring the cursor from the cursor file when one
// is configured and present.
// Parameters:
//   - repo: job repository to poll.
//   - cfg: poller configuration.
// Returns:
//   - *Poller: poller ready to Run.
func New(repo *repository.JobRepository, cfg *Config) *Poller {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")

	p := &Poller{
		repo:       repo,
		client:     client,
		interval:   cfg.Interval,
		webhookURL: cfg.WebhookURL,
		cursorFile: cfg.CursorFile,
	}
	p.cursor = p.loadCursor()
	return p
}

// Run polls until the context is canceled. The first check happens after
// one interval, not immediately, so a restart right after a trigger does
// not hammer the webhook.
// Parameters:
//   - ctx: cancellation for the whole loop.
// Returns: none.
func (p *Poller) Run(ctx context.Context) {
	logger.Info("Poller started (interval %s, cursor %d)", p.interval, p.cursor)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll performs one watermark check. Errors never advance the cursor: a
// failed trigger is retried with the same mark on the next tick.
func (p *Poller) poll(ctx context.Context) {
	mark, err := p.repo.FinishedHighWaterMark(ctx)
	if err != nil {
		logger.GetDefault().WithError(err).Error("Failed to read high-water mark")
		return
	}
	if mark <= p.cursor {
		return
	}

	if p.webhookURL != "" {
		if err := p.trigger(ctx, mark); err != nil {
			logger.GetDefault().WithError(err).
				WithField(logger.FieldRowID, mark).
				Error("Webhook trigger failed, will retry")
			return
		}
	}

	logger.GetDefault().WithField(logger.FieldRowID, mark).Info("New finished print job detected")
	p.cursor = mark
	p.saveCursor(mark)
}

// trigger fires the webhook for the given mark.
func (p *Poller) trigger(ctx context.Context, mark int64) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(triggerRequest{RunKey: strconv.FormatInt(mark, 10), JobID: mark}).
		Post(p.webhookURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &webhookError{status: resp.StatusCode()}
	}
	return nil
}

type webhookError struct {
	status int
}

func (e *webhookError) Error() string {
	return "webhook returned status " + strconv.Itoa(e.status)
}

func (p *Poller) loadCursor() int64 {
	if p.cursorFile == "" {
		return 0
	}
	data, err := os.ReadFile(p.cursorFile)
	if err != nil {
		return 0
	}
	cursor, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		logger.Warn("Ignoring malformed cursor file %s: %v", p.cursorFile, err)
		return 0
	}
	return cursor
}

func (p *Poller) saveCursor(mark int64) {
	if p.cursorFile == "" {
		return
	}
	if err := os.WriteFile(p.cursorFile, []byte(strconv.FormatInt(mark, 10)), 0644); err != nil {
		logger.GetDefault().WithError(err).Warn("Failed to persist poller cursor")
	}
}
