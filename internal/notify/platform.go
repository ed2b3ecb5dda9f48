package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Notification is the content of one notification.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Trigger fires a notification every day at Hour:Minute local time.
type Trigger struct {
	Hour   int
	Minute int
}

// Platform schedules notifications. A nil trigger delivers immediately.
type Platform interface {
	CancelAll(ctx context.Context) error
	Schedule(ctx context.Context, n Notification, trigger *Trigger) error
}

// Deliverer hands a notification to the outside world.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogDeliverer writes notifications to the log.
type LogDeliverer struct {
	Logger zerolog.Logger
}

// Deliver logs n.
func (d LogDeliverer) Deliver(_ context.Context, n Notification) error {
	d.Logger.Info().Str("title", n.Title).Str("body", n.Body).Interface("data", n.Data).Msg("notification delivered")
	return nil
}

// WebhookDeliverer POSTs notifications as JSON to URL.
type WebhookDeliverer struct {
	URL    string
	Client *http.Client
}

// NewWebhookDeliverer constructs a WebhookDeliverer with a bounded client.
func NewWebhookDeliverer(url string, timeout time.Duration) *WebhookDeliverer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookDeliverer{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Deliver posts n and fails on any non-2xx answer.
func (d *WebhookDeliverer) Deliver(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// CronPlatform schedules daily notifications on a cron runner in one timezone.
type CronPlatform struct {
	cron      *cron.Cron
	deliverer Deliverer
	logger    zerolog.Logger

	mu      sync.Mutex
	entries []cron.EntryID
}

// NewCronPlatform constructs a CronPlatform. Call Start to begin firing.
func NewCronPlatform(loc *time.Location, deliverer Deliverer, logger zerolog.Logger) *CronPlatform {
	if loc == nil {
		loc = time.Local
	}
	return &CronPlatform{
		cron:      cron.New(cron.WithLocation(loc)),
		deliverer: deliverer,
		logger:    logger,
	}
}

// Start runs the scheduler in its own goroutine.
func (p *CronPlatform) Start() { p.cron.Start() }

// Stop halts the scheduler and waits for running jobs.
func (p *CronPlatform) Stop() {
	<-p.cron.Stop().Done()
}

// CancelAll removes every scheduled notification.
func (p *CronPlatform) CancelAll(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.entries {
		p.cron.Remove(id)
	}
	p.entries = nil
	return nil
}

// Schedule registers n at trigger, or delivers it now when trigger is nil.
func (p *CronPlatform) Schedule(ctx context.Context, n Notification, trigger *Trigger) error {
	if trigger == nil {
		return p.deliverer.Deliver(ctx, n)
	}
	if trigger.Hour < 0 || trigger.Hour > 23 || trigger.Minute < 0 || trigger.Minute > 59 {
		return fmt.Errorf("invalid trigger %02d:%02d", trigger.Hour, trigger.Minute)
	}

	spec := fmt.Sprintf("%d %d * * *", trigger.Minute, trigger.Hour)
	id, err := p.cron.AddFunc(spec, func() {
		if err := p.deliverer.Deliver(context.Background(), n); err != nil {
			p.logger.Error().Err(err).Str("title", n.Title).Msg("scheduled notification delivery failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	p.mu.Lock()
	p.entries = append(p.entries, id)
	p.mu.Unlock()
	return nil
}

// Scheduled returns the next fire time of every scheduled notification.
func (p *CronPlatform) Scheduled() []time.Time {
	p.mu.Lock()
	ids := append([]cron.EntryID(nil), p.entries...)
	p.mu.Unlock()

	out := make([]time.Time, 0, len(ids))
	for _, id := range ids {
		entry := p.cron.Entry(id)
		if entry.Valid() {
			out = append(out, entry.Schedule.Next(time.Now()))
		}
	}
	return out
}
