package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spendlens/internal/cache"
	"spendlens/internal/costcontrol"
	logger "spendlens/internal/log"
	"spendlens/internal/notify"
)

// AlertSubject is the subject line of cost alert notifications.
const AlertSubject = "spendlens cost alerts"

// MaintenanceConfig holds configuration for the maintenance processor
type MaintenanceConfig struct {
	// Interval is how often a maintenance pass runs (default: 1h)
	Interval time.Duration

	// RetentionDays is the age after which stored analyses are deleted (default: 365)
	RetentionDays int

	// AlertWindowDays is the trend window the alert rules look at (default: 7)
	AlertWindowDays int
}

// DefaultMaintenanceConfig returns sensible defaults
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Interval:        1 * time.Hour,
		RetentionDays:   costcontrol.DefaultRetentionDays,
		AlertWindowDays: 7,
	}
}

// MaintenanceReport summarizes one pass.
type MaintenanceReport struct {
	ExpiredEntries  int
	DeletedAnalyses int64
	Alerts          []costcontrol.Alert
	// Notified are the alerts that were not active on the previous pass.
	Notified []costcontrol.Alert
}

// Maintenance periodically expires cache entries, prunes old analyses,
// snapshots the cost counters and sends new cost alerts.
type Maintenance struct {
	costs    *costcontrol.Manager
	caches   *cache.Manager
	notifier notify.Notifier
	config   MaintenanceConfig

	active map[string]bool

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMaintenance creates the processor. Any dependency may be nil, which
// skips the corresponding step.
func NewMaintenance(costs *costcontrol.Manager, caches *cache.Manager, notifier notify.Notifier, config MaintenanceConfig) *Maintenance {
	return &Maintenance{
		costs:    costs,
		caches:   caches,
		notifier: notifier,
		config:   config,
		active:   map[string]bool{},
	}
}

// Start begins the maintenance loop. Returns an error if already running.
func (p *Maintenance) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("maintenance processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Maintenance processor started",
		logger.FieldComponent, logger.ComponentWorker,
		"interval", p.config.Interval,
		"retention_days", p.config.RetentionDays)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *Maintenance) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	// A second Stop returns early, even after a timed-out first one.
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	// Wait for completion or context cancellation
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Maintenance processor stopped gracefully",
			logger.FieldComponent, logger.ComponentWorker)
	case <-ctx.Done():
		slog.WarnContext(ctx, "Maintenance processor stop timed out",
			logger.FieldComponent, logger.ComponentWorker)
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *Maintenance) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop is the main processing loop
func (p *Maintenance) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	interval := p.config.Interval
	if interval <= 0 {
		interval = DefaultMaintenanceConfig().Interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on startup
	p.RunOnce(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single maintenance pass. Step failures are logged and
// the remaining steps still run.
func (p *Maintenance) RunOnce(ctx context.Context) MaintenanceReport {
	var r MaintenanceReport

	if p.caches != nil {
		r.ExpiredEntries = p.caches.CleanNow()
	}

	if p.costs != nil {
		n, err := p.costs.Cleanup(ctx, p.config.RetentionDays)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to clean up old analyses",
				logger.FieldComponent, logger.ComponentCostControl,
				logger.FieldError, err)
		}
		r.DeletedAnalyses = n

		if err := p.costs.Snapshot(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to snapshot cost metrics",
				logger.FieldComponent, logger.ComponentCostControl,
				logger.FieldError, err)
		}

		r.Alerts = p.evaluateAlerts(ctx)
		r.Notified = p.newAlerts(r.Alerts)
		if len(r.Notified) > 0 && p.notifier != nil {
			if err := p.notifier.Notify(ctx, AlertSubject, r.Notified); err != nil {
				slog.ErrorContext(ctx, "Failed to send cost alerts",
					logger.FieldComponent, logger.ComponentNotify,
					logger.FieldError, err)
			}
		}
	}

	slog.DebugContext(ctx, "Maintenance pass finished",
		logger.FieldComponent, logger.ComponentWorker,
		"expired_entries", r.ExpiredEntries,
		"deleted_analyses", r.DeletedAnalyses,
		"alerts", len(r.Alerts))
	return r
}

// evaluateAlerts runs the monitor rules once there is any recorded activity.
func (p *Maintenance) evaluateAlerts(ctx context.Context) []costcontrol.Alert {
	c := p.costs.Counters()
	if c.APICalls == 0 && c.CacheHits == 0 {
		return nil
	}
	s, err := p.costs.Summary(ctx, p.config.AlertWindowDays)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build cost summary",
			logger.FieldComponent, logger.ComponentCostControl,
			logger.FieldError, err)
		return nil
	}
	return costcontrol.Monitor(s).Alerts
}

// newAlerts returns the alerts whose kind was not active on the previous
// pass and remembers the current set.
func (p *Maintenance) newAlerts(alerts []costcontrol.Alert) []costcontrol.Alert {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]bool, len(alerts))
	var fresh []costcontrol.Alert
	for _, a := range alerts {
		current[a.Kind] = true
		if !p.active[a.Kind] {
			fresh = append(fresh, a)
		}
	}
	p.active = current
	return fresh
}
