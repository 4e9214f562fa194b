package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/metrics"
)

// TimestampLayout is the civil-time layout used in records and messages.
const TimestampLayout = "2006-01-02 15:04:05"

// Config controls Monitor behavior.
type Config struct {
	URL               string
	Recipient         string
	Interval          time.Duration
	Backoff           time.Duration
	AnnounceAvailable bool
}

// Monitor polls a single URL and records structural and style changes.
type Monitor struct {
	cfg        Config
	fetcher    Fetcher
	normalizer Normalizer
	differ     Differ
	recorder   Recorder
	notifier   Notifier
	clock      Clock
	ids        IDGenerator
	hasher     Hasher
	logger     *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.RWMutex
	state    State
	baseline Snapshot
	status   Status
}

// New constructs a Monitor in the AWAITING_FIRST_CONTENT state.
func New(
	cfg Config,
	fetcher Fetcher,
	normalizer Normalizer,
	differ Differ,
	recorder Recorder,
	notifier Notifier,
	clock Clock,
	ids IDGenerator,
	hasher Hasher,
	logger *zap.Logger,
) (*Monitor, error) {
	switch {
	case cfg.URL == "":
		return nil, errors.New("monitor url is required")
	case cfg.Interval <= 0:
		return nil, errors.New("monitor interval must be > 0")
	case cfg.Backoff <= 0:
		return nil, errors.New("monitor backoff must be > 0")
	case fetcher == nil || normalizer == nil || differ == nil:
		return nil, errors.New("fetcher, normalizer and differ are required")
	case recorder == nil || notifier == nil || clock == nil:
		return nil, errors.New("recorder, notifier and clock are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Monitor{
		cfg:        cfg,
		fetcher:    fetcher,
		normalizer: normalizer,
		differ:     differ,
		recorder:   recorder,
		notifier:   notifier,
		clock:      clock,
		ids:        ids,
		hasher:     hasher,
		logger:     logger,
		sleep:      sleepWithContext,
		state:      StateAwaitingFirstContent,
		status: Status{
			URL:   cfg.URL,
			State: StateAwaitingFirstContent,
		},
	}, nil
}

// Run polls until ctx is canceled or the recorder fails. Cancellation is not
// an error.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitoring started",
		zap.String("url", m.cfg.URL),
		zap.String("output", m.recorder.Path()),
		zap.Duration("interval", m.cfg.Interval),
		zap.Duration("backoff", m.cfg.Backoff),
	)
	for {
		if ctx.Err() != nil {
			m.logger.Info("monitoring stopped", zap.String("url", m.cfg.URL))
			return nil
		}
		delay, err := m.Tick(ctx)
		if err != nil {
			return err
		}
		if err := m.sleep(ctx, delay); err != nil {
			m.logger.Info("monitoring stopped", zap.String("url", m.cfg.URL))
			return nil
		}
	}
}

// Tick performs one fetch-check cycle and returns how long to wait before the
// next one. Only recorder failures are returned as errors.
func (m *Monitor) Tick(ctx context.Context) (time.Duration, error) {
	logger := m.logger.With(zap.String("tick_id", m.newTickID()), zap.String("url", m.cfg.URL))

	result := m.fetcher.Fetch(ctx, m.cfg.URL)
	now := m.clock.Now()
	m.mu.Lock()
	m.status.Polls++
	m.status.LastCheckAt = now
	m.mu.Unlock()

	if !result.Available() {
		return m.handleUnavailable(logger, result), nil
	}
	metrics.ObserveFetch(m.cfg.URL, metrics.ResultAvailable, result.Duration)
	m.mu.Lock()
	m.status.ConsecutiveFailures = 0
	m.status.LastError = ""
	m.mu.Unlock()

	if m.State() == StateAwaitingFirstContent {
		// The first comparison runs one full interval after the baseline;
		// there is no immediate re-fetch on first availability.
		m.establishBaseline(ctx, logger, result, now)
		return m.cfg.Interval, nil
	}
	if err := m.compare(ctx, logger, result); err != nil {
		return 0, err
	}
	return m.cfg.Interval, nil
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Status returns a copy of the monitor's status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) handleUnavailable(logger *zap.Logger, result FetchResult) time.Duration {
	metrics.ObserveFetch(m.cfg.URL, metrics.ResultUnavailable, result.Duration)
	m.mu.Lock()
	m.status.ConsecutiveFailures++
	m.status.LastError = result.Unavailable.Error()
	failures := m.status.ConsecutiveFailures
	state := m.state
	m.mu.Unlock()

	if state == StateAwaitingFirstContent {
		logger.Info("site not yet available; will retry",
			zap.Duration("retry_in", m.cfg.Backoff),
			zap.NamedError("reason", result.Unavailable),
		)
	} else {
		logger.Warn("site unreachable, possibly transient; baseline kept",
			zap.Duration("retry_in", m.cfg.Backoff),
			zap.Int("consecutive_failures", failures),
			zap.NamedError("reason", result.Unavailable),
		)
	}
	return m.cfg.Backoff
}

func (m *Monitor) establishBaseline(ctx context.Context, logger *zap.Logger, result FetchResult, now time.Time) {
	snapshot := m.normalizer.Normalize(result.Body)
	m.mu.Lock()
	m.state = StateMonitoring
	m.baseline = snapshot
	m.status.State = StateMonitoring
	m.status.FirstAvailableAt = now
	m.status.BaselineDigest = m.digest(snapshot)
	m.mu.Unlock()

	firstAccess := now.Format(TimestampLayout)
	logger.Info("site available; baseline established",
		zap.String("first_access", firstAccess),
		zap.Int("status_code", result.StatusCode),
	)
	if !m.cfg.AnnounceAvailable {
		return
	}
	m.notify(ctx, logger, metrics.NotificationAvailable, Message{
		Subject: fmt.Sprintf("Website monitoring started - %s", m.cfg.URL),
		Body: fmt.Sprintf(
			"The website %s is now available. Monitoring has started.\nFirst access: %s",
			m.cfg.URL, firstAccess,
		),
		To: m.cfg.Recipient,
	})
}

func (m *Monitor) compare(ctx context.Context, logger *zap.Logger, result FetchResult) error {
	current := m.normalizer.Normalize(result.Body)
	m.mu.RLock()
	baseline := m.baseline
	m.mu.RUnlock()

	record := ChangeRecord{
		URL:      m.cfg.URL,
		HTMLDiff: m.differ.Diff(baseline.HTML, current.HTML),
		CSSDiff:  m.differ.Diff(baseline.CSS, current.CSS),
	}
	if record.Empty() {
		logger.Debug("no change detected")
		return nil
	}

	record.Timestamp = m.clock.Now()
	if err := m.recorder.Append(ctx, record); err != nil {
		return fmt.Errorf("record change: %w", err)
	}
	metrics.ObserveChange()
	logger.Info("change detected and recorded",
		zap.String("timestamp", record.Timestamp.Format(TimestampLayout)),
		zap.String("output", m.recorder.Path()),
		zap.Bool("html_changed", record.HTMLDiff != ""),
		zap.Bool("css_changed", record.CSSDiff != ""),
	)

	m.notify(ctx, logger, metrics.NotificationChange, Message{
		Subject: fmt.Sprintf("Website change detected - %s", m.cfg.URL),
		Body: fmt.Sprintf(
			"A change was detected on %s at %s. See the attached spreadsheet for details.",
			m.cfg.URL, record.Timestamp.Format(TimestampLayout),
		),
		To:             m.cfg.Recipient,
		AttachmentPath: m.recorder.Path(),
	})

	m.mu.Lock()
	m.baseline = current
	m.status.Changes++
	m.status.LastChangeAt = record.Timestamp
	m.status.BaselineDigest = m.digest(current)
	m.mu.Unlock()
	return nil
}

// notify sends msg and logs the outcome. Delivery failures never propagate.
func (m *Monitor) notify(ctx context.Context, logger *zap.Logger, kind string, msg Message) {
	if err := m.notifier.Send(ctx, msg); err != nil {
		metrics.ObserveNotification(kind, metrics.StatusFailed)
		logger.Error("notification failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	metrics.ObserveNotification(kind, metrics.StatusSent)
	logger.Info("notification sent", zap.String("kind", kind), zap.String("to", msg.To))
}

func (m *Monitor) digest(s Snapshot) string {
	if m.hasher == nil {
		return ""
	}
	sum, err := m.hasher.Hash([]byte(s.HTML + "\x00" + s.CSS))
	if err != nil {
		m.logger.Warn("snapshot digest failed", zap.Error(err))
		return ""
	}
	return sum
}

func (m *Monitor) newTickID() string {
	if m.ids == nil {
		return ""
	}
	id, err := m.ids.NewID()
	if err != nil {
		m.logger.Warn("tick id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("monitor sleep: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
