package monitor_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/diff"
	"github.com/JakeFAU/pagewatch/internal/monitor"
	"github.com/JakeFAU/pagewatch/internal/normalize"
)

const (
	pageURL  = "https://example.com"
	pageC1   = "<html><head><title>t</title></head><body><p>hello</p></body></html>"
	pageC1CS = "<html><head><title>t</title><style>body{color:red}</style></head><body><p>hello</p></body></html>"
)

func TestTick_AlwaysUnavailableNeverRecords(t *testing.T) {
	t.Parallel()

	h := newHarness(t, monitor.Unavailable(pageURL, errors.New("dial tcp: refused")))
	for range 5 {
		delay, err := h.monitor.Tick(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, delay)
	}
	assert.Empty(t, h.recorder.records())
	assert.Empty(t, h.notifier.messages())
	assert.Equal(t, monitor.StateAwaitingFirstContent, h.monitor.State())
	assert.Equal(t, 5, h.monitor.Status().ConsecutiveFailures)
}

func TestTick_FirstContentAnnounces(t *testing.T) {
	t.Parallel()

	h := newHarness(t, available(pageC1))
	delay, err := h.monitor.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, delay)
	assert.Equal(t, monitor.StateMonitoring, h.monitor.State())

	msgs := h.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Website monitoring started - https://example.com", msgs[0].Subject)
	assert.Contains(t, msgs[0].Body, "First access: 2024-05-01 12:00:00")
	assert.Empty(t, msgs[0].AttachmentPath)
	assert.Empty(t, h.recorder.records())
	assert.Equal(t, "digest", h.monitor.Status().BaselineDigest)
}

func TestTick_AnnouncementDisabled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, available(pageC1))
	h.rebuild(t, func(cfg *monitor.Config) { cfg.AnnounceAvailable = false })
	_, err := h.monitor.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.notifier.messages())
	assert.Equal(t, monitor.StateMonitoring, h.monitor.State())
}

func TestTick_SameContentNoRecord(t *testing.T) {
	t.Parallel()

	h := newHarness(t, available(pageC1), available(pageC1), available(pageC1))
	for range 3 {
		_, err := h.monitor.Tick(context.Background())
		require.NoError(t, err)
	}
	assert.Empty(t, h.recorder.records())
	assert.Len(t, h.notifier.messages(), 1)
}

func TestTick_StyleAddedIsRecorded(t *testing.T) {
	t.Parallel()

	h := newHarness(t, available(pageC1), available(pageC1CS))
	_, err := h.monitor.Tick(context.Background())
	require.NoError(t, err)
	h.clock.set(time.Date(2024, 5, 1, 12, 30, 0, 0, h.loc))
	_, err = h.monitor.Tick(context.Background())
	require.NoError(t, err)

	records := h.recorder.records()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, pageURL, rec.URL)
	assert.Contains(t, rec.CSSDiff, "+body{color:red}")
	assert.True(t, hasLinePrefix(rec.HTMLDiff, "+", "<style>"),
		"html diff missing added <style> line:\n%s", rec.HTMLDiff)
	assert.Equal(t, "2024-05-01 12:30:00", rec.Timestamp.Format(monitor.TimestampLayout))

	msgs := h.notifier.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Website change detected - https://example.com", msgs[1].Subject)
	assert.Equal(t, "changes.xlsx", msgs[1].AttachmentPath)
	assert.Equal(t, "ops@example.com", msgs[1].To)
	assert.Equal(t, int64(1), h.monitor.Status().Changes)
}

func TestTick_BaselineReplacedAfterChange(t *testing.T) {
	t.Parallel()

	h := newHarness(t, available(pageC1), available(pageC1CS), available(pageC1CS))
	for range 3 {
		_, err := h.monitor.Tick(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, h.recorder.records(), 1)
}

func TestTick_FailureWhileMonitoringKeepsBaseline(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		available(pageC1),
		monitor.Unavailable(pageURL, errors.New("timeout")),
		available(pageC1),
	)
	_, err := h.monitor.Tick(context.Background())
	require.NoError(t, err)

	delay, err := h.monitor.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, delay)
	assert.Equal(t, monitor.StateMonitoring, h.monitor.State())
	assert.Contains(t, h.monitor.Status().LastError, "timeout")

	_, err = h.monitor.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.recorder.records())
	assert.Zero(t, h.monitor.Status().ConsecutiveFailures)
}

func TestTick_NotificationFailureContinues(t *testing.T) {
	t.Parallel()

	h := newHarness(t, available(pageC1), available(pageC1CS))
	h.notifier.err = errors.New("smtp down")
	for range 2 {
		_, err := h.monitor.Tick(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, h.recorder.records(), 1)
	assert.Equal(t, monitor.StateMonitoring, h.monitor.State())
}

func TestRun_RecorderErrorStops(t *testing.T) {
	t.Parallel()

	h := newHarness(t, available(pageC1), available(pageC1CS))
	h.recorder.err = errors.New("disk full")
	err := h.monitor.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, h.notifier.messages(), 1)
}

func TestRun_CancelStopsCleanly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, available(pageC1))
	ctx, cancel := context.WithCancel(context.Background())
	h.sleeps.onSleep = func(int) { cancel() }

	require.NoError(t, h.monitor.Run(ctx))
	assert.Equal(t, []time.Duration{30 * time.Minute}, h.sleeps.delays())
}

func TestRun_SleepsBackoffThenInterval(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		monitor.Unavailable(pageURL, nil),
		monitor.Unavailable(pageURL, nil),
		available(pageC1),
		available(pageC1),
	)
	ctx, cancel := context.WithCancel(context.Background())
	h.sleeps.onSleep = func(n int) {
		if n == 4 {
			cancel()
		}
	}

	require.NoError(t, h.monitor.Run(ctx))
	assert.Equal(t, []time.Duration{
		5 * time.Minute, 5 * time.Minute, 30 * time.Minute, 30 * time.Minute,
	}, h.sleeps.delays())
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	base := monitor.Config{URL: pageURL, Interval: time.Minute, Backoff: time.Minute}
	deps := func() (monitor.Fetcher, monitor.Normalizer, monitor.Differ, monitor.Recorder, monitor.Notifier, monitor.Clock) {
		return &fakeFetcher{}, normalize.New(), diff.New(), &fakeRecorder{}, &fakeNotifier{}, &fakeClock{}
	}
	cases := map[string]func(*monitor.Config){
		"missing url":      func(c *monitor.Config) { c.URL = "" },
		"zero interval":    func(c *monitor.Config) { c.Interval = 0 },
		"negative backoff": func(c *monitor.Config) { c.Backoff = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			mutate(&cfg)
			f, n, d, r, no, c := deps()
			_, err := monitor.New(cfg, f, n, d, r, no, c, nil, nil, nil)
			require.Error(t, err)
		})
	}

	f, n, d, _, no, c := deps()
	_, err := monitor.New(base, f, n, d, nil, no, c, nil, nil, nil)
	require.Error(t, err)
}

func TestUnavailableWrapsSentinel(t *testing.T) {
	t.Parallel()

	res := monitor.Unavailable(pageURL, errors.New("HTTP 503"))
	assert.False(t, res.Available())
	assert.ErrorIs(t, res.Unavailable, monitor.ErrUnavailable)
	assert.ErrorIs(t, monitor.Unavailable(pageURL, nil).Unavailable, monitor.ErrUnavailable)
	assert.True(t, available("x").Available())
}

// --- harness ---

type harness struct {
	monitor  *monitor.Monitor
	fetcher  *fakeFetcher
	recorder *fakeRecorder
	notifier *fakeNotifier
	clock    *fakeClock
	sleeps   *fakeSleeper
	loc      *time.Location
	cfg      monitor.Config
}

func newHarness(t *testing.T, results ...monitor.FetchResult) *harness {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	h := &harness{
		fetcher:  &fakeFetcher{results: results},
		recorder: &fakeRecorder{path: "changes.xlsx"},
		notifier: &fakeNotifier{},
		clock:    &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, loc)},
		sleeps:   &fakeSleeper{},
		loc:      loc,
		cfg: monitor.Config{
			URL:               pageURL,
			Recipient:         "ops@example.com",
			Interval:          30 * time.Minute,
			Backoff:           5 * time.Minute,
			AnnounceAvailable: true,
		},
	}
	h.rebuild(t, nil)
	return h
}

func (h *harness) rebuild(t *testing.T, mutate func(*monitor.Config)) {
	t.Helper()
	if mutate != nil {
		mutate(&h.cfg)
	}
	m, err := monitor.New(
		h.cfg,
		h.fetcher,
		normalize.New(),
		diff.New(),
		h.recorder,
		h.notifier,
		h.clock,
		fakeIDs{},
		fakeHasher{},
		zap.NewNop(),
	)
	require.NoError(t, err)
	monitor.SetSleep(m, h.sleeps.sleep)
	h.monitor = m
}

func available(body string) monitor.FetchResult {
	return monitor.FetchResult{URL: pageURL, Body: body, StatusCode: 200, Duration: time.Millisecond}
}

func hasLinePrefix(text, prefix, trimmed string) bool {
	for _, l := range strings.Split(text, "\n") {
		if strings.HasPrefix(l, prefix) && strings.TrimSpace(strings.TrimPrefix(l, prefix)) == trimmed {
			return true
		}
	}
	return false
}

// --- fakes ---

type fakeFetcher struct {
	mu      sync.Mutex
	results []monitor.FetchResult
	calls   int
}

// Fetch replays results in order and repeats the last one once exhausted.
func (f *fakeFetcher) Fetch(_ context.Context, url string) monitor.FetchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return monitor.Unavailable(url, nil)
	}
	idx := min(f.calls, len(f.results)-1)
	f.calls++
	return f.results[idx]
}

type fakeRecorder struct {
	mu   sync.Mutex
	path string
	rows []monitor.ChangeRecord
	err  error
}

func (r *fakeRecorder) Append(_ context.Context, record monitor.ChangeRecord) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, record)
	return nil
}

func (r *fakeRecorder) Path() string { return r.path }

func (r *fakeRecorder) records() []monitor.ChangeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]monitor.ChangeRecord(nil), r.rows...)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []monitor.Message
	err  error
}

// Send records every attempt, including failed ones.
func (n *fakeNotifier) Send(_ context.Context, msg monitor.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *fakeNotifier) messages() []monitor.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]monitor.Message(nil), n.sent...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeSleeper struct {
	mu      sync.Mutex
	seen    []time.Duration
	onSleep func(n int)
}

func (s *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.seen = append(s.seen, d)
	n := len(s.seen)
	hook := s.onSleep
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func (s *fakeSleeper) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.seen...)
}

type fakeIDs struct{}

func (fakeIDs) NewID() (string, error) { return "tick", nil }

type fakeHasher struct{}

func (fakeHasher) Hash([]byte) (string, error) { return "digest", nil }
