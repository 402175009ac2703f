package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/config"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/extractor"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/kvstore"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/registry"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/session"
)

type fakeExtractor struct {
	mu         sync.Mutex
	result     extractor.Result
	err        error
	calls      int
	lastCtxErr error
	entered    chan struct{}
	release    chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, _, _ string) (extractor.Result, error) {
	f.mu.Lock()
	f.calls++
	f.lastCtxErr = ctx.Err()
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeExtractor) lastContextErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCtxErr
}

type fakeBadge struct {
	mu     sync.Mutex
	texts  map[string]string
	colors map[string]string
}

func newFakeBadge() *fakeBadge {
	return &fakeBadge{texts: make(map[string]string), colors: make(map[string]string)}
}

func (b *fakeBadge) SetText(_ context.Context, sessionID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.texts[sessionID] = text
	return nil
}

func (b *fakeBadge) SetColor(_ context.Context, sessionID, color string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.colors[sessionID] = color
	return nil
}

func (b *fakeBadge) text(sessionID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	text, ok := b.texts[sessionID]
	return text, ok
}

type registryFetcher struct {
	mu    sync.Mutex
	body  []byte
	calls int
}

func (f *registryFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.body, nil
}

func (f *registryFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// manualTimer gives tests deterministic control over scheduled scans.
type manualTimer struct {
	fn        func()
	delay     time.Duration
	cancelled bool
}

type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualTimers) afterFunc(d time.Duration, f func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	timer := &manualTimer{fn: f, delay: d}
	m.timers = append(m.timers, timer)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		timer.cancelled = true
	}
}

// fire runs every scheduled, not-yet-cancelled timer synchronously.
func (m *manualTimers) fire() {
	m.mu.Lock()
	pending := make([]*manualTimer, 0, len(m.timers))
	for _, timer := range m.timers {
		if !timer.cancelled {
			pending = append(pending, timer)
		}
	}
	m.timers = nil
	m.mu.Unlock()

	for _, timer := range pending {
		timer.fn()
	}
}

func (m *manualTimers) scheduled() []*manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*manualTimer(nil), m.timers...)
}

type fixture struct {
	sched    *Scheduler
	settings *config.Store
	sessions *session.Store
	badge    *fakeBadge
	pages    *fakeExtractor
	fetcher  *registryFetcher
	timers   *manualTimers
}

func newFixture(mutate func(*config.Settings)) *fixture {
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	settings := config.NewStore(cfg)

	fetcher := &registryFetcher{body: []byte(`{"sellers":[{"seller_id":"123"},{"seller_id":"456"}]}`)}
	reg := registry.NewCache(kvstore.NewMemoryStore(), fetcher, settings)

	pages := &fakeExtractor{result: extractor.Result{
		OK:  true,
		IDs: map[string]struct{}{"123": {}, "789": {}},
	}}
	sessions := session.NewStore()
	bdg := newFakeBadge()

	sched := New(settings, reg, pages, sessions, bdg)
	timers := &manualTimers{}
	sched.afterFunc = timers.afterFunc

	return &fixture{
		sched:    sched,
		settings: settings,
		sessions: sessions,
		badge:    bdg,
		pages:    pages,
		fetcher:  fetcher,
		timers:   timers,
	}
}

func TestScan_MatchesAndUpdatesBadge(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	f.timers.fire()

	assert.Equal(t, 1, f.sessions.Count("tab-1"))
	text, ok := f.badge.text("tab-1")
	assert.True(t, ok)
	assert.Equal(t, "1", text)
	_, scanned := f.sessions.LastScanAt("tab-1")
	assert.True(t, scanned)
}

func TestScan_EmptyRegistryStillRefreshes(t *testing.T) {
	f := newFixture(nil)
	f.fetcher.body = []byte(`{"sellers":[]}`)
	ctx := context.Background()

	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	f.timers.fire()

	assert.Equal(t, 0, f.sessions.Count("tab-1"))
	assert.Equal(t, 1, f.fetcher.callCount(), "an empty cache must trigger a refresh")
	text, _ := f.badge.text("tab-1")
	assert.Equal(t, "", text)
}

func TestScan_CooldownSkipsSecondScan(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	executed := make([]bool, 0, 2)
	var mu sync.Mutex
	f.sched.scanDone = func(_ string, ran bool) {
		mu.Lock()
		executed = append(executed, ran)
		mu.Unlock()
	}

	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	f.timers.fire()
	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	f.timers.fire()

	assert.Equal(t, 1, f.pages.callCount(), "two triggers within the cooldown run at most one scan")
	require.Len(t, executed, 2)
	assert.True(t, executed[0])
	assert.False(t, executed[1])
}

func TestScan_CooldownExpiryAllowsNextScan(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	now := time.Now()
	f.sched.now = func() time.Time { return now }

	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	f.timers.fire()

	now = now.Add(61 * time.Second)
	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	f.timers.fire()

	assert.Equal(t, 2, f.pages.callCount())
}

func TestTrigger_SecondTriggerSupersedesPending(t *testing.T) {
	f := newFixture(func(cfg *config.Settings) {
		cfg.ScanTiming = config.ScanTimingDelayed
		cfg.ScanDelaySeconds = 3
	})
	ctx := context.Background()

	f.sched.Trigger(ctx, "tab-1", "https://example.com/a")
	f.sched.Trigger(ctx, "tab-1", "https://example.com/b")

	timers := f.timers.scheduled()
	require.Len(t, timers, 2)
	assert.True(t, timers[0].cancelled, "first pending scan must be cancelled")
	assert.False(t, timers[1].cancelled)
	assert.Equal(t, 3*time.Second, timers[1].delay, "countdown restarts from the second trigger")

	f.timers.fire()
	assert.Equal(t, 1, f.pages.callCount(), "only one scan executes")
}

func TestTrigger_BadgeDisabledSchedulesNothing(t *testing.T) {
	f := newFixture(func(cfg *config.Settings) {
		cfg.BadgeEnabled = false
	})
	ctx := context.Background()

	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	assert.Empty(t, f.timers.scheduled())

	f.timers.fire()
	assert.Equal(t, 0, f.pages.callCount())
	_, ok := f.badge.text("tab-1")
	assert.False(t, ok, "badge must stay untouched")
}

func TestTrigger_SessionRemovedMidPending(t *testing.T) {
	f := newFixture(func(cfg *config.Settings) {
		cfg.ScanTiming = config.ScanTimingDelayed
		cfg.ScanDelaySeconds = 5
	})
	ctx := context.Background()

	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	f.sessions.Clear("tab-1")

	timers := f.timers.scheduled()
	require.Len(t, timers, 1)
	assert.True(t, timers[0].cancelled, "clearing the session cancels the pending timer")

	f.timers.fire()
	assert.Equal(t, 0, f.pages.callCount())
	assert.Equal(t, 0, f.sessions.Count("tab-1"))
}

func TestScan_SupersededResultDiscarded(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	f.pages.entered = make(chan struct{}, 1)
	f.pages.release = make(chan struct{})

	done := make(chan bool, 1)
	f.sched.scanDone = func(_ string, ran bool) { done <- ran }

	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	go f.timers.fire()

	<-f.pages.entered
	// The session navigates away while the scan is executing.
	f.sessions.Clear("tab-1")
	close(f.pages.release)

	ran := <-done
	assert.False(t, ran, "a superseded scan must not publish its result")
	assert.Equal(t, 0, f.sessions.Count("tab-1"))
	_, scanned := f.sessions.LastScanAt("tab-1")
	assert.False(t, scanned)
	_, ok := f.badge.text("tab-1")
	assert.False(t, ok)
}

func TestScan_SurvivesCancelledEventContext(t *testing.T) {
	f := newFixture(func(cfg *config.Settings) {
		cfg.ScanTiming = config.ScanTimingDelayed
		cfg.ScanDelaySeconds = 2
	})

	ctx, cancel := context.WithCancel(context.Background())
	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	// The triggering event's context ends before the delayed scan fires.
	cancel()
	f.timers.fire()

	assert.Equal(t, 1, f.pages.callCount())
	assert.NoError(t, f.pages.lastContextErr(), "the scan must not inherit the event context's cancellation")
	assert.Equal(t, 1, f.sessions.Count("tab-1"))
}

func TestScan_ExtractionFailureClearsBadge(t *testing.T) {
	f := newFixture(nil)
	f.pages.err = extractor.ErrExtraction
	ctx := context.Background()

	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	f.timers.fire()

	assert.Equal(t, 0, f.sessions.Count("tab-1"))
	text, ok := f.badge.text("tab-1")
	assert.True(t, ok)
	assert.Equal(t, "", text, "failure shows no count rather than a stale one")
	_, scanned := f.sessions.LastScanAt("tab-1")
	assert.True(t, scanned, "a failed scan still counts for the cooldown")
}

func TestScan_DifferentSessionsAreIndependent(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	f.sched.Trigger(ctx, "tab-1", "https://example.com/")
	f.sched.Trigger(ctx, "tab-2", "https://example.org/")
	f.timers.fire()

	assert.Equal(t, 2, f.pages.callCount(), "cooldown applies per session")
	assert.Equal(t, 1, f.sessions.Count("tab-1"))
	assert.Equal(t, 1, f.sessions.Count("tab-2"))
}
