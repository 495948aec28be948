package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/internal/snmp"
	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

type fakeFetcher struct {
	mu    sync.Mutex
	err   error
	raw   snmp.RawValues
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, dev *models.Device, cat models.PollCategory) (snmp.RawValues, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type captureSink struct {
	mu      sync.Mutex
	results []Result
	notify  chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{notify: make(chan struct{}, 16)}
}

func (c *captureSink) HandleResult(res Result) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *captureSink) wait(t *testing.T) Result {
	t.Helper()
	select {
	case <-c.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for poll result")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[len(c.results)-1]
}

func testDevice(cats ...models.PollCategory) *models.Device {
	dev := &models.Device{
		ID:         "dev-1",
		Name:       "lab-sw-1",
		Host:       "192.0.2.10",
		Version:    models.SNMPv2c,
		Creds:      models.Credentials{Community: "public"},
		Categories: make(map[models.PollCategory]models.CategoryConfig),
	}
	for _, cat := range cats {
		dev.Categories[cat] = models.CategoryConfig{
			Enabled:  true,
			Interval: models.MinPollInterval,
			Mode:     models.ModeAttributes,
		}
	}
	return dev
}

func TestSchedulerDeliversSuccess(t *testing.T) {
	fetcher := &fakeFetcher{raw: snmp.RawValues{"1.3.6.1.2.1.1.1.0": snmp.ValueOf("test")}}
	sink := newCaptureSink()
	sched := NewScheduler(fetcher, sink, nil, zap.NewNop())
	defer sched.Stop()

	sched.SetDevice(testDevice(models.CategoryInterfaces))

	res := sink.wait(t)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Seq != 1 {
		t.Errorf("Seq = %d, want 1", res.Seq)
	}
	if res.Category != models.CategoryInterfaces {
		t.Errorf("Category = %q, want %q", res.Category, models.CategoryInterfaces)
	}
	if res.Failures != 0 || res.Unavailable {
		t.Errorf("Failures = %d, Unavailable = %v, want 0/false", res.Failures, res.Unavailable)
	}
	if res.Raw == nil {
		t.Error("Raw should carry the fetched values")
	}
}

func TestSchedulerDeliversFailureKind(t *testing.T) {
	fetchErr := &snmp.FetchError{Kind: snmp.KindAuth, Op: "connect", Err: errors.New("unknown user name")}
	fetcher := &fakeFetcher{err: fetchErr}
	sink := newCaptureSink()
	sched := NewScheduler(fetcher, sink, nil, zap.NewNop())
	defer sched.Stop()

	sched.SetDevice(testDevice(models.CategoryDiagnostics))

	res := sink.wait(t)
	if res.Err == nil {
		t.Fatal("expected an error result")
	}
	if res.Kind != snmp.KindAuth {
		t.Errorf("Kind = %q, want %q", res.Kind, snmp.KindAuth)
	}
	if res.Failures != 1 {
		t.Errorf("Failures = %d, want 1", res.Failures)
	}
	if res.Unavailable {
		t.Error("one failure must not mark the stream unavailable")
	}
}

type slowFetcher struct {
	delay    time.Duration
	inflight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *slowFetcher) Fetch(ctx context.Context, dev *models.Device, cat models.PollCategory) (snmp.RawValues, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
	}
	return snmp.RawValues{}, nil
}

func TestSchedulerNeverOverlapsPolls(t *testing.T) {
	fetcher := &slowFetcher{delay: 30 * time.Millisecond}
	sink := newCaptureSink()
	sched := NewScheduler(fetcher, sink, nil, zap.NewNop())
	defer sched.Stop()

	dev := testDevice(models.CategoryInterfaces)
	cc := dev.Categories[models.CategoryInterfaces]
	cc.Interval = time.Millisecond
	dev.Categories[models.CategoryInterfaces] = cc
	sched.SetDevice(dev)

	var last Result
	for i := 0; i < 5; i++ {
		last = sink.wait(t)
	}
	if got := fetcher.maxSeen.Load(); got != 1 {
		t.Errorf("max concurrent fetches = %d, want 1", got)
	}
	if last.Seq < 5 {
		t.Errorf("Seq = %d, want at least 5", last.Seq)
	}
}

func TestSchedulerOneStreamPerEnabledCategory(t *testing.T) {
	fetcher := &fakeFetcher{raw: snmp.RawValues{}}
	sink := newCaptureSink()
	sched := NewScheduler(fetcher, sink, nil, zap.NewNop())
	defer sched.Stop()

	dev := testDevice(models.CategoryInterfaces, models.CategoryBandwidth)
	dev.Categories[models.CategoryPoE] = models.CategoryConfig{Enabled: false, Interval: models.MinPollInterval}
	sched.SetDevice(dev)

	sink.wait(t)
	sink.wait(t)

	deadline := time.After(2 * time.Second)
	for fetcher.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want 2", fetcher.callCount())
		case <-time.After(10 * time.Millisecond):
		}
	}

	sink.mu.Lock()
	seen := make(map[models.PollCategory]bool)
	for _, res := range sink.results {
		seen[res.Category] = true
	}
	sink.mu.Unlock()
	if !seen[models.CategoryInterfaces] || !seen[models.CategoryBandwidth] {
		t.Errorf("categories seen = %v, want interfaces and bandwidth", seen)
	}
	if seen[models.CategoryPoE] {
		t.Error("disabled category must not be polled")
	}
}

func TestSchedulerRemoveDeviceStopsPolling(t *testing.T) {
	fetcher := &fakeFetcher{raw: snmp.RawValues{}}
	sink := newCaptureSink()
	sched := NewScheduler(fetcher, sink, nil, zap.NewNop())
	defer sched.Stop()

	dev := testDevice(models.CategoryInterfaces)
	sched.SetDevice(dev)
	sink.wait(t)

	sched.RemoveDevice(dev.ID)
	calls := fetcher.callCount()
	time.Sleep(50 * time.Millisecond)
	if got := fetcher.callCount(); got != calls {
		t.Errorf("calls after remove = %d, want %d", got, calls)
	}
}

func TestSchedulerRestartBumpsGeneration(t *testing.T) {
	fetcher := &fakeFetcher{raw: snmp.RawValues{}}
	sink := newCaptureSink()
	sched := NewScheduler(fetcher, sink, nil, zap.NewNop())
	defer sched.Stop()

	dev := testDevice(models.CategoryInterfaces)
	sched.SetDevice(dev)
	first := sink.wait(t)

	sched.SetCategory(dev, models.CategoryInterfaces)
	second := sink.wait(t)

	if second.Generation <= first.Generation {
		t.Errorf("generation %d after restart, want > %d", second.Generation, first.Generation)
	}
	if second.Seq != 1 {
		t.Errorf("Seq = %d after restart, want 1", second.Seq)
	}
}

func TestPollOnceUnavailableAtThreshold(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("request timeout")}
	sched := NewScheduler(fetcher, newCaptureSink(), nil, zap.NewNop())
	defer sched.Stop()

	dev := testDevice(models.CategoryInterfaces)
	res := sched.pollOnce(context.Background(), dev, models.CategoryInterfaces, 3, 1, StaleThreshold-1)
	if res.Failures != StaleThreshold {
		t.Fatalf("Failures = %d, want %d", res.Failures, StaleThreshold)
	}
	if !res.Unavailable {
		t.Error("stream must be unavailable once the threshold is reached")
	}
}

func TestBackoffDelay(t *testing.T) {
	interval := 30 * time.Second
	tests := []struct {
		name     string
		failures int
		kind     snmp.FailureKind
		want     time.Duration
	}{
		{"first failure", 1, snmp.KindTimeout, 30 * time.Second},
		{"second failure", 2, snmp.KindTimeout, 60 * time.Second},
		{"third failure", 3, snmp.KindTimeout, 120 * time.Second},
		{"capped", 4, snmp.KindTimeout, 120 * time.Second},
		{"far past cap", 10, snmp.KindUnreachable, 120 * time.Second},
		{"auth jumps to cap", 1, snmp.KindAuth, 120 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backoffDelay(interval, tt.failures, tt.kind); got != tt.want {
				t.Errorf("backoffDelay(%v, %d, %q) = %v, want %v", interval, tt.failures, tt.kind, got, tt.want)
			}
		})
	}
}

func TestBackoffDelayCeiling(t *testing.T) {
	interval := 50 * time.Minute
	if got := backoffDelay(interval, 8, snmp.KindTimeout); got != backoffCeiling {
		t.Errorf("backoffDelay = %v, want ceiling %v", got, backoffCeiling)
	}
}
