// Package poll runs the per-device polling streams. Each enabled
// category of each device gets its own goroutine with an independent
// interval, single-flight execution, and exponential backoff on
// failure.
package poll

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/internal/snmp"
	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// StaleThreshold is the number of consecutive failed polls after which
// a stream's entities are marked unavailable. The device stays
// registered and recovers in place on the next successful poll.
const StaleThreshold = 3

// backoffCeiling bounds the failure backoff regardless of interval.
const backoffCeiling = time.Hour

// Fetcher retrieves the raw values of one category from one device.
type Fetcher interface {
	Fetch(ctx context.Context, dev *models.Device, cat models.PollCategory) (snmp.RawValues, error)
}

// Sink receives completed poll results. Results for a given stream are
// delivered in sequence order; Seq lets the sink discard anything that
// arrives after the stream was restarted with new settings.
type Sink interface {
	HandleResult(res Result)
}

// Result is the outcome of one poll attempt.
type Result struct {
	Device   *models.Device
	Category models.PollCategory

	// Seq increases by one per attempt within a stream generation and
	// resets when the stream is restarted.
	Seq        uint64
	Generation uint64

	Raw  snmp.RawValues
	Err  error
	Kind snmp.FailureKind

	// Failures counts consecutive failed attempts, zero on success.
	Failures int

	// Unavailable is set once Failures reaches StaleThreshold.
	Unavailable bool

	Duration time.Duration
	TakenAt  time.Time
}

type streamKey struct {
	deviceID string
	category models.PollCategory
}

type stream struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns all polling streams. Devices are added and removed at
// runtime; changing one category's interval restarts only that
// category's stream.
type Scheduler struct {
	fetcher Fetcher
	sink    Sink
	prober  *Prober
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	streams    map[streamKey]*stream
	generation uint64
	stopped    bool
}

// NewScheduler creates a scheduler. The prober may be nil, in which
// case timeout failures are never re-classified as unreachable.
func NewScheduler(fetcher Fetcher, sink Sink, prober *Prober, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		fetcher: fetcher,
		sink:    sink,
		prober:  prober,
		logger:  logger.Named("poll"),
		ctx:     ctx,
		cancel:  cancel,
		streams: make(map[streamKey]*stream),
	}
}

// SetDevice starts streams for every enabled category of the device,
// replacing any existing streams for it. Disabled categories are
// stopped. The device value is captured as-is; call SetDevice again
// after changing credentials, intervals, or category toggles.
func (s *Scheduler) SetDevice(dev *models.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.generation++
	gen := s.generation

	for _, cat := range models.AllCategories {
		key := streamKey{deviceID: dev.ID, category: cat}
		s.stopStreamLocked(key)

		cc := dev.CategoryConfigOrDefault(cat)
		if !cc.Enabled {
			continue
		}
		s.startStreamLocked(key, dev, cc, gen)
	}
}

// SetCategory restarts a single category stream of a device without
// touching its other streams.
func (s *Scheduler) SetCategory(dev *models.Device, cat models.PollCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.generation++
	key := streamKey{deviceID: dev.ID, category: cat}
	s.stopStreamLocked(key)

	cc := dev.CategoryConfigOrDefault(cat)
	if !cc.Enabled {
		return
	}
	s.startStreamLocked(key, dev, cc, s.generation)
}

// RemoveDevice stops every stream of the device and waits for in-flight
// polls to finish.
func (s *Scheduler) RemoveDevice(deviceID string) {
	s.mu.Lock()
	var waits []chan struct{}
	for key, st := range s.streams {
		if key.deviceID != deviceID {
			continue
		}
		st.cancel()
		waits = append(waits, st.done)
		delete(s.streams, key)
	}
	s.mu.Unlock()

	for _, done := range waits {
		<-done
	}
}

// Stop shuts down all streams and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cancel()
	var waits []chan struct{}
	for key, st := range s.streams {
		waits = append(waits, st.done)
		delete(s.streams, key)
	}
	s.mu.Unlock()

	for _, done := range waits {
		<-done
	}
	s.logger.Info("poll scheduler stopped")
}

func (s *Scheduler) stopStreamLocked(key streamKey) {
	st, ok := s.streams[key]
	if !ok {
		return
	}
	st.cancel()
	delete(s.streams, key)
}

func (s *Scheduler) startStreamLocked(key streamKey, dev *models.Device, cc models.CategoryConfig, gen uint64) {
	ctx, cancel := context.WithCancel(s.ctx)
	st := &stream{cancel: cancel, done: make(chan struct{})}
	s.streams[key] = st

	go func() {
		defer close(st.done)
		s.runStream(ctx, dev, key.category, cc, gen)
	}()
}

// runStream is the poll loop of one (device, category) pair. The loop
// polls inline, so a slow poll never overlaps the next one: ticks that
// would have fired during a poll are skipped, not queued.
func (s *Scheduler) runStream(ctx context.Context, dev *models.Device, cat models.PollCategory, cc models.CategoryConfig, gen uint64) {
	logger := s.logger.With(
		zap.String("device", dev.ID),
		zap.String("host", dev.Host),
		zap.String("category", string(cat)),
	)
	logger.Debug("stream started", zap.Duration("interval", cc.Interval))

	var seq uint64
	failures := 0

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("stream stopped")
			return
		case <-timer.C:
		}

		seq++
		res := s.pollOnce(ctx, dev, cat, seq, gen, failures)
		if ctx.Err() != nil {
			return
		}
		failures = res.Failures
		s.sink.HandleResult(res)

		delay := cc.Interval
		if res.Err != nil {
			delay = backoffDelay(cc.Interval, failures, res.Kind)
			logger.Warn("poll failed",
				zap.Error(res.Err),
				zap.String("kind", string(res.Kind)),
				zap.Int("consecutive_failures", failures),
				zap.Duration("retry_in", delay))
		}
		timer.Reset(delay)
	}
}

func (s *Scheduler) pollOnce(ctx context.Context, dev *models.Device, cat models.PollCategory, seq, gen uint64, failures int) Result {
	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	raw, err := s.fetcher.Fetch(fctx, dev, cat)
	cancel()

	res := Result{
		Device:     dev,
		Category:   cat,
		Seq:        seq,
		Generation: gen,
		Raw:        raw,
		Duration:   time.Since(start),
		TakenAt:    start,
	}
	if err == nil {
		return res
	}

	res.Err = err
	res.Kind = snmp.KindOf(err)
	if res.Kind == snmp.KindTimeout && s.prober != nil {
		// SNMP timed out. A host that also ignores ICMP is treated
		// as off the network rather than merely slow.
		if !s.prober.Alive(ctx, dev.Host) {
			res.Kind = snmp.KindUnreachable
		}
	}
	res.Failures = failures + 1
	res.Unavailable = res.Failures >= StaleThreshold
	return res
}

// fetchTimeout bounds one full category fetch including all walks.
const fetchTimeout = 60 * time.Second

// backoffDelay returns the wait before the next attempt after a
// failure. The delay doubles per consecutive failure and is capped at
// four intervals. Authentication failures jump straight to the cap
// since retrying with the same credentials cannot succeed sooner.
func backoffDelay(interval time.Duration, failures int, kind snmp.FailureKind) time.Duration {
	max := 4 * interval
	if max > backoffCeiling {
		max = backoffCeiling
	}
	if kind == snmp.KindAuth {
		return max
	}

	delay := interval
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		delay = max
	}
	return delay
}
