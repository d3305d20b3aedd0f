package feed

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nav-simulator/internal/nav"
)

type Mode int

const (
	ModeReal Mode = iota
	ModeSimulated
)

func (m Mode) String() string {
	if m == ModeSimulated {
		return "simulated"
	}
	return "real"
}

type Options struct {
	Interval       time.Duration // simulated cadence
	Sim            SimParams
	WatchTimeout   time.Duration
	InitialTimeout time.Duration
	RetryDelay     time.Duration
}

func DefaultOptions() Options {
	return Options{
		Interval:       100 * time.Millisecond,
		Sim:            SimParams{HeadingStep: 0.1, Step: 0.000004},
		WatchTimeout:   15 * time.Second,
		InitialTimeout: 5 * time.Second,
		RetryDelay:     2 * time.Second,
	}
}

// Metrics is implemented by the metrics collector; nil disables it.
type Metrics interface {
	SampleObserved(source string)
	TickObserve(d time.Duration)
	FeedMode(mode string)
}

// Feed produces position samples from either the sensor or the simulator.
// Exactly one producer goroutine runs at a time.
type Feed struct {
	sensor  Sensor
	opts    Options
	log     *logrus.Logger
	metrics Metrics

	mu       sync.RWMutex
	last     nav.PositionSample
	handlers []func(nav.PositionSample)

	swapMu  sync.Mutex
	mode    Mode
	parent  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a feed in real mode. sensor may be nil, in which case real
// mode holds the last sample until simulation takes over.
func New(sensor Sensor, start nav.PositionSample, opts Options, log *logrus.Logger, m Metrics) *Feed {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.WatchTimeout <= 0 {
		opts.WatchTimeout = def.WatchTimeout
	}
	if opts.InitialTimeout <= 0 {
		opts.InitialTimeout = def.InitialTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if start.Timestamp.IsZero() {
		start.Timestamp = time.Now()
	}
	return &Feed{
		sensor:  sensor,
		opts:    opts,
		log:     log,
		metrics: m,
		last:    start,
	}
}

// Subscribe registers fn for every sample. fn runs on the producer
// goroutine and must not call SetMode or Close.
func (f *Feed) Subscribe(fn func(nav.PositionSample)) {
	f.mu.Lock()
	f.handlers = append(f.handlers, fn)
	f.mu.Unlock()
}

func (f *Feed) Latest() nav.PositionSample {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.last
}

func (f *Feed) Mode() Mode {
	f.swapMu.Lock()
	defer f.swapMu.Unlock()
	return f.mode
}

// Start launches the producer for the current mode. The feed stops when ctx
// is cancelled or Close is called.
func (f *Feed) Start(ctx context.Context) {
	f.swapMu.Lock()
	defer f.swapMu.Unlock()
	if f.started {
		return
	}
	f.parent = ctx
	f.started = true
	f.startLocked()
}

// SetMode swaps producers. The old producer has fully stopped before the new
// one starts, so samples from both never interleave.
func (f *Feed) SetMode(m Mode) {
	f.swapMu.Lock()
	defer f.swapMu.Unlock()
	if m == f.mode {
		return
	}
	f.log.WithFields(logrus.Fields{"from": f.mode.String(), "to": m.String()}).Info("location feed mode change")
	if f.started {
		f.stopLocked()
	}
	f.mode = m
	if f.started {
		f.startLocked()
	}
}

// Close stops the active producer and releases the sensor subscription.
func (f *Feed) Close() {
	f.swapMu.Lock()
	defer f.swapMu.Unlock()
	if !f.started {
		return
	}
	f.stopLocked()
	f.started = false
}

func (f *Feed) startLocked() {
	ctx, cancel := context.WithCancel(f.parent)
	f.cancel = cancel
	if f.metrics != nil {
		f.metrics.FeedMode(f.mode.String())
	}
	f.wg.Add(1)
	go func(mode Mode) {
		defer f.wg.Done()
		if mode == ModeSimulated {
			f.runSimulated(ctx)
			return
		}
		f.runReal(ctx)
	}(f.mode)
}

func (f *Feed) stopLocked() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.wg.Wait()
}

func (f *Feed) emit(source string, next func(prev nav.PositionSample) nav.PositionSample) {
	f.mu.Lock()
	s := next(f.last)
	f.last = s
	hs := make([]func(nav.PositionSample), len(f.handlers))
	copy(hs, f.handlers)
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.SampleObserved(source)
	}
	for _, h := range hs {
		h(s)
	}
}

func (f *Feed) runSimulated(ctx context.Context) {
	tick := time.NewTicker(f.opts.Interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			start := time.Now()
			f.emit("simulated", func(prev nav.PositionSample) nav.PositionSample {
				return Simulate(prev, f.opts.Sim, now)
			})
			if f.metrics != nil {
				f.metrics.TickObserve(time.Since(start))
			}
		}
	}
}

func (f *Feed) runReal(ctx context.Context) {
	if f.sensor == nil {
		f.log.Debug("no positioning sensor configured, holding last position")
		<-ctx.Done()
		return
	}
	onReading := func(r Reading) {
		f.emit("sensor", func(prev nav.PositionSample) nav.PositionSample { return Merge(prev, r) })
	}
	onError := func(err error) {
		f.log.WithError(err).Warn("positioning sensor error")
	}

	fixCtx, cancel := context.WithTimeout(ctx, f.opts.InitialTimeout)
	r, err := f.sensor.CurrentFix(fixCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		f.log.WithError(err).Warn("initial fix failed, retrying in background")
	} else {
		onReading(r)
	}

	for {
		err := f.sensor.Watch(ctx, f.opts.WatchTimeout, onReading, onError)
		if ctx.Err() != nil {
			return
		}
		f.log.WithError(err).Warn("sensor watch ended, resubscribing")
		timer := time.NewTimer(f.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
