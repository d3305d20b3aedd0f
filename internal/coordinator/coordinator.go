package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"nav-simulator/internal/feed"
	"nav-simulator/internal/geo"
	"nav-simulator/internal/nav"
	"nav-simulator/internal/routing"
)

// Feed is the subset of *feed.Feed the coordinator drives.
type Feed interface {
	Latest() nav.PositionSample
	SetMode(feed.Mode)
	Subscribe(func(nav.PositionSample))
}

// Router is the route request client.
type Router interface {
	RequestRoute(ctx context.Context, origin nav.Origin, destination string, here nav.PositionSample) (*nav.TripState, error)
}

// Publisher receives every position sample and every state transition.
type Publisher interface {
	PublishPosition(s nav.PositionSample) error
	PublishState(s nav.Snapshot) error
}

// Metrics is implemented by the metrics collector; nil disables it.
type Metrics interface {
	RouteRequestObserved(outcome string)
	ModeChanged(mode string)
	StepCursor(cursor int)
}

type Options struct {
	// AdvanceRadius is the distance in meters to the current step's end at
	// which the cursor moves to the next step. Zero disables auto-advance.
	AdvanceRadius float64
	Theme         nav.Theme
	Traffic       bool
	Publisher     Publisher
	Metrics       Metrics
}

// Coordinator owns mode, trip state and the step cursor, and keeps the
// location feed in simulated mode exactly while a trip is active.
type Coordinator struct {
	feed    Feed
	router  Router
	pub     Publisher
	metrics Metrics
	log     *logrus.Logger
	radius  float64

	// transition serializes state transitions together with the feed swap.
	// Lock order: transition, then mu.
	transition sync.Mutex

	mu        sync.Mutex
	headingUp bool
	trip      *nav.TripState // replaced, never modified in place
	traffic   bool
	theme     nav.Theme
	alert     *nav.Alert
	position  nav.PositionSample
	gen       uint64
	inflight  context.CancelFunc
	version   uint64
	listeners []func(nav.Snapshot)
}

func New(f Feed, r Router, opts Options, log *logrus.Logger) *Coordinator {
	theme := opts.Theme
	if theme == "" {
		theme = nav.ThemeDark
	}
	c := &Coordinator{
		feed:     f,
		router:   r,
		pub:      opts.Publisher,
		metrics:  opts.Metrics,
		log:      log,
		radius:   opts.AdvanceRadius,
		traffic:  opts.Traffic,
		theme:    theme,
		position: f.Latest(),
	}
	f.Subscribe(c.handleSample)
	return c
}

// Subscribe registers fn for every snapshot change, including position
// updates. fn must not block.
func (c *Coordinator) Subscribe(fn func(nav.Snapshot)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Coordinator) Snapshot() nav.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) Mode() nav.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modeLocked()
}

func (c *Coordinator) modeLocked() nav.Mode {
	switch {
	case c.trip != nil && len(c.trip.Steps) > 0:
		return nav.ModeActiveTrip
	case c.headingUp:
		return nav.ModeHeadingUp
	}
	return nav.ModeIdle
}

func (c *Coordinator) snapshotLocked() nav.Snapshot {
	return nav.Snapshot{
		Mode:      c.modeLocked(),
		HeadingUp: c.headingUp,
		Position:  c.position,
		Trip:      c.trip.Clone(),
		Traffic:   c.traffic,
		Theme:     c.theme,
		Alert:     c.alert,
		Pending:   c.inflight != nil,
		Version:   c.version,
	}
}

// RequestRoute asks the router for a trip. On success the trip replaces any
// previous one, the cursor is 0 and the mode becomes Active Trip. On a
// routing failure the trip is cleared and the failure is kept as the alert.
// A request replaced by a newer request or by Cancel returns
// routing.ErrSuperseded and leaves state untouched.
func (c *Coordinator) RequestRoute(ctx context.Context, origin nav.Origin, destination string) (nav.Snapshot, error) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.inflight != nil {
		c.inflight()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.inflight = cancel
	c.alert = nil
	here := c.position
	c.version++
	pending := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(pending, false)

	trip, err := c.router.RequestRoute(reqCtx, origin, destination, here)

	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.observe("superseded")
		c.log.WithField("destination", destination).Info("dropping superseded route reply")
		return snap, routing.ErrSuperseded
	}
	c.inflight = nil

	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		c.version++
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.observe("cancelled")
		c.notify(snap, false)
		return snap, err
	}

	prevMode := c.modeLocked()
	if err != nil {
		f, ok := routing.AsFailure(err)
		if !ok {
			f = &routing.Failure{Reason: routing.ReasonUnknown, Err: err}
		}
		c.trip = nil
		c.alert = &nav.Alert{Reason: string(f.Reason), Message: f.Message()}
		c.observe(string(f.Reason))
		c.log.WithError(err).WithFields(logrus.Fields{
			"reason":      f.Reason,
			"destination": destination,
		}).Error("route request failed")
		err = f
	} else {
		trip.Traffic = c.traffic
		trip.Cursor = 0
		c.trip = trip
		c.headingUp = true
		c.observe("ok")
		c.log.WithFields(logrus.Fields{
			"trip":        trip.ID,
			"destination": trip.Destination,
			"steps":       len(trip.Steps),
		}).Info("navigation started")
	}
	snap := c.commitLocked(prevMode)
	c.mu.Unlock()

	c.syncFeed(snap.Mode)
	c.notify(snap, true)
	return snap, err
}

// Cancel ends navigation: any in-flight request is dropped, the trip is
// cleared, the mode returns to Idle and the feed reverts to the sensor.
// Cancelling twice leaves the same state as cancelling once.
func (c *Coordinator) Cancel() nav.Snapshot {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	prevMode := c.modeLocked()
	c.gen++
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	c.trip = nil
	c.headingUp = false
	c.alert = nil
	snap := c.commitLocked(prevMode)
	c.mu.Unlock()

	if prevMode == nav.ModeActiveTrip {
		c.log.Info("navigation cancelled")
	}
	c.syncFeed(snap.Mode)
	c.notify(snap, true)
	return snap
}

// ToggleHeadingUp flips the heading-up camera preference. It never touches
// the trip.
func (c *Coordinator) ToggleHeadingUp() nav.Snapshot {
	return c.update(func() { c.headingUp = !c.headingUp })
}

func (c *Coordinator) ToggleTraffic() nav.Snapshot {
	return c.update(func() {
		c.traffic = !c.traffic
		if c.trip != nil {
			t := *c.trip
			t.Traffic = c.traffic
			c.trip = &t
		}
	})
}

func (c *Coordinator) SetTheme(theme nav.Theme) nav.Snapshot {
	return c.update(func() { c.theme = theme })
}

func (c *Coordinator) DismissAlert() nav.Snapshot {
	return c.update(func() { c.alert = nil })
}

// AdvanceStep moves the cursor to the next step. It reports false when there
// is no active trip or the cursor is already on the last step.
func (c *Coordinator) AdvanceStep() (nav.Snapshot, bool) {
	advanced := false
	snap := c.update(func() { advanced = c.advanceLocked() })
	return snap, advanced
}

func (c *Coordinator) update(fn func()) nav.Snapshot {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	prevMode := c.modeLocked()
	fn()
	snap := c.commitLocked(prevMode)
	c.mu.Unlock()

	c.syncFeed(snap.Mode)
	c.notify(snap, true)
	return snap
}

func (c *Coordinator) advanceLocked() bool {
	if c.trip == nil || c.trip.Cursor >= len(c.trip.Steps)-1 {
		return false
	}
	t := *c.trip
	t.Cursor++
	c.trip = &t
	if c.metrics != nil {
		c.metrics.StepCursor(t.Cursor)
	}
	c.log.WithFields(logrus.Fields{"trip": t.ID, "cursor": t.Cursor}).Debug("advanced to next step")
	return true
}

func (c *Coordinator) commitLocked(prevMode nav.Mode) nav.Snapshot {
	c.version++
	snap := c.snapshotLocked()
	if snap.Mode != prevMode {
		c.log.WithFields(logrus.Fields{"from": prevMode.String(), "to": snap.Mode.String()}).Info("mode change")
		if c.metrics != nil {
			c.metrics.ModeChanged(snap.Mode.String())
		}
	}
	if c.metrics != nil {
		cursor := 0
		if snap.Trip != nil {
			cursor = snap.Trip.Cursor
		}
		c.metrics.StepCursor(cursor)
	}
	return snap
}

// syncFeed must be called with transition held and mu released.
func (c *Coordinator) syncFeed(mode nav.Mode) {
	if mode == nav.ModeActiveTrip {
		c.feed.SetMode(feed.ModeSimulated)
		return
	}
	c.feed.SetMode(feed.ModeReal)
}

func (c *Coordinator) handleSample(s nav.PositionSample) {
	c.mu.Lock()
	c.position = s
	advanced := false
	if c.radius > 0 && c.trip != nil && c.trip.Cursor < len(c.trip.Steps)-1 {
		step := c.trip.Steps[c.trip.Cursor]
		if geo.Distance(s.LatLng(), step.End) <= c.radius {
			advanced = c.advanceLocked()
		}
	}
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.pub != nil {
		if err := c.pub.PublishPosition(s); err != nil {
			c.log.WithError(err).Debug("publish position failed")
		}
	}
	c.notify(snap, advanced)
}

// notify fans snap out to listeners; state changes also go to the publisher.
func (c *Coordinator) notify(snap nav.Snapshot, stateChanged bool) {
	c.mu.Lock()
	ls := make([]func(nav.Snapshot), len(c.listeners))
	copy(ls, c.listeners)
	c.mu.Unlock()

	if stateChanged && c.pub != nil {
		if err := c.pub.PublishState(snap); err != nil {
			c.log.WithError(err).Warn("publish state failed")
		}
	}
	for _, fn := range ls {
		fn(snap)
	}
}

func (c *Coordinator) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.RouteRequestObserved(outcome)
	}
}
