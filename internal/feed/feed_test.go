package feed

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"nav-simulator/internal/nav"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func f64(v float64) *float64 { return &v }

func TestMergeKeepsOmittedFields(t *testing.T) {
	prev := nav.PositionSample{Latitude: 1, Longitude: 2, Heading: 45, Speed: 30, Accuracy: 5}
	ts := time.UnixMilli(1700000000000)

	got := Merge(prev, Reading{Latitude: 3, Longitude: 4, Timestamp: ts})
	if got.Heading != 45 {
		t.Errorf("heading = %v, want previous 45", got.Heading)
	}
	if got.Speed != 30 {
		t.Errorf("speed = %v, want previous 30", got.Speed)
	}
	if got.Accuracy != 5 {
		t.Errorf("accuracy = %v, want previous 5", got.Accuracy)
	}
	if got.Latitude != 3 || got.Longitude != 4 {
		t.Errorf("position = %v,%v, want 3,4", got.Latitude, got.Longitude)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, ts)
	}

	got = Merge(prev, Reading{Latitude: 3, Longitude: 4, Heading: f64(math.NaN())})
	if got.Heading != 45 {
		t.Errorf("NaN heading replaced previous: %v", got.Heading)
	}
}

func TestMergeReportedFields(t *testing.T) {
	prev := nav.PositionSample{Heading: 45, Speed: 30, Accuracy: 5}
	got := Merge(prev, Reading{Heading: f64(370), Speed: f64(10), Accuracy: f64(-1)})
	if math.Abs(got.Heading-10) > 1e-9 {
		t.Errorf("heading = %v, want 10", got.Heading)
	}
	if math.Abs(got.Speed-22.37) > 1e-9 {
		t.Errorf("speed = %v, want 22.37 mph", got.Speed)
	}
	if got.Accuracy != 0 {
		t.Errorf("accuracy = %v, want clamped 0", got.Accuracy)
	}
	if got.Timestamp.IsZero() {
		t.Error("missing timestamp should default to now")
	}

	got = Merge(prev, Reading{Speed: f64(-3)})
	if got.Speed != 0 {
		t.Errorf("negative speed = %v, want 0", got.Speed)
	}
}

func TestSimulateHeadingWraps(t *testing.T) {
	p := SimParams{HeadingStep: 0.1, Step: 0.000004}
	s := nav.PositionSample{}
	now := time.Now()
	const ticks = 5000
	for i := 0; i < ticks; i++ {
		s = Simulate(s, p, now)
		if s.Heading < 0 || s.Heading >= 360 {
			t.Fatalf("tick %d: heading %v out of [0,360)", i, s.Heading)
		}
	}
	want := math.Mod(ticks*0.1, 360)
	if math.Abs(s.Heading-want) > 1e-6 {
		t.Errorf("heading after %d ticks = %v, want %v", ticks, s.Heading, want)
	}
}

func TestSimulateMovesAlongHeading(t *testing.T) {
	p := SimParams{HeadingStep: 0.1, Step: 0.000004}
	now := time.Now()

	s := Simulate(nav.PositionSample{Latitude: 37.7749, Longitude: -122.4194, Heading: 0}, p, now)
	if math.Abs(s.Latitude-(37.7749+0.000004)) > 1e-12 || math.Abs(s.Longitude+122.4194) > 1e-12 {
		t.Errorf("north step = %v,%v", s.Latitude, s.Longitude)
	}
	if !s.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", s.Timestamp, now)
	}

	s = Simulate(nav.PositionSample{Heading: 90}, p, now)
	if math.Abs(s.Latitude) > 1e-12 || math.Abs(s.Longitude-0.000004) > 1e-12 {
		t.Errorf("east step = %v,%v", s.Latitude, s.Longitude)
	}
}

func TestFeedSimulatedMode(t *testing.T) {
	opts := DefaultOptions()
	opts.Interval = time.Millisecond
	f := New(nil, nav.PositionSample{Latitude: 10, Longitude: 20}, opts, testLogger(), nil)

	got := make(chan nav.PositionSample, 16)
	f.Subscribe(func(s nav.PositionSample) {
		select {
		case got <- s:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.Start(ctx)
	defer f.Close()

	f.SetMode(ModeSimulated)
	if f.Mode() != ModeSimulated {
		t.Fatalf("mode = %v, want simulated", f.Mode())
	}
	select {
	case s := <-got:
		if s.Heading <= 0 {
			t.Errorf("simulated heading did not advance: %v", s.Heading)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no simulated sample delivered")
	}
}

func TestFeedSetModeStopsSimulation(t *testing.T) {
	opts := DefaultOptions()
	opts.Interval = time.Millisecond
	f := New(nil, nav.PositionSample{}, opts, testLogger(), nil)

	var mu sync.Mutex
	count := 0
	f.Subscribe(func(nav.PositionSample) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	f.Start(context.Background())
	defer f.Close()
	f.SetMode(ModeSimulated)
	time.Sleep(20 * time.Millisecond)
	f.SetMode(ModeReal)

	mu.Lock()
	before := count
	mu.Unlock()
	if before == 0 {
		t.Fatal("expected simulated samples before switching back")
	}
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	after := count
	mu.Unlock()
	if after != before {
		t.Errorf("samples still delivered after SetMode(real): %d -> %d", before, after)
	}
}

type fakeSensor struct {
	fixErr   error
	readings chan Reading
	errs     chan error
}

func (s *fakeSensor) CurrentFix(ctx context.Context) (Reading, error) {
	if s.fixErr != nil {
		return Reading{}, s.fixErr
	}
	return Reading{Latitude: 1, Longitude: 1}, nil
}

func (s *fakeSensor) Watch(ctx context.Context, timeout time.Duration, onReading func(Reading), onError func(error)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-s.readings:
			onReading(r)
		case err := <-s.errs:
			onError(err)
		}
	}
}

func TestFeedRealModeSurvivesSensorErrors(t *testing.T) {
	sensor := &fakeSensor{
		fixErr:   ErrTimeout,
		readings: make(chan Reading),
		errs:     make(chan error),
	}
	f := New(sensor, nav.PositionSample{Heading: 90, Speed: 12}, DefaultOptions(), testLogger(), nil)

	got := make(chan nav.PositionSample, 1)
	f.Subscribe(func(s nav.PositionSample) { got <- s })

	f.Start(context.Background())
	defer f.Close()

	sensor.errs <- errors.New("permission denied")
	sensor.readings <- Reading{Latitude: 51.5, Longitude: -0.12}

	select {
	case s := <-got:
		if s.Latitude != 51.5 || s.Longitude != -0.12 {
			t.Errorf("position = %v,%v", s.Latitude, s.Longitude)
		}
		if s.Heading != 90 || s.Speed != 12 {
			t.Errorf("heading/speed reset: %v/%v", s.Heading, s.Speed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no sensor sample delivered")
	}
	if f.Latest().Latitude != 51.5 {
		t.Errorf("Latest() = %+v", f.Latest())
	}
}

func TestDecodeReading(t *testing.T) {
	r, err := decodeReading([]byte(`{"lat":37.1,"lng":-122.2,"heading":null,"speed":3.5,"timestamp":1700000000000}`))
	if err != nil {
		t.Fatalf("decodeReading: %v", err)
	}
	if r.Heading != nil {
		t.Errorf("heading = %v, want nil", *r.Heading)
	}
	if r.Speed == nil || *r.Speed != 3.5 {
		t.Errorf("speed = %v, want 3.5", r.Speed)
	}
	if r.Timestamp.UnixMilli() != 1700000000000 {
		t.Errorf("timestamp = %v", r.Timestamp)
	}

	if _, err := decodeReading([]byte(`{"lat":123,"lng":0}`)); err == nil {
		t.Error("expected out-of-range latitude to fail")
	}
	if _, err := decodeReading([]byte(`not json`)); err == nil {
		t.Error("expected malformed payload to fail")
	}
}
