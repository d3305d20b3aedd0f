package feed

import (
	"context"
	"errors"
	"math"
	"time"

	"nav-simulator/internal/geo"
	"nav-simulator/internal/nav"
)

// MPSToMPH converts sensor speed (m/s) to the feed's display unit.
const MPSToMPH = 2.237

// ErrTimeout is reported when the sensor produced no reading within the
// requested bound.
var ErrTimeout = errors.New("positioning sensor timeout")

// Reading is a raw sensor callback. Nil fields were not reported.
type Reading struct {
	Latitude  float64
	Longitude float64
	Heading   *float64 // degrees
	Speed     *float64 // m/s
	Accuracy  *float64 // meters
	Timestamp time.Time
}

// Sensor is the positioning collaborator. Implementations are expected to
// deliver fresh readings only (no cached fixes).
type Sensor interface {
	// CurrentFix waits for a single reading until ctx is done.
	CurrentFix(ctx context.Context) (Reading, error)
	// Watch delivers readings until ctx is done. onError receives ErrTimeout
	// when no reading arrived within timeout; watching continues afterwards.
	Watch(ctx context.Context, timeout time.Duration, onReading func(Reading), onError func(error)) error
}

// Merge overlays r on prev. Heading, speed and accuracy the sensor did not
// report keep their previous values.
func Merge(prev nav.PositionSample, r Reading) nav.PositionSample {
	next := prev
	next.Latitude = r.Latitude
	next.Longitude = r.Longitude
	if r.Heading != nil && !math.IsNaN(*r.Heading) {
		next.Heading = geo.NormalizeHeading(*r.Heading)
	}
	if r.Speed != nil && !math.IsNaN(*r.Speed) {
		next.Speed = math.Max(0, *r.Speed*MPSToMPH)
	}
	if r.Accuracy != nil && !math.IsNaN(*r.Accuracy) {
		next.Accuracy = math.Max(0, *r.Accuracy)
	}
	next.Timestamp = r.Timestamp
	if next.Timestamp.IsZero() {
		next.Timestamp = time.Now()
	}
	return next
}
