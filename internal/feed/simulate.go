package feed

import (
	"time"

	"nav-simulator/internal/geo"
	"nav-simulator/internal/nav"
)

// SimParams drives the placeholder motion model. It does not follow the
// route polyline.
type SimParams struct {
	HeadingStep float64 // degrees per tick
	Step        float64 // degrees of lat/lng per tick
}

// Simulate advances prev by one tick: position moves Step along the current
// heading, then heading turns by HeadingStep modulo 360.
func Simulate(prev nav.PositionSample, p SimParams, now time.Time) nav.PositionSample {
	next := prev
	pos := geo.Offset(prev.LatLng(), prev.Heading, p.Step)
	next.Latitude = pos.Lat
	next.Longitude = pos.Lng
	next.Heading = geo.NormalizeHeading(prev.Heading + p.HeadingStep)
	next.Timestamp = now
	return next
}
