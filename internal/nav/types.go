package nav

import (
	"strings"
	"time"
)

// CurrentLocation is the origin sentinel resolved to the latest position sample.
const CurrentLocation = "Your Location"

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PositionSample is one reading of the location feed. Speed is in mph,
// Accuracy is a radius in meters.
type PositionSample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   float64   `json:"heading"` // degrees, [0,360)
	Speed     float64   `json:"speed"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

func (p PositionSample) LatLng() LatLng { return LatLng{Lat: p.Latitude, Lng: p.Longitude} }

type Maneuver string

const (
	ManeuverStraight    Maneuver = "straight"
	ManeuverLeft        Maneuver = "left"
	ManeuverRight       Maneuver = "right"
	ManeuverSlightLeft  Maneuver = "slight_left"
	ManeuverSlightRight Maneuver = "slight_right"
	ManeuverUTurn       Maneuver = "u_turn"
	ManeuverArrival     Maneuver = "arrival"
)

// RouteStep is immutable once produced by the routing client.
type RouteStep struct {
	Instruction string   `json:"instruction"`
	Distance    string   `json:"distance"`
	Type        Maneuver `json:"type"`
	Start       LatLng   `json:"start"`
	End         LatLng   `json:"end"`
}

// Origin is either the current-location sentinel or a free-text place.
type Origin struct {
	Place string `json:"place,omitempty"`
}

func ParseOrigin(s string) Origin {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, CurrentLocation) {
		return Origin{}
	}
	return Origin{Place: s}
}

func (o Origin) IsCurrent() bool { return o.Place == "" }

func (o Origin) String() string {
	if o.IsCurrent() {
		return CurrentLocation
	}
	return o.Place
}

// SwapEndpoints exchanges origin and destination the way the search panel
// does: an empty destination becomes the current location and the
// current-location origin becomes an empty destination.
func SwapEndpoints(origin Origin, destination string) (Origin, string) {
	newOrigin := ParseOrigin(destination)
	newDest := ""
	if !origin.IsCurrent() {
		newDest = origin.Place
	}
	return newOrigin, newDest
}

// TripState describes the current route. Cursor is a valid index into
// Steps, or 0 when Steps is empty.
type TripState struct {
	ID            string      `json:"id"`
	Origin        Origin      `json:"origin"`
	Destination   string      `json:"destination"`
	DestinationAt LatLng      `json:"destinationAt"`
	Steps         []RouteStep `json:"steps"`
	Cursor        int         `json:"cursor"`
	TotalDistance string      `json:"totalDistance"`
	TotalDuration string      `json:"totalDuration"`
	Traffic       bool        `json:"traffic"`
	Path          []LatLng    `json:"path,omitempty"`
}

// CurrentStep returns the step under the cursor.
func (t *TripState) CurrentStep() (RouteStep, bool) {
	if t == nil || len(t.Steps) == 0 {
		return RouteStep{}, false
	}
	return t.Steps[t.Cursor], true
}

// Clone copies the trip so callers can hold it without sharing the step slice.
func (t *TripState) Clone() *TripState {
	if t == nil {
		return nil
	}
	c := *t
	c.Steps = append([]RouteStep(nil), t.Steps...)
	c.Path = append([]LatLng(nil), t.Path...)
	return &c
}

type Mode int

const (
	ModeIdle Mode = iota
	ModeHeadingUp
	ModeActiveTrip
)

func (m Mode) String() string {
	switch m {
	case ModeHeadingUp:
		return "heading_up"
	case ModeActiveTrip:
		return "active_trip"
	default:
		return "idle"
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// NavView reports whether the camera should be navigation oriented.
func (m Mode) NavView() bool { return m == ModeHeadingUp || m == ModeActiveTrip }

type Theme string

const (
	ThemeDark   Theme = "DARK"
	ThemeLight  Theme = "LIGHT"
	ThemeSystem Theme = "SYSTEM"
)

func ParseTheme(s string) (Theme, bool) {
	switch Theme(strings.ToUpper(strings.TrimSpace(s))) {
	case ThemeDark:
		return ThemeDark, true
	case ThemeLight:
		return ThemeLight, true
	case ThemeSystem:
		return ThemeSystem, true
	}
	return "", false
}

// Alert is a user-facing routing failure.
type Alert struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Snapshot is the read-only view handed to the presentation layer.
type Snapshot struct {
	Mode      Mode           `json:"mode"`
	HeadingUp bool           `json:"headingUp"`
	Position  PositionSample `json:"position"`
	Trip      *TripState     `json:"trip,omitempty"`
	Traffic   bool           `json:"traffic"`
	Theme     Theme          `json:"theme"`
	Alert     *Alert         `json:"alert,omitempty"`
	Pending   bool           `json:"pending"`
	Version   uint64         `json:"version"`
}
