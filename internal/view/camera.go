// Package view derives what the map-rendering collaborator should show from
// a coordinator snapshot. It holds no state.
package view

import (
	"nav-simulator/internal/geo"
	"nav-simulator/internal/nav"
)

const (
	overviewZoom = 16
	navZoom      = 18
	navTilt      = 45
	// navLookAhead shifts the camera centre ahead of the vehicle, in degrees.
	navLookAhead = 0.0008
)

type Camera struct {
	Center  nav.LatLng `json:"center"`
	Zoom    int        `json:"zoom"`
	Heading float64    `json:"heading"`
	Tilt    float64    `json:"tilt"`
}

// CameraFor frames the map. Navigation views follow the vehicle heading
// with the centre pushed ahead; the overview is north-up and flat unless
// threeD is requested.
func CameraFor(s nav.Snapshot, threeD bool) Camera {
	pos := s.Position.LatLng()
	if s.Mode.NavView() {
		return Camera{
			Center:  geo.Offset(pos, s.Position.Heading, navLookAhead),
			Zoom:    navZoom,
			Heading: s.Position.Heading,
			Tilt:    navTilt,
		}
	}
	c := Camera{Center: pos, Zoom: overviewZoom}
	if threeD {
		c.Tilt = navTilt
	}
	return c
}

// ActiveTheme resolves SYSTEM to fallback and returns "dark" or "light".
func ActiveTheme(t nav.Theme, fallback nav.Theme) string {
	if t == nav.ThemeSystem {
		t = fallback
	}
	if t == nav.ThemeLight {
		return "light"
	}
	return "dark"
}

// Marker is the destination pin drawn at the end of the route.
type Marker struct {
	Position nav.LatLng `json:"position"`
	Title    string     `json:"title"`
}

// Frame is everything the renderer needs for one draw.
type Frame struct {
	Snapshot    nav.Snapshot `json:"state"`
	Camera      Camera       `json:"camera"`
	ActiveTheme string       `json:"activeTheme"`
	Route       []nav.LatLng `json:"route,omitempty"`
	Destination *Marker      `json:"destination,omitempty"`
}

func FrameFor(s nav.Snapshot, threeD bool, systemTheme nav.Theme) Frame {
	f := Frame{
		Snapshot:    s,
		Camera:      CameraFor(s, threeD),
		ActiveTheme: ActiveTheme(s.Theme, systemTheme),
	}
	if s.Trip != nil && len(s.Trip.Steps) > 0 {
		f.Route = s.Trip.Path
		f.Destination = &Marker{Position: s.Trip.DestinationAt, Title: "Destination"}
	}
	return f
}
