package routing

import (
	"context"
	"errors"
	"html"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nav-simulator/internal/nav"
)

// Client issues one routing query per call and normalizes the reply into a
// TripState. It never mutates navigation state itself.
type Client struct {
	dir Directions
	log *logrus.Logger
}

// NewClient wraps dir. A nil dir yields a client that reports every request
// as unavailable.
func NewClient(dir Directions, log *logrus.Logger) *Client {
	return &Client{dir: dir, log: log}
}

func (c *Client) Available() bool { return c != nil && c.dir != nil }

// RequestRoute asks for a driving route from origin to destination. A
// current-location origin is resolved to here. Failures are *Failure values;
// a cancelled ctx is returned as is.
func (c *Client) RequestRoute(ctx context.Context, origin nav.Origin, destination string, here nav.PositionSample) (*nav.TripState, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, failure(ReasonInvalidRequest, "", errors.New("destination is required"))
	}
	if !c.Available() {
		return nil, failure(ReasonUnavailable, "", errors.New("directions service not initialized"))
	}

	req := DirectionsRequest{
		Destination:  destination,
		TravelMode:   "driving",
		Alternatives: false,
	}
	if origin.IsCurrent() {
		at := here.LatLng()
		req.OriginAt = &at
	} else {
		req.Origin = origin.Place
	}
	c.log.WithFields(logrus.Fields{"origin": origin.String(), "destination": destination}).Debug("requesting route")

	reply, err := c.dir.Route(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, errMalformedBody) {
			return nil, failure(ReasonMalformed, "", err)
		}
		return nil, failure(ReasonUnavailable, "", err)
	}
	if reply == nil {
		return nil, failure(ReasonMalformed, "", errors.New("nil reply"))
	}

	switch reply.Status {
	case StatusOK:
	case StatusRequestDenied:
		return nil, failure(ReasonDenied, reply.Status, errorMessage(reply))
	case StatusZeroResults, StatusNotFound:
		return nil, failure(ReasonNoRoute, reply.Status, errorMessage(reply))
	case "":
		return nil, failure(ReasonMalformed, "", errors.New("missing status"))
	default:
		return nil, failure(ReasonUnknown, reply.Status, errorMessage(reply))
	}

	if len(reply.Routes) == 0 {
		return nil, failure(ReasonEmpty, reply.Status, nil)
	}
	route := reply.Routes[0]
	if len(route.Legs) == 0 {
		return nil, failure(ReasonMalformed, reply.Status, errors.New("route has no legs"))
	}
	leg := route.Legs[0]
	if len(leg.Steps) == 0 {
		return nil, failure(ReasonMalformed, reply.Status, errors.New("leg has no steps"))
	}

	return normalize(origin, destination, leg), nil
}

func errorMessage(r *DirectionsReply) error {
	if r.ErrorMessage == "" {
		return nil
	}
	return errors.New(r.ErrorMessage)
}

func normalize(origin nav.Origin, requested string, leg Leg) *nav.TripState {
	steps := make([]nav.RouteStep, len(leg.Steps))
	path := make([]nav.LatLng, 0, len(leg.Steps)+1)
	for i, s := range leg.Steps {
		kind := ManeuverType(s.Maneuver)
		if i == len(leg.Steps)-1 {
			kind = nav.ManeuverArrival
		}
		steps[i] = nav.RouteStep{
			Instruction: StripHTML(s.HTMLInstructions),
			Distance:    s.Distance.Text,
			Type:        kind,
			Start:       s.StartLocation,
			End:         s.EndLocation,
		}
		path = append(path, s.StartLocation)
	}
	path = append(path, leg.Steps[len(leg.Steps)-1].EndLocation)

	dest := leg.EndAddress
	if dest == "" {
		dest = requested
	}
	return &nav.TripState{
		ID:            uuid.NewString(),
		Origin:        origin,
		Destination:   dest,
		DestinationAt: leg.EndLocation,
		Steps:         steps,
		Cursor:        0,
		TotalDistance: leg.Distance.Text,
		TotalDuration: leg.Duration.Text,
		Path:          path,
	}
}

var (
	blockPattern = regexp.MustCompile(`(?i)</?(div|br|p)[^>]*>?`)
	tagPattern   = regexp.MustCompile(`<[^>]*>?`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// StripHTML removes markup and entities from provider instruction text.
func StripHTML(s string) string {
	s = blockPattern.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(html.UnescapeString(s), "\u00a0", " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// ManeuverType maps a provider maneuver string to a step tag.
func ManeuverType(m string) nav.Maneuver {
	m = strings.ToLower(strings.TrimSpace(m))
	switch {
	case strings.HasPrefix(m, "uturn"):
		return nav.ManeuverUTurn
	case m == "turn-left" || m == "turn-sharp-left" || m == "roundabout-left":
		return nav.ManeuverLeft
	case m == "turn-right" || m == "turn-sharp-right" || m == "roundabout-right":
		return nav.ManeuverRight
	case strings.HasSuffix(m, "-left"):
		return nav.ManeuverSlightLeft
	case strings.HasSuffix(m, "-right"):
		return nav.ManeuverSlightRight
	}
	return nav.ManeuverStraight
}
