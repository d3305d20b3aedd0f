package routing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"nav-simulator/internal/nav"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const threeStepReply = `{
  "status": "OK",
  "routes": [{
    "summary": "US-101 S",
    "legs": [{
      "start_address": "Market St, San Francisco, CA, USA",
      "end_address": "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA",
      "start_location": {"lat": 37.7749, "lng": -122.4194},
      "end_location": {"lat": 37.4220, "lng": -122.0841},
      "distance": {"text": "38.2 mi", "value": 61476},
      "duration": {"text": "45 mins", "value": 2700},
      "steps": [
        {
          "html_instructions": "Head <b>south</b> on <b>Market St</b>",
          "distance": {"text": "0.2 mi", "value": 320},
          "start_location": {"lat": 37.7749, "lng": -122.4194},
          "end_location": {"lat": 37.7730, "lng": -122.4210}
        },
        {
          "html_instructions": "Turn <b>left</b> onto <b>US-101 S</b>",
          "distance": {"text": "37.5 mi", "value": 60300},
          "maneuver": "turn-left",
          "start_location": {"lat": 37.7730, "lng": -122.4210},
          "end_location": {"lat": 37.4230, "lng": -122.0850}
        },
        {
          "html_instructions": "Turn <b>right</b><div style=\"font-size:0.9em\">Destination will be on the left</div>",
          "distance": {"text": "0.5 mi", "value": 856},
          "maneuver": "turn-right",
          "start_location": {"lat": 37.4230, "lng": -122.0850},
          "end_location": {"lat": 37.4220, "lng": -122.0841}
        }
      ]
    }]
  }]
}`

func newTestServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRequestRouteThreeSteps(t *testing.T) {
	var gotQuery map[string]string
	srv := newTestServer(t, http.StatusOK, threeStepReply, func(r *http.Request) {
		if r.URL.Path != "/maps/api/directions/json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"origin":       q.Get("origin"),
			"destination":  q.Get("destination"),
			"mode":         q.Get("mode"),
			"alternatives": q.Get("alternatives"),
			"key":          q.Get("key"),
		}
	})
	c := NewClient(NewGoogleDirections(srv.URL, "test-key", srv.Client()), testLogger())

	here := nav.PositionSample{Latitude: 37.7749, Longitude: -122.4194}
	trip, err := c.RequestRoute(context.Background(), nav.ParseOrigin("Your Location"), "1600 Amphitheatre Pkwy", here)
	if err != nil {
		t.Fatalf("RequestRoute: %v", err)
	}

	if gotQuery["origin"] != "37.774900,-122.419400" {
		t.Errorf("origin = %q, want current coordinates", gotQuery["origin"])
	}
	if gotQuery["destination"] != "1600 Amphitheatre Pkwy" || gotQuery["mode"] != "driving" ||
		gotQuery["alternatives"] != "false" || gotQuery["key"] != "test-key" {
		t.Errorf("query = %v", gotQuery)
	}

	if len(trip.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(trip.Steps))
	}
	if trip.Cursor != 0 {
		t.Errorf("cursor = %d, want 0", trip.Cursor)
	}
	if trip.Destination != "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA" {
		t.Errorf("destination = %q", trip.Destination)
	}
	if trip.TotalDistance != "38.2 mi" || trip.TotalDuration != "45 mins" {
		t.Errorf("totals = %q / %q", trip.TotalDistance, trip.TotalDuration)
	}
	if trip.Steps[0].Instruction != "Head south on Market St" {
		t.Errorf("instruction 0 = %q", trip.Steps[0].Instruction)
	}
	if trip.Steps[2].Instruction != "Turn right Destination will be on the left" {
		t.Errorf("instruction 2 = %q", trip.Steps[2].Instruction)
	}
	wantTypes := []nav.Maneuver{nav.ManeuverStraight, nav.ManeuverLeft, nav.ManeuverArrival}
	for i, w := range wantTypes {
		if trip.Steps[i].Type != w {
			t.Errorf("step %d type = %s, want %s", i, trip.Steps[i].Type, w)
		}
	}
	if len(trip.Path) != 4 {
		t.Errorf("path points = %d, want 4", len(trip.Path))
	}
	if trip.ID == "" {
		t.Error("trip id is empty")
	}
}

func TestRequestRouteTextOrigin(t *testing.T) {
	var origin string
	srv := newTestServer(t, http.StatusOK, threeStepReply, func(r *http.Request) {
		origin = r.URL.Query().Get("origin")
	})
	c := NewClient(NewGoogleDirections(srv.URL, "k", srv.Client()), testLogger())
	trip, err := c.RequestRoute(context.Background(), nav.ParseOrigin("Ferry Building"), "SFO", nav.PositionSample{})
	if err != nil {
		t.Fatalf("RequestRoute: %v", err)
	}
	if origin != "Ferry Building" {
		t.Errorf("origin = %q", origin)
	}
	if trip.Origin.Place != "Ferry Building" {
		t.Errorf("trip origin = %+v", trip.Origin)
	}
}

func TestRequestRouteFailures(t *testing.T) {
	tests := []struct {
		name       string
		httpStatus int
		body       string
		want       Reason
	}{
		{"zero results", http.StatusOK, `{"status":"ZERO_RESULTS","routes":[]}`, ReasonNoRoute},
		{"not found", http.StatusOK, `{"status":"NOT_FOUND","routes":[]}`, ReasonNoRoute},
		{"denied", http.StatusOK, `{"status":"REQUEST_DENIED","error_message":"API not enabled"}`, ReasonDenied},
		{"over limit", http.StatusOK, `{"status":"OVER_QUERY_LIMIT"}`, ReasonUnknown},
		{"empty", http.StatusOK, `{"status":"OK","routes":[]}`, ReasonEmpty},
		{"no legs", http.StatusOK, `{"status":"OK","routes":[{"legs":[]}]}`, ReasonMalformed},
		{"no steps", http.StatusOK, `{"status":"OK","routes":[{"legs":[{"steps":[]}]}]}`, ReasonMalformed},
		{"missing status", http.StatusOK, `{}`, ReasonMalformed},
		{"bad json", http.StatusOK, `{"status":`, ReasonMalformed},
		{"http 500", http.StatusInternalServerError, `oops`, ReasonUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.httpStatus, tt.body, nil)
			c := NewClient(NewGoogleDirections(srv.URL, "k", srv.Client()), testLogger())
			trip, err := c.RequestRoute(context.Background(), nav.Origin{}, "somewhere", nav.PositionSample{})
			if trip != nil {
				t.Errorf("trip = %+v, want nil", trip)
			}
			f, ok := AsFailure(err)
			if !ok {
				t.Fatalf("err = %v, want *Failure", err)
			}
			if f.Reason != tt.want {
				t.Errorf("reason = %s, want %s", f.Reason, tt.want)
			}
			if f.Message() == "" {
				t.Error("empty user message")
			}
		})
	}
}

func TestFailureMessagesDistinct(t *testing.T) {
	seen := map[string]Reason{}
	for _, r := range []Reason{ReasonInvalidRequest, ReasonUnavailable, ReasonDenied, ReasonNoRoute, ReasonEmpty, ReasonMalformed} {
		msg := (&Failure{Reason: r}).Message()
		if prev, dup := seen[msg]; dup {
			t.Errorf("%s and %s share message %q", prev, r, msg)
		}
		seen[msg] = r
	}
}

func TestRequestRouteUnavailable(t *testing.T) {
	c := NewClient(nil, testLogger())
	_, err := c.RequestRoute(context.Background(), nav.Origin{}, "x", nav.PositionSample{})
	if f, ok := AsFailure(err); !ok || f.Reason != ReasonUnavailable {
		t.Errorf("err = %v, want unavailable", err)
	}
}

func TestRequestRouteEmptyDestination(t *testing.T) {
	c := NewClient(nil, testLogger())
	_, err := c.RequestRoute(context.Background(), nav.Origin{}, "   ", nav.PositionSample{})
	if f, ok := AsFailure(err); !ok || f.Reason != ReasonInvalidRequest {
		t.Errorf("err = %v, want invalid request", err)
	}
}

type blockingDirections struct{}

func (blockingDirections) Route(ctx context.Context, _ DirectionsRequest) (*DirectionsReply, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRequestRouteCancelled(t *testing.T) {
	c := NewClient(blockingDirections{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.RequestRoute(ctx, nav.Origin{}, "x", nav.PositionSample{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if _, ok := AsFailure(err); ok {
		t.Error("cancellation must not be reported as a routing failure")
	}
}

func TestManeuverType(t *testing.T) {
	tests := map[string]nav.Maneuver{
		"":                  nav.ManeuverStraight,
		"straight":          nav.ManeuverStraight,
		"merge":             nav.ManeuverStraight,
		"turn-left":         nav.ManeuverLeft,
		"turn-sharp-right":  nav.ManeuverRight,
		"turn-slight-left":  nav.ManeuverSlightLeft,
		"ramp-right":        nav.ManeuverSlightRight,
		"keep-left":         nav.ManeuverSlightLeft,
		"uturn-left":        nav.ManeuverUTurn,
		"uturn-right":       nav.ManeuverUTurn,
		"roundabout-right":  nav.ManeuverRight,
		"fork-right":        nav.ManeuverSlightRight,
	}
	for in, want := range tests {
		if got := ManeuverType(in); got != want {
			t.Errorf("ManeuverType(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestStripHTML(t *testing.T) {
	tests := map[string]string{
		"Turn <b>left</b> onto <b>Market St</b>": "Turn left onto Market St",
		"Merge onto <b>I-280&nbsp;S</b>":          "Merge onto I-280 S",
		"Toll road<div>Restricted usage road</div>": "Toll road Restricted usage road",
		"plain":                                    "plain",
	}
	for in, want := range tests {
		if got := StripHTML(in); got != want {
			t.Errorf("StripHTML(%q) = %q, want %q", in, got, want)
		}
	}
}
