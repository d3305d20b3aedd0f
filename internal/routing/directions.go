package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nav-simulator/internal/nav"
)

// Provider status vocabulary.
const (
	StatusOK            = "OK"
	StatusRequestDenied = "REQUEST_DENIED"
	StatusZeroResults   = "ZERO_RESULTS"
	StatusNotFound      = "NOT_FOUND"
	StatusOverLimit     = "OVER_QUERY_LIMIT"
	StatusInvalid       = "INVALID_REQUEST"
)

// DirectionsRequest is a single driving query. Either OriginAt or Origin is set.
type DirectionsRequest struct {
	Origin       string
	OriginAt     *nav.LatLng
	Destination  string
	TravelMode   string
	Alternatives bool
}

type TextValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

type Step struct {
	HTMLInstructions string     `json:"html_instructions"`
	Distance         TextValue  `json:"distance"`
	Duration         TextValue  `json:"duration"`
	Maneuver         string     `json:"maneuver"`
	StartLocation    nav.LatLng `json:"start_location"`
	EndLocation      nav.LatLng `json:"end_location"`
}

type Leg struct {
	StartAddress  string     `json:"start_address"`
	EndAddress    string     `json:"end_address"`
	StartLocation nav.LatLng `json:"start_location"`
	EndLocation   nav.LatLng `json:"end_location"`
	Distance      TextValue  `json:"distance"`
	Duration      TextValue  `json:"duration"`
	Steps         []Step     `json:"steps"`
}

type Route struct {
	Summary string `json:"summary"`
	Legs    []Leg  `json:"legs"`
}

// DirectionsReply mirrors the provider's JSON body.
type DirectionsReply struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
	Routes       []Route `json:"routes"`
}

// Directions is the routing collaborator. A returned error means the
// service could not be reached; provider refusals come back in Status.
type Directions interface {
	Route(ctx context.Context, req DirectionsRequest) (*DirectionsReply, error)
}

// GoogleDirections calls the Google Maps Directions web service.
type GoogleDirections struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewGoogleDirections(baseURL, apiKey string, client *http.Client) *GoogleDirections {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleDirections{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (g *GoogleDirections) Route(ctx context.Context, req DirectionsRequest) (*DirectionsReply, error) {
	q := url.Values{}
	if req.OriginAt != nil {
		q.Set("origin", fmt.Sprintf("%f,%f", req.OriginAt.Lat, req.OriginAt.Lng))
	} else {
		q.Set("origin", req.Origin)
	}
	q.Set("destination", req.Destination)
	mode := req.TravelMode
	if mode == "" {
		mode = "driving"
	}
	q.Set("mode", mode)
	q.Set("alternatives", fmt.Sprintf("%t", req.Alternatives))
	q.Set("key", g.apiKey)

	u := g.baseURL + "/maps/api/directions/json?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directions: unexpected HTTP status %d", resp.StatusCode)
	}

	var reply DirectionsReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return &reply, nil
}
