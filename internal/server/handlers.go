package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"nav-simulator/internal/nav"
	"nav-simulator/internal/routing"
	"nav-simulator/internal/view"
)

type routeRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	// Swap exchanges origin and destination before requesting.
	Swap bool `json:"swap"`
}

type themeRequest struct {
	Theme string `json:"theme"`
}

type errorResponse struct {
	Reason  string      `json:"reason"`
	Message string      `json:"message"`
	State   *view.Frame `json:"state,omitempty"`
}

type advanceResponse struct {
	view.Frame
	Advanced bool `json:"advanced"`
}

func (s *Server) frame(r *http.Request, snap nav.Snapshot) view.Frame {
	return view.FrameFor(snap, wants3D(r), s.systemTheme)
}

func wants3D(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("3d")) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.frame(r, s.nav.Snapshot()))
}

func (s *Server) handleRequestRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Reason:  string(routing.ReasonInvalidRequest),
			Message: "Malformed request body.",
		})
		return
	}
	origin := nav.ParseOrigin(req.Origin)
	destination := strings.TrimSpace(req.Destination)
	if req.Swap {
		origin, destination = nav.SwapEndpoints(origin, destination)
	}

	snap, err := s.nav.RequestRoute(r.Context(), origin, destination)
	if err == nil {
		s.writeJSON(w, http.StatusOK, s.frame(r, snap))
		return
	}

	f := s.frame(r, snap)
	resp := errorResponse{State: &f}
	status := http.StatusBadGateway
	var failure *routing.Failure
	switch {
	case errors.Is(err, routing.ErrSuperseded):
		status = http.StatusConflict
		resp.Reason = "superseded"
		resp.Message = "A newer route request replaced this one."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
		resp.Reason = "cancelled"
		resp.Message = "The route request was cancelled."
	case errors.As(err, &failure):
		resp.Reason = string(failure.Reason)
		resp.Message = failure.Message()
		switch failure.Reason {
		case routing.ReasonInvalidRequest:
			status = http.StatusBadRequest
		case routing.ReasonUnavailable:
			status = http.StatusServiceUnavailable
		}
	default:
		resp.Reason = string(routing.ReasonUnknown)
		resp.Message = err.Error()
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.frame(r, s.nav.Cancel()))
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.nav.AdvanceStep()
	s.writeJSON(w, http.StatusOK, advanceResponse{Frame: s.frame(r, snap), Advanced: ok})
}

func (s *Server) handleHeadingUp(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.frame(r, s.nav.ToggleHeadingUp()))
}

func (s *Server) handleTraffic(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.frame(r, s.nav.ToggleTraffic()))
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Reason: "invalid_theme", Message: "Malformed request body."})
		return
	}
	theme, ok := nav.ParseTheme(req.Theme)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Reason: "invalid_theme", Message: "Theme must be DARK, LIGHT or SYSTEM."})
		return
	}
	s.writeJSON(w, http.StatusOK, s.frame(r, s.nav.SetTheme(theme)))
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.frame(r, s.nav.DismissAlert()))
}

func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("input")
	var out any = []struct{}{}
	if s.places != nil {
		out = s.places.Suggest(r.Context(), input)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("write response failed")
	}
}
