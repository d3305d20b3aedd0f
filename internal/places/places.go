package places

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// MinInputLength is the shortest input that triggers a lookup; anything
// shorter yields no suggestions.
const MinInputLength = 3

type Suggestion struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Secondary string `json:"secondary,omitempty"`
}

// Backend is a place-suggestion collaborator.
type Backend interface {
	Suggest(ctx context.Context, input string) ([]Suggestion, error)
}

// Metrics is implemented by the metrics collector; nil disables it.
type Metrics interface {
	SuggestObserved(outcome string)
}

// Service degrades to an empty list whenever the backend is missing or fails.
type Service struct {
	backend Backend
	log     *logrus.Logger
	metrics Metrics
}

func NewService(backend Backend, log *logrus.Logger, m Metrics) *Service {
	return &Service{backend: backend, log: log, metrics: m}
}

func (s *Service) Suggest(ctx context.Context, input string) []Suggestion {
	input = strings.TrimSpace(input)
	if len([]rune(input)) < MinInputLength || s.backend == nil {
		return []Suggestion{}
	}
	out, err := s.backend.Suggest(ctx, input)
	if err != nil {
		s.log.WithError(err).WithField("input", input).Warn("place suggestions unavailable")
		s.observe("error")
		return []Suggestion{}
	}
	s.observe("ok")
	if out == nil {
		out = []Suggestion{}
	}
	return out
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.SuggestObserved(outcome)
	}
}
