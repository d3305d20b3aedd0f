package publisher

import (
	"errors"

	"nav-simulator/internal/nav"
)

// Sink is one event destination.
type Sink interface {
	PublishPosition(s nav.PositionSample) error
	PublishState(s nav.Snapshot) error
	Close() error
}

// Fanout delivers every event to all sinks and joins their errors.
type Fanout []Sink

func (f Fanout) PublishPosition(s nav.PositionSample) error {
	var errs []error
	for _, sink := range f {
		if err := sink.PublishPosition(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishState(s nav.Snapshot) error {
	var errs []error
	for _, sink := range f {
		if err := sink.PublishState(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, sink := range f {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
