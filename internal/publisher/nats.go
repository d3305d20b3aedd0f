package publisher

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"nav-simulator/internal/nav"
)

type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	log         *logrus.Logger
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	PublishedInc(sink string)
	PublishErrInc(sink string)
	PublishObserve(sink string, d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, log *logrus.Logger, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("nav-simulator"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: subjectToken(prefix), logSubjects: logSubjects, log: log, metrics: m}, nil
}

// Conn exposes the connection so the positioning sensor can share it.
func (p *NATSPublisher) Conn() *nats.Conn { return p.nc }

func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.nc.Close()
			return err
		}
	}
	return nil
}

type PositionMessage struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Heading   float64   `json:"heading"`
	SpeedMph  float64   `json:"speedMph"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPositionMessage(s nav.PositionSample) PositionMessage {
	return PositionMessage{
		Lat:       s.Latitude,
		Lng:       s.Longitude,
		Heading:   s.Heading,
		SpeedMph:  s.Speed,
		Accuracy:  s.Accuracy,
		Timestamp: s.Timestamp,
	}
}

func (p *NATSPublisher) PublishPosition(s nav.PositionSample) error {
	return p.publish(p.prefix+".position", NewPositionMessage(s))
}

func (p *NATSPublisher) PublishState(s nav.Snapshot) error {
	return p.publish(p.prefix+".state", s)
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		p.log.WithField("subject", subject).Debug("nats publish")
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve("nats", time.Since(start))
		if err != nil {
			p.metrics.PublishErrInc("nats")
		} else {
			p.metrics.PublishedInc("nats")
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = strings.Trim(repl.Replace(s), ".")
	if s == "" {
		s = "nav"
	}
	return s
}
