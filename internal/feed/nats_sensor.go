package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSensor reads raw device readings published on a NATS subject.
type NATSSensor struct {
	nc      *nats.Conn
	subject string
}

func NewNATSSensor(nc *nats.Conn, subject string) *NATSSensor {
	return &NATSSensor{nc: nc, subject: subject}
}

// wireReading is the device payload. Timestamp is epoch milliseconds.
type wireReading struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Heading   *float64 `json:"heading"`
	Speed     *float64 `json:"speed"`
	Accuracy  *float64 `json:"accuracy"`
	Timestamp int64    `json:"timestamp"`
}

func decodeReading(b []byte) (Reading, error) {
	var w wireReading
	if err := json.Unmarshal(b, &w); err != nil {
		return Reading{}, err
	}
	if w.Lat < -90 || w.Lat > 90 || w.Lng < -180 || w.Lng > 180 {
		return Reading{}, fmt.Errorf("coordinates out of range: %f,%f", w.Lat, w.Lng)
	}
	r := Reading{
		Latitude:  w.Lat,
		Longitude: w.Lng,
		Heading:   w.Heading,
		Speed:     w.Speed,
		Accuracy:  w.Accuracy,
	}
	if w.Timestamp > 0 {
		r.Timestamp = time.UnixMilli(w.Timestamp)
	}
	return r, nil
}

func (s *NATSSensor) CurrentFix(ctx context.Context) (Reading, error) {
	sub, err := s.nc.SubscribeSync(s.subject)
	if err != nil {
		return Reading{}, fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	defer sub.Unsubscribe()
	for {
		msg, err := sub.NextMsgWithContext(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return Reading{}, ErrTimeout
			}
			return Reading{}, err
		}
		r, err := decodeReading(msg.Data)
		if err != nil {
			continue
		}
		return r, nil
	}
}

func (s *NATSSensor) Watch(ctx context.Context, timeout time.Duration, onReading func(Reading), onError func(error)) error {
	ch := make(chan *nats.Msg, 64)
	sub, err := s.nc.ChanSubscribe(s.subject, ch)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	defer sub.Unsubscribe()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			r, err := decodeReading(msg.Data)
			if err != nil {
				onError(fmt.Errorf("decode reading: %w", err))
				continue
			}
			onReading(r)
			timer.Reset(timeout)
		case <-timer.C:
			onError(ErrTimeout)
			timer.Reset(timeout)
		}
	}
}
