package publisher

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"nav-simulator/internal/nav"
)

// KafkaPublisher streams position samples to a GPS topic in the string-typed
// raw reading layout that downstream smoothing consumers read. State
// snapshots are not sent to Kafka.
type KafkaPublisher struct {
	writer    *kafka.Writer
	deviceID  string
	vehicleID string
	log       *logrus.Logger
	metrics   PublisherMetrics
}

func NewKafkaPublisher(brokers []string, topic, deviceID, vehicleID string, log *logrus.Logger, m PublisherMetrics) *KafkaPublisher {
	k := &KafkaPublisher{
		deviceID:  deviceID,
		vehicleID: vehicleID,
		log:       log,
		metrics:   m,
	}
	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			k.complete(len(messages), err)
		},
	}
	return k
}

// RawGPSMessage is the wire layout; every field is a string.
type RawGPSMessage struct {
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	Speed       string `json:"speed"`
	Altitude    string `json:"altitude"`
	Signal      string `json:"signal"`
	Satellites  string `json:"satellites"`
	Timestamp   string `json:"timestamp"`
	DeviceID    string `json:"device_id"`
	VehicleID   string `json:"vehicle_id"`
	Status      string `json:"status"`
	InDepot     bool   `json:"in_depot"`
	FormattedTS string `json:"formatted_ts"`
}

func NewRawGPSMessage(s nav.PositionSample, deviceID, vehicleID string) RawGPSMessage {
	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return RawGPSMessage{
		Latitude:    strconv.FormatFloat(s.Latitude, 'f', 7, 64),
		Longitude:   strconv.FormatFloat(s.Longitude, 'f', 7, 64),
		Speed:       strconv.FormatFloat(s.Speed/1.609344, 'f', 2, 64), // km/h
		Altitude:    "0",
		Signal:      "0",
		Satellites:  "0",
		Timestamp:   strconv.FormatInt(ts.UnixMilli(), 10),
		DeviceID:    deviceID,
		VehicleID:   vehicleID,
		Status:      "moving",
		FormattedTS: ts.UTC().Format(time.RFC3339),
	}
}

func (k *KafkaPublisher) PublishPosition(s nav.PositionSample) error {
	b, err := json.Marshal(NewRawGPSMessage(s, k.deviceID, k.vehicleID))
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(context.Background(), kafka.Message{Key: []byte(k.deviceID), Value: b})
}

func (k *KafkaPublisher) PublishState(nav.Snapshot) error { return nil }

func (k *KafkaPublisher) complete(n int, err error) {
	if err != nil {
		k.log.WithError(err).Warn("kafka write failed")
	}
	if k.metrics == nil {
		return
	}
	for i := 0; i < n; i++ {
		if err != nil {
			k.metrics.PublishErrInc("kafka")
		} else {
			k.metrics.PublishedInc("kafka")
		}
	}
}

func (k *KafkaPublisher) Close() error { return k.writer.Close() }
