package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

const (
	// DefaultTopic receives one event per completed elevation report.
	DefaultTopic = "elevation.reports"
	// ReportCompleted is the event type of a published report.
	ReportCompleted = "elevation.report.completed"

	eventSource = "itinerary-elevation"
)

// ReportEvent is the envelope written to Kafka.
type ReportEvent struct {
	ID     string                    `json:"id"`
	Type   string                    `json:"type"`
	Source string                    `json:"source"`
	Time   time.Time                 `json:"time"`
	Data   elevation.ElevationReport `json:"data"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ReportPublisher publishes completed reports to a Kafka topic, keyed by
// itinerary so the reports of one itinerary stay ordered.
type ReportPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewReportPublisher creates a publisher writing to topic on brokers.
func NewReportPublisher(brokers []string, topic string, logger *zap.Logger) *ReportPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &ReportPublisher{writer: w, logger: logger.Named("report-publisher")}
}

// Publish implements elevation.ReportSink.
func (p *ReportPublisher) Publish(ctx context.Context, report elevation.ElevationReport) error {
	event := ReportEvent{
		ID:     uuid.NewString(),
		Type:   ReportCompleted,
		Source: eventSource,
		Time:   time.Now().UTC(),
		Data:   report,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode report event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(report.Itinerary),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "type", Value: []byte(ReportCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish report %s: %w", report.ID, err)
	}

	p.logger.Debug("report published",
		zap.String("event_id", event.ID),
		zap.String("report_id", report.ID),
		zap.String("itinerary", report.Itinerary),
	)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *ReportPublisher) Close() error {
	return p.writer.Close()
}

// ParseReportEvent decodes an event value written by Publish.
func ParseReportEvent(value []byte) (ReportEvent, error) {
	var event ReportEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return ReportEvent{}, fmt.Errorf("decode report event: %w", err)
	}
	if event.Type != ReportCompleted {
		return ReportEvent{}, fmt.Errorf("unexpected event type %q", event.Type)
	}
	return event, nil
}
