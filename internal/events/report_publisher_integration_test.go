//go:build integration

package events

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

// createTopic pre-creates a topic so the first write does not race topic metadata.
func createTopic(t *testing.T, brokers []string, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
	time.Sleep(time.Second)
}

func TestReportPublisher_Kafka(t *testing.T) {
	ctx := context.Background()

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	createTopic(t, brokers, DefaultTopic)

	logger, _ := zap.NewDevelopment()
	p := NewReportPublisher(brokers, DefaultTopic, logger)
	defer func() { _ = p.Close() }()

	require.NoError(t, p.Publish(ctx, testReport()))

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     fmt.Sprintf("test-reports-%s", uuid.New().String()[:8]),
		Topic:       DefaultTopic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	event, err := ParseReportEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "eiger", event.Data.Itinerary)
	assert.Equal(t, 1, event.Data.SuccessCount)
}
