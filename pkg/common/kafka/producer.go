package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// TaskMessage is the envelope consumed by the transcription workers.
type TaskMessage struct {
	ID         string    `json:"id"`
	Task       string    `json:"task"`
	CallUID    string    `json:"call_uid"`
	StorageKey string    `json:"storage_key"`
	QueuedAt   time.Time `json:"queued_at"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer}
}

// PublishTask enqueues one transcription task keyed by call UID so repeated
// dispatches of the same call land on the same partition.
func (p *Producer) PublishTask(ctx context.Context, task, callUID, storageKey string) error {
	msg := TaskMessage{
		ID:         uuid.New().String(),
		Task:       task,
		CallUID:    callUID,
		StorageKey: storageKey,
		QueuedAt:   time.Now().UTC(),
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(callUID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "task", Value: []byte(task)},
			{Key: "source", Value: []byte("scheduler-service")},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"call_uid": callUID,
			"task":     task,
		}).Error("Failed to publish transcription task")
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"call_uid": callUID,
		"topic":    p.writer.Topic,
	}).Debug("Published transcription task")

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
