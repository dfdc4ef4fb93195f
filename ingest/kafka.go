/*
Package ingest feeds badge scans from a message broker into the scan inbox.

PURPOSE:
  Badge readers publish one JSON message per scan:

    {"subjectId": "e1", "timestamp": "2025-05-01T08:55:00Z", "displayName": "Ann"}

  The worker polls the topic, assigns each scan a fresh id and writes it to
  scans/{id}. From there the watcher and the batch job take over. Payloads
  that do not decode or validate are logged and dropped.
*/
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/warp/attendance-engine/attendance"
)

// Message is one broker record.
type Message struct {
	Topic   string
	Payload []byte
}

// Consumer polls up to max messages.
type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
}

// =============================================================================
// KAFKA CONSUMER
// =============================================================================

type KafkaConsumer struct {
	reader *kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string, topics []string) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer requires group id")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return &KafkaConsumer{reader: reader}, nil
}

func (c *KafkaConsumer) Poll(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	out := make([]Message, 0, max)
	for i := 0; i < max; i++ {
		readCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		msg, err := c.reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				return out, nil
			case errors.Is(err, context.Canceled):
				return out, ctx.Err()
			default:
				return out, err
			}
		}
		out = append(out, Message{Topic: msg.Topic, Payload: msg.Value})
	}
	return out, nil
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// =============================================================================
// SCAN WORKER
// =============================================================================

// Worker moves consumed scans into the inbox.
type Worker struct {
	logger   *slog.Logger
	consumer Consumer
	repo     *attendance.Repository
	interval time.Duration
	newID    func() string
}

func NewWorker(logger *slog.Logger, consumer Consumer, repo *attendance.Repository, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		logger:   logger,
		consumer: consumer,
		repo:     repo,
		interval: interval,
		newID:    uuid.NewString,
	}
}

// Run polls until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "scan ingestion iteration failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce polls one batch and returns the number of scans written.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	msgs, err := w.consumer.Poll(ctx, 50)
	if err != nil {
		return 0, err
	}
	written := 0
	for _, msg := range msgs {
		scan, err := DecodeScan(msg.Payload)
		if err != nil {
			w.logger.WarnContext(ctx, "dropping scan message", "topic", msg.Topic, "error", err)
			continue
		}
		scan.ID = w.newID()
		if err := w.repo.PutScan(ctx, scan); err != nil {
			w.logger.ErrorContext(ctx, "scan inbox write failed",
				"scan", scan.ID, "subject", scan.SubjectID, "error", err)
			continue
		}
		written++
	}
	return written, nil
}

// DecodeScan decodes and validates one scan message.
func DecodeScan(payload []byte) (attendance.ScanEvent, error) {
	var scan attendance.ScanEvent
	if err := json.Unmarshal(payload, &scan); err != nil {
		if attendance.IsMalformed(err) {
			return attendance.ScanEvent{}, err
		}
		return attendance.ScanEvent{}, fmt.Errorf("%w: %v", attendance.ErrMalformedInput, err)
	}
	if err := scan.Validate(); err != nil {
		return attendance.ScanEvent{}, err
	}
	return scan, nil
}
