package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"github.com/iot-sensordata/stageload/internal/telemetry"
)

// SuccessMessage is returned for a single reading that was processed
const SuccessMessage = "Successfully inserted 1 row."

const defaultBatchConcurrency = 8

const (
	outcomeInserted  = "inserted"
	outcomeDuplicate = "duplicate"
	outcomeInvalid   = "invalid"
	outcomeFailed    = "failed"
)

// Handler validates and stores sensor readings delivered by IoT rules or SQS
type Handler struct {
	validator   *Validator
	writer      *Writer
	metrics     *telemetry.IngestMetrics
	concurrency int
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithMetrics records reading outcomes on m
func WithMetrics(m *telemetry.IngestMetrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithBatchConcurrency limits concurrent inserts for one SQS batch
func WithBatchConcurrency(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// NewHandler creates a Handler
func NewHandler(validator *Validator, writer *Writer, opts ...HandlerOption) *Handler {
	h := &Handler{
		validator:   validator,
		writer:      writer,
		concurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleIoTEvent stores one reading forwarded by an IoT topic rule
func (h *Handler) HandleIoTEvent(ctx context.Context, event json.RawMessage) (string, error) {
	if err := h.process(ctx, event); err != nil {
		return "", err
	}
	return SuccessMessage, nil
}

// HandleSQSEvent stores every reading in the batch. Records that fail are
// returned as batch item failures so only they are redelivered.
func (h *Handler) HandleSQSEvent(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	failed := make([]bool, len(event.Records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, record := range event.Records {
		g.Go(func() error {
			if err := h.process(gctx, []byte(record.Body)); err != nil {
				slog.Warn("Failed to process queued reading",
					"message_id", record.MessageId,
					"error", err)
				failed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := events.SQSEventResponse{}
	for i, record := range event.Records {
		if failed[i] {
			resp.BatchItemFailures = append(resp.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	if len(resp.BatchItemFailures) > 0 {
		slog.Info("SQS batch processed with failures",
			"records", len(event.Records),
			"failures", len(resp.BatchItemFailures))
	}
	return resp, nil
}

func (h *Handler) process(ctx context.Context, raw []byte) error {
	reading, err := h.validator.Parse(raw)
	if err != nil {
		h.metrics.RecordReading(ctx, outcomeInvalid)
		return err
	}

	inserted, err := h.writer.Insert(ctx, reading)
	switch {
	case errors.Is(err, ErrInvalidReading):
		h.metrics.RecordReading(ctx, outcomeInvalid)
		return err
	case err != nil:
		h.metrics.RecordReading(ctx, outcomeFailed)
		return fmt.Errorf("failed to store reading: %w", err)
	case !inserted:
		slog.Info("Reading already stored",
			"device_id", reading.DeviceID,
			"datetime", reading.DateTime)
		h.metrics.RecordReading(ctx, outcomeDuplicate)
	default:
		h.metrics.RecordReading(ctx, outcomeInserted)
	}
	return nil
}
