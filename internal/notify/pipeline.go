package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
)

// FormatPipelineEvent renders the notification text for an S3 error file
// landing or a Glue job state change. Other events return false.
func FormatPipelineEvent(raw []byte) (string, bool) {
	if !gjson.ValidBytes(raw) {
		return "", false
	}
	event := gjson.ParseBytes(raw)

	if event.Get("Records.0.eventSource").String() == "aws:s3" {
		record := event.Get("Records.0.s3")
		return fmt.Sprintf("The error file \"%s\" has landed in S3 bucket \"%s\".",
			record.Get("object.key").String(),
			record.Get("bucket.name").String()), true
	}

	if event.Get("source").String() == "aws.glue" {
		return fmt.Sprintf("Glue job \"%s\" has %s at %s.",
			event.Get("detail.jobName").String(),
			event.Get("detail.state").String(),
			event.Get("time").String()), true
	}

	return "", false
}

// PipelineHandler publishes pipeline events that have a notification
type PipelineHandler struct {
	publisher Publisher
}

// NewPipelineHandler creates a PipelineHandler
func NewPipelineHandler(publisher Publisher) *PipelineHandler {
	return &PipelineHandler{publisher: publisher}
}

// HandleEvent publishes raw when it is a recognised pipeline event
func (h *PipelineHandler) HandleEvent(ctx context.Context, raw []byte) error {
	message, ok := FormatPipelineEvent(raw)
	if !ok {
		slog.Debug("Ignoring unrecognised pipeline event")
		return nil
	}
	return h.publisher.Publish(ctx, message)
}
