package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
)

// AlertAggregate is one windowed temperature alert summary for a station
type AlertAggregate struct {
	StationName string  `json:"weatherstationname"`
	Count       int     `json:"msg_count"`
	MinTemp     float64 `json:"min_temp"`
	MaxTemp     float64 `json:"max_temp"`
	MinDateTime string  `json:"min_datetime"`
	MaxDateTime string  `json:"max_datetime"`
}

// FormatAlert renders the notification text for an aggregate
func FormatAlert(a AlertAggregate) string {
	return fmt.Sprintf("Weather station \"%s\" reported %d alert(s) between %s°C and %s°C from %s to %s.",
		a.StationName,
		a.Count,
		formatTemp(a.MinTemp),
		formatTemp(a.MaxTemp),
		truncateTimestamp(a.MinDateTime),
		truncateTimestamp(a.MaxDateTime),
	)
}

func formatTemp(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%.1f", v)
	}
	return fmt.Sprintf("%g", v)
}

// truncateTimestamp drops fractional seconds and zone suffixes
func truncateTimestamp(s string) string {
	const width = len("2006-01-02 15:04:05")
	if len(s) > width {
		return s[:width]
	}
	return s
}

// AlertHandler publishes one notification per Kinesis alert record
type AlertHandler struct {
	publisher Publisher
}

// NewAlertHandler creates an AlertHandler
func NewAlertHandler(publisher Publisher) *AlertHandler {
	return &AlertHandler{publisher: publisher}
}

// HandleKinesisEvent decodes every record and publishes its alert text. The
// first decode or publish failure stops the batch so Kinesis retries it.
func (h *AlertHandler) HandleKinesisEvent(ctx context.Context, event events.KinesisEvent) error {
	for _, record := range event.Records {
		var agg AlertAggregate
		if err := json.Unmarshal(record.Kinesis.Data, &agg); err != nil {
			return fmt.Errorf("failed to decode alert record %s: %w", record.EventID, err)
		}
		if err := h.publisher.Publish(ctx, FormatAlert(agg)); err != nil {
			return fmt.Errorf("failed to publish alert for %s: %w", agg.StationName, err)
		}
	}
	return nil
}
