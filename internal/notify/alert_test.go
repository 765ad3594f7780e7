package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/iot-sensordata/stageload/internal/notify"
	"github.com/iot-sensordata/stageload/internal/notify/mocks"
)

func TestFormatAlert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		agg      notify.AlertAggregate
		expected string
	}{
		{
			name: "fractional timestamps are truncated",
			agg: notify.AlertAggregate{
				StationName: "Harbour",
				Count:       3,
				MinTemp:     41.5,
				MaxTemp:     48,
				MinDateTime: "2024-06-01 12:00:00.000",
				MaxDateTime: "2024-06-01 12:04:59.999",
			},
			expected: `Weather station "Harbour" reported 3 alert(s) between 41.5°C and 48.0°C from 2024-06-01 12:00:00 to 2024-06-01 12:04:59.`,
		},
		{
			name: "short timestamps are kept",
			agg: notify.AlertAggregate{
				StationName: "Hill",
				Count:       1,
				MinTemp:     -30.25,
				MaxTemp:     -30.25,
				MinDateTime: "2024-06-01",
				MaxDateTime: "2024-06-01",
			},
			expected: `Weather station "Hill" reported 1 alert(s) between -30.25°C and -30.25°C from 2024-06-01 to 2024-06-01.`,
		},
		{
			name: "names are not escaped",
			agg: notify.AlertAggregate{
				StationName: `Pier "7" \ North`,
				Count:       1,
				MinTemp:     40,
				MaxTemp:     40,
				MinDateTime: "2024-06-01 12:00:00",
				MaxDateTime: "2024-06-01 12:00:00",
			},
			expected: `Weather station "Pier "7" \ North" reported 1 alert(s) between 40.0°C and 40.0°C from 2024-06-01 12:00:00 to 2024-06-01 12:00:00.`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, notify.FormatAlert(tt.agg))
		})
	}
}

func kinesisRecord(id, data string) events.KinesisEventRecord {
	return events.KinesisEventRecord{
		EventID: id,
		Kinesis: events.KinesisRecord{Data: []byte(data)},
	}
}

func TestAlertHandler_HandleKinesisEvent(t *testing.T) {
	t.Parallel()

	agg := `{"weatherstationname":"Harbour","msg_count":2,"min_temp":40,"max_temp":42.5,` +
		`"min_datetime":"2024-06-01 12:00:00.000","max_datetime":"2024-06-01 12:01:00.000"}`

	t.Run("publishes each record", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		pub := mocks.NewMockPublisher(ctrl)
		pub.EXPECT().
			Publish(gomock.Any(), `Weather station "Harbour" reported 2 alert(s) between 40.0°C and 42.5°C from 2024-06-01 12:00:00 to 2024-06-01 12:01:00.`).
			Return(nil).
			Times(2)

		err := notify.NewAlertHandler(pub).HandleKinesisEvent(context.Background(), events.KinesisEvent{
			Records: []events.KinesisEventRecord{
				kinesisRecord("e-1", agg),
				kinesisRecord("e-2", agg),
			},
		})
		assert.NoError(t, err)
	})

	t.Run("undecodable record fails the batch", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		pub := mocks.NewMockPublisher(ctrl)
		pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		err := notify.NewAlertHandler(pub).HandleKinesisEvent(context.Background(), events.KinesisEvent{
			Records: []events.KinesisEventRecord{
				kinesisRecord("e-1", agg),
				kinesisRecord("e-2", "garbage"),
				kinesisRecord("e-3", agg),
			},
		})
		assert.ErrorContains(t, err, "e-2")
	})

	t.Run("publish failure stops the batch", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		pub := mocks.NewMockPublisher(ctrl)
		pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("sns down")).Times(1)

		err := notify.NewAlertHandler(pub).HandleKinesisEvent(context.Background(), events.KinesisEvent{
			Records: []events.KinesisEventRecord{
				kinesisRecord("e-1", agg),
				kinesisRecord("e-2", agg),
			},
		})
		assert.ErrorContains(t, err, "Harbour")
	})
}
