package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iot-sensordata/stageload/internal/loadjob"
	"github.com/iot-sensordata/stageload/internal/runstate"
)

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		state     runstate.State
		jobStatus loadjob.Status
		expected  Action
	}{
		{
			name:     "fresh start stages",
			state:    runstate.Fresh(),
			expected: ActionStage,
		},
		{
			name:     "in progress stages without clearing",
			state:    runstate.InProgress(),
			expected: ActionStage,
		},
		{
			name:      "in progress ignores job status",
			state:     runstate.InProgress(),
			jobStatus: loadjob.StatusSucceeded,
			expected:  ActionStage,
		},
		{
			name:      "succeeded clears and stages",
			state:     runstate.Submitted("q-1"),
			jobStatus: loadjob.StatusSucceeded,
			expected:  ActionClearAndStage,
		},
		{
			name:      "failed stages without clearing",
			state:     runstate.Submitted("q-1"),
			jobStatus: loadjob.StatusFailed,
			expected:  ActionStage,
		},
		{
			name:      "cancelled stages without clearing",
			state:     runstate.Submitted("q-1"),
			jobStatus: loadjob.StatusCancelled,
			expected:  ActionStage,
		},
		{
			name:      "queued does nothing",
			state:     runstate.Submitted("q-1"),
			jobStatus: loadjob.StatusQueued,
			expected:  ActionNone,
		},
		{
			name:      "running does nothing",
			state:     runstate.Submitted("q-1"),
			jobStatus: loadjob.StatusRunning,
			expected:  ActionNone,
		},
		{
			name:      "unknown does nothing",
			state:     runstate.Submitted("q-1"),
			jobStatus: loadjob.StatusUnknown,
			expected:  ActionNone,
		},
		{
			name:      "empty status does nothing",
			state:     runstate.Submitted("q-1"),
			jobStatus: "",
			expected:  ActionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Decide(tt.state, tt.jobStatus))
		})
	}
}

func TestAction(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", ActionNone.String())
	assert.Equal(t, "stage", ActionStage.String())
	assert.Equal(t, "clear_and_stage", ActionClearAndStage.String())
	assert.Equal(t, "action(7)", Action(7).String())

	assert.False(t, ActionNone.Stages())
	assert.False(t, ActionNone.ClearsStaging())
	assert.True(t, ActionStage.Stages())
	assert.False(t, ActionStage.ClearsStaging())
	assert.True(t, ActionClearAndStage.Stages())
	assert.True(t, ActionClearAndStage.ClearsStaging())
}
