package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/iot-sensordata/stageload/internal/runstate"
	"github.com/iot-sensordata/stageload/internal/status"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderFields(w io.Writer, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// renderState writes the run state record
func renderState(w io.Writer, format, key string, state runstate.State) error {
	if format == outputJSON {
		return renderJSON(w, map[string]string{
			"key":   key,
			"kind":  state.Kind.String(),
			"jobId": state.JobID,
			"value": state.Encode(),
		})
	}
	return renderFields(w, [][]string{
		{"Key", key},
		{"Kind", state.Kind.String()},
		{"Job ID", state.JobID},
		{"Stored value", state.Encode()},
	})
}

// renderReport writes a run report, or a notice when there is none
func renderReport(w io.Writer, format string, report *status.RunReport) error {
	if report == nil {
		if format == outputJSON {
			return renderJSON(w, nil)
		}
		_, err := fmt.Fprintln(w, "No run recorded")
		return err
	}
	if format == outputJSON {
		return renderJSON(w, report)
	}

	finished := ""
	if report.FinishedAt != nil {
		finished = report.FinishedAt.Format(time.RFC3339)
	}
	return renderFields(w, [][]string{
		{"Run ID", report.RunID},
		{"Phase", string(report.Phase)},
		{"Message", report.Message},
		{"Started", report.StartedAt.Format(time.RFC3339)},
		{"Finished", finished},
		{"Duration", report.Duration().String()},
		{"Prior state", report.PriorState},
		{"Job status", report.JobStatus},
		{"Decision", report.Decision},
		{"Cleared", strconv.Itoa(report.ClearedCount)},
		{"Copied", strconv.Itoa(report.CopiedCount)},
		{"Staged", strconv.Itoa(report.StagedCount)},
		{"Submitted job", report.SubmittedJobID},
		{"Warning", report.Warning},
		{"Error", report.Error},
	})
}

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (table or json)", format)
	}
}
