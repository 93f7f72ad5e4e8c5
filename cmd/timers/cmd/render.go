package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/psantana5/timers/pkg/metrics"
	"github.com/psantana5/timers/pkg/timers"
)

type timerRow struct {
	Name           string  `json:"name"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Running        bool    `json:"running"`
}

func timerRows(flushed *timers.Timers) []timerRow {
	rows := make([]timerRow, 0, flushed.Len())
	flushed.Each(func(name string, sw timers.Stopwatch) {
		rows = append(rows, timerRow{
			Name:           name,
			ElapsedSeconds: sw.Elapsed().Seconds(),
			Running:        sw.IsRunning(),
		})
	})
	return rows
}

// renderTimers writes the flushed timers in the requested format. The prom
// format needs the collector that observed the report.
func renderTimers(w io.Writer, format string, flushed *timers.Timers, collector *metrics.TimerCollector) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(timerRows(flushed))

	case "prom":
		if collector == nil {
			return fmt.Errorf("prom output requires metrics.enabled")
		}
		return collector.WriteText(w)

	case "table", "":
		table := tablewriter.NewWriter(w)
		table.Header("Timer", "Elapsed", "State")
		for _, row := range timerRows(flushed) {
			state := "stopped"
			if row.Running {
				state = "running"
			}
			if err := table.Append(row.Name, fmt.Sprintf("%.3fs", row.ElapsedSeconds), state); err != nil {
				return err
			}
		}
		return table.Render()

	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
