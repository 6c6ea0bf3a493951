package audit

import (
	"encoding/csv"
	"io"
	"time"
)

// WriteCSV writes timeline rows with a header line.
func WriteCSV(w io.Writer, rows []TimelineRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"At", "Actor", "Action", "Customer", "Summary"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.At.UTC().Format(time.RFC3339), row.Actor, row.Action, row.CustomerID, row.Summary}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
