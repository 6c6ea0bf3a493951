package nudges

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/referrush/csdash/internal/backend"
)

// WriteLogsCSV serialises nudge logs to CSV.
func WriteLogsCSV(w io.Writer, logs []backend.NudgeLog) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"ID", "Touchpoint", "Channel", "Sent At", "Success", "Error"}); err != nil {
		return err
	}
	for _, l := range logs {
		if err := writer.Write([]string{
			l.ID,
			TouchpointLabel(l.Touchpoint),
			l.Channel,
			l.SentAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(l.Success),
			l.ErrorMessage,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
