package insights

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteSuccessCSV emits the per-touchpoint adoption and the per-customer
// breakdown of a report as CSV.
func WriteSuccessCSV(w io.Writer, report SuccessReport) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Section", "Key", "Name", "Percent", "Tier"}); err != nil {
		return err
	}
	if err := writer.Write([]string{"overall", "", "Overall", formatPercent(report.Overall), string(report.OverallTier)}); err != nil {
		return err
	}
	for _, rate := range report.Rates {
		if err := writer.Write([]string{"touchpoint", rate.Key, rate.Label, formatPercent(rate.Percent), ""}); err != nil {
			return err
		}
	}
	for _, row := range report.Breakdown {
		if err := writer.Write([]string{"customer", row.CustomerID, row.Name, formatPercent(row.Rate), string(row.Tier)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
