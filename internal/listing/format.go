package listing

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// FormatTable writes rows as a formatted table to the provided writer.
// The table includes columns: RANK, ENTITY, SCORE and LAST ACTIVE.
// Returns the number of rows formatted.
func FormatTable(w io.Writer, rows []Row, instanceName string, now time.Time) int {
	if len(rows) == 0 {
		fmt.Fprintf(w, "No scores found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Scores for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-6s %-24s %10s  %s\n", "RANK", "ENTITY", "SCORE", "LAST ACTIVE")
	fmt.Fprintf(w, "%-6s %-24s %10s  %s\n", "------", "------------------------", "----------", "-----------")

	for _, r := range rows {
		fmt.Fprintf(w, "%-6s %-24s %10d  %s\n",
			fmt.Sprintf("#%d", r.Rank),
			formatEntityID(r.EntityID),
			r.Score,
			formatTimestamp(r.LastActiveMs, now),
		)
	}

	countMsg := "entity"
	if len(rows) != 1 {
		countMsg = "entities"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(rows), countMsg)

	return len(rows)
}

// FormatJSONL writes rows as line-delimited JSON (JSONL) to the provided writer.
func FormatJSONL(w io.Writer, rows []Row) error {
	for _, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal row to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes v as pretty-printed JSON to the provided writer.
func FormatSingleJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)

	return nil
}

// formatEntityID truncates long ids for compact display.
func formatEntityID(id string) string {
	if len(id) > 24 {
		return id[:21] + "..."
	}
	return id
}

// formatTimestamp formats Unix milliseconds as time relative to now,
// e.g. "2m ago". Zero returns "-".
func formatTimestamp(timestampMs int64, now time.Time) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(timestampMs))

	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
