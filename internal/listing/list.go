// Package listing prints the score store for the CLI.
package listing

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dyluth/standings/pkg/scoreboard"
)

// OutputFormat specifies how to format the score list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs one JSON object per entity
	OutputFormatJSONL OutputFormat = "jsonl"
)

// Store is the read side of the score store used for listing.
// *scoreboard.Client implements it.
type Store interface {
	TopK(ctx context.Context, k int) ([]scoreboard.Entry, error)
	LastActivity(ctx context.Context, entityID string) (time.Time, error)
}

// Row is one listed entity.
type Row struct {
	Rank         int    `json:"rank"`
	EntityID     string `json:"entity_id"`
	Score        int64  `json:"score"`
	LastActiveMs int64  `json:"last_active_ms,omitempty"`
}

// FilterCriteria defines filtering options for the scores command.
// All filters are ANDed together.
type FilterCriteria struct {
	MinScore      int64  // 0 = no filter
	IDGlob        string // Glob pattern for entity id, empty = no filter
	ActiveSinceMs int64  // Unix timestamp in milliseconds, 0 = no filter
}

// matchesFilter returns true if the row matches all filter criteria.
func (fc *FilterCriteria) matchesFilter(r Row) bool {
	if fc.MinScore > 0 && r.Score < fc.MinScore {
		return false
	}

	if fc.IDGlob != "" {
		matched, err := filepath.Match(fc.IDGlob, r.EntityID)
		if err != nil || !matched {
			return false
		}
	}

	if fc.ActiveSinceMs > 0 && r.LastActiveMs < fc.ActiveSinceMs {
		return false
	}

	return true
}

// ListScores reads the top k entities (k <= 0 means all), applies filters and
// writes them to w. Ranks are positions in the full ranking, before filtering.
func ListScores(ctx context.Context, store Store, instanceName string, k int, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	entries, err := store.TopK(ctx, k)
	if err != nil {
		return fmt.Errorf("failed to read scores: %w", err)
	}

	rows := make([]Row, 0, len(entries))
	for i, e := range entries {
		row := Row{Rank: i + 1, EntityID: e.EntityID, Score: e.Score}

		last, err := store.LastActivity(ctx, e.EntityID)
		switch {
		case err == nil:
			row.LastActiveMs = last.UnixMilli()
		case !scoreboard.IsNotFound(err):
			return fmt.Errorf("failed to read activity of %s: %w", e.EntityID, err)
		}

		if filters != nil && !filters.matchesFilter(row) {
			continue
		}
		rows = append(rows, row)
	}

	switch format {
	case OutputFormatDefault:
		FormatTable(w, rows, instanceName, time.Now())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, rows); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
