package display

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Row is one enriched line of the rendered ranking.
type Row struct {
	Rank        int
	EntityID    string
	DisplayName string
	AvatarURL   string
	Score       int64
}

// Renderer turns enriched rows into the artifact payload.
type Renderer interface {
	Render(rows []Row) ([]byte, error)
}

// TableRenderer renders the ranking as a plain-text table.
type TableRenderer struct {
	Title string
}

// Render implements Renderer.
func (r TableRenderer) Render(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	if r.Title != "" {
		fmt.Fprintf(&buf, "%s\n", r.Title)
	}

	if len(rows) == 0 {
		buf.WriteString("No scores yet.\n")
		return buf.Bytes(), nil
	}

	table := tablewriter.NewWriter(&buf)
	table.Header("Rank", "Name", "Points")
	for _, row := range rows {
		if err := table.Append([]string{
			"#" + strconv.Itoa(row.Rank),
			row.DisplayName,
			strconv.FormatInt(row.Score, 10),
		}); err != nil {
			return nil, fmt.Errorf("failed to add row %d: %w", row.Rank, err)
		}
	}
	if err := table.Render(); err != nil {
		return nil, fmt.Errorf("failed to render ranking table: %w", err)
	}
	return buf.Bytes(), nil
}
