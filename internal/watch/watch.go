// Package watch streams artifact and group events for the CLI and polls for
// artifact publication.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/standings/pkg/scoreboard"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable, one line per event.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON.
	OutputFormatJSON OutputFormat = "json"
)

// Formatter writes events.
type Formatter interface {
	FormatArtifact(event *scoreboard.ArtifactEvent) error
	FormatComparison(cmp *scoreboard.GroupComparison) error
}

// NewFormatter returns the formatter for format.
func NewFormatter(w io.Writer, format OutputFormat) (Formatter, error) {
	switch format {
	case OutputFormatDefault, "":
		return &defaultFormatter{writer: w}, nil
	case OutputFormatJSON:
		return &jsonFormatter{writer: w}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatArtifact(event *scoreboard.ArtifactEvent) error {
	ts := time.UnixMilli(event.AtMs).UTC().Format("15:04:05")
	var err error
	switch event.Kind {
	case scoreboard.ArtifactPublished:
		_, err = fmt.Fprintf(f.writer, "[%s] 📊 Ranking published on %s: ref=%s\n", ts, event.Channel, event.Ref)
	case scoreboard.ArtifactRetired:
		_, err = fmt.Fprintf(f.writer, "[%s] 🗑️  Ranking retired on %s: ref=%s\n", ts, event.Channel, event.Ref)
	default:
		_, err = fmt.Fprintf(f.writer, "[%s] Artifact event %q on %s: ref=%s\n", ts, event.Kind, event.Channel, event.Ref)
	}
	return err
}

func (f *defaultFormatter) FormatComparison(cmp *scoreboard.GroupComparison) error {
	ts := cmp.AnnouncedAt.UTC().Format("15:04:05")

	totals := make([]string, 0, len(cmp.Totals))
	for _, t := range cmp.Totals {
		totals = append(totals, fmt.Sprintf("%s=%d", t.GroupID, t.Total))
	}

	var err error
	switch {
	case cmp.Tie:
		_, err = fmt.Fprintf(f.writer, "[%s] 🤝 Groups tied (%s): %s\n", ts, cmp.InvocationID, strings.Join(totals, ", "))
	case cmp.Winner != "":
		_, err = fmt.Fprintf(f.writer, "[%s] 🏆 Group %s wins (%s): %s\n", ts, cmp.Winner, cmp.InvocationID, strings.Join(totals, ", "))
	case len(totals) > 0:
		_, err = fmt.Fprintf(f.writer, "[%s] Group comparison %s: no points scored: %s\n", ts, cmp.InvocationID, strings.Join(totals, ", "))
	default:
		_, err = fmt.Fprintf(f.writer, "[%s] Group comparison %s: no group scores\n", ts, cmp.InvocationID)
	}
	return err
}

type jsonFormatter struct {
	writer io.Writer
}

type jsonLine struct {
	Type  string      `json:"type"`
	Event interface{} `json:"event"`
}

func (f *jsonFormatter) FormatArtifact(event *scoreboard.ArtifactEvent) error {
	return f.write(jsonLine{Type: "artifact", Event: event})
}

func (f *jsonFormatter) FormatComparison(cmp *scoreboard.GroupComparison) error {
	return f.write(jsonLine{Type: "group_comparison", Event: cmp})
}

func (f *jsonFormatter) write(line jsonLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(f.writer, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

// EventSource provides the instance's event subscriptions.
// *scoreboard.Client implements it.
type EventSource interface {
	SubscribeArtifactEvents(ctx context.Context) (*scoreboard.Subscription[scoreboard.ArtifactEvent], error)
	SubscribeGroupEvents(ctx context.Context) (*scoreboard.Subscription[scoreboard.GroupComparison], error)
}

// Stream writes every artifact and group event through f until ctx is
// cancelled. Malformed messages are reported on errOut and skipped.
func Stream(ctx context.Context, src EventSource, f Formatter, errOut io.Writer) error {
	artifacts, err := src.SubscribeArtifactEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to artifact events: %w", err)
	}
	defer artifacts.Close()

	comparisons, err := src.SubscribeGroupEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to group events: %w", err)
	}
	defer comparisons.Close()

	artifactErrs, comparisonErrs := artifacts.Errors(), comparisons.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-artifacts.Events():
			if !ok {
				return nil
			}
			if err := f.FormatArtifact(event); err != nil {
				return err
			}

		case cmp, ok := <-comparisons.Events():
			if !ok {
				return nil
			}
			if err := f.FormatComparison(cmp); err != nil {
				return err
			}

		case err, ok := <-artifactErrs:
			if !ok {
				artifactErrs = nil
				continue
			}
			fmt.Fprintf(errOut, "warning: %v\n", err)

		case err, ok := <-comparisonErrs:
			if !ok {
				comparisonErrs = nil
				continue
			}
			fmt.Fprintf(errOut, "warning: %v\n", err)
		}
	}
}

// PointerReader reads the current artifact pointer of a channel.
type PointerReader interface {
	GetCurrentArtifact(ctx context.Context, channel string) (*scoreboard.ArtifactPointer, error)
}

// PollForArtifact polls until the channel's current artifact was published
// after the given time. Polls every 200ms for the specified timeout duration.
func PollForArtifact(ctx context.Context, client PointerReader, channel string, after time.Time, timeout time.Duration) (*scoreboard.ArtifactPointer, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for artifact on %s after %v", channel, timeout)

		case <-ticker.C:
			pointer, err := client.GetCurrentArtifact(ctx, channel)
			if err != nil {
				if scoreboard.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to query current artifact: %w", err)
			}
			if pointer.PublishedAt.After(after) {
				return pointer, nil
			}
		}
	}
}
