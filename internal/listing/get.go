package listing

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/standings/pkg/scoreboard"
)

// Detail is everything the store knows about one entity.
type Detail struct {
	EntityID     string     `json:"entity_id"`
	Score        int64      `json:"score"`
	Rank         int        `json:"rank,omitempty"` // 0 when the entity has no score
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

// GetEntity writes one entity's detail as pretty-printed JSON.
// Returns an EntityNotFoundError if the entity has neither a score nor any
// recorded activity.
func GetEntity(ctx context.Context, store Store, entityID string, w io.Writer) error {
	if entityID == "" {
		return fmt.Errorf("entity id cannot be empty")
	}

	entries, err := store.TopK(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to read scores: %w", err)
	}

	detail := Detail{EntityID: entityID}
	for i, e := range entries {
		if e.EntityID == entityID {
			detail.Score = e.Score
			detail.Rank = i + 1
			break
		}
	}

	last, err := store.LastActivity(ctx, entityID)
	if err == nil {
		last = last.UTC()
		detail.LastActiveAt = &last
	} else if !scoreboard.IsNotFound(err) {
		return fmt.Errorf("failed to read activity: %w", err)
	}

	if detail.Rank == 0 && detail.LastActiveAt == nil {
		return &EntityNotFoundError{EntityID: entityID}
	}

	if err := FormatSingleJSON(w, detail); err != nil {
		return fmt.Errorf("failed to format entity: %w", err)
	}
	return nil
}

// EntityNotFoundError represents a specific "entity not found" error.
// This allows callers to distinguish not-found errors from other failures.
type EntityNotFoundError struct {
	EntityID string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity '%s' has no score or activity", e.EntityID)
}

// IsNotFound returns true if the error is an EntityNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*EntityNotFoundError)
	return ok
}
