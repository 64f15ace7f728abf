package scoreboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entry is one entity's cumulative score as stored in the scores ZSET.
type Entry struct {
	EntityID string `json:"entity_id"`
	Score    int64  `json:"score"`
}

// ActivityResult is returned by RecordActivity.
// Previous is the zero time when the entity had no recorded activity.
type ActivityResult struct {
	Previous   time.Time // Last event time before this call
	BurstCount int64     // Events seen in the current burst window, including this one
}

// GroupTotal is the accumulated archived score of one group.
type GroupTotal struct {
	GroupID string `json:"group_id"`
	Total   int64  `json:"total"`
}

// Receipt records that an entity's score was archived by a cycle invocation.
// GroupID is empty for entities that belong to no group; they are cleared
// with the reset but add nothing to any group total.
type Receipt struct {
	EntityID string `json:"entity_id"`
	GroupID  string `json:"group_id"`
	Amount   int64  `json:"amount"`
}

// Validate checks the receipt can be written.
func (r Receipt) Validate() error {
	if r.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	if r.Amount < 0 {
		return fmt.Errorf("amount must be >= 0, got %d", r.Amount)
	}
	if strings.Contains(r.GroupID, "|") {
		return fmt.Errorf("group_id must not contain '|': %q", r.GroupID)
	}
	return nil
}

// encodeReceiptValue produces the hash value stored per entity: "amount|group".
func encodeReceiptValue(amount int64, groupID string) string {
	return strconv.FormatInt(amount, 10) + "|" + groupID
}

// decodeReceiptValue parses a value written by encodeReceiptValue or the archive script.
func decodeReceiptValue(entityID, value string) (Receipt, error) {
	amountStr, groupID, _ := strings.Cut(value, "|")
	amount, err := strconv.ParseInt(amountStr, 10, 64)
	if err != nil {
		return Receipt{}, fmt.Errorf("invalid receipt amount for %s: %w", entityID, err)
	}
	return Receipt{EntityID: entityID, GroupID: groupID, Amount: amount}, nil
}

// ScheduleState is the durable state of one named cycle.
// LastFiredAt is the zero time until the cycle has completed successfully once.
type ScheduleState struct {
	Cycle         string    `json:"cycle"`
	LastFiredAt   time.Time `json:"last_fired_at"`
	InitializedAt time.Time `json:"initialized_at"`
}

// HasFired reports whether the cycle ever completed successfully.
func (s *ScheduleState) HasFired() bool {
	return s != nil && !s.LastFiredAt.IsZero()
}

// ArtifactPointer identifies the artifact currently published on a display channel.
type ArtifactPointer struct {
	Channel      string    `json:"channel"`
	Fingerprint  string    `json:"fingerprint"`
	PayloadRef   string    `json:"payload_ref"`
	PublishedRef string    `json:"published_ref"`
	PublishedAt  time.Time `json:"published_at"`
}

// ArtifactEventKind distinguishes publish and retire events.
type ArtifactEventKind string

const (
	// ArtifactPublished is emitted after a new artifact payload is stored.
	ArtifactPublished ArtifactEventKind = "published"

	// ArtifactRetired is emitted after an artifact payload is removed.
	ArtifactRetired ArtifactEventKind = "retired"
)

// ArtifactEvent is the Pub/Sub message the chat layer consumes to post or
// delete the rendered ranking.
type ArtifactEvent struct {
	Kind    ArtifactEventKind `json:"kind"`
	Channel string            `json:"channel"`
	Ref     string            `json:"ref"`
	AtMs    int64             `json:"at_ms"`
}

// GroupComparison is the result announced by the group cycle.
type GroupComparison struct {
	InvocationID string       `json:"invocation_id"`
	Totals       []GroupTotal `json:"totals"` // Sorted by total desc, group id asc
	Winner       string       `json:"winner,omitempty"`
	Tie          bool         `json:"tie"`
	AnnouncedAt  time.Time    `json:"announced_at"`
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func timeToMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
