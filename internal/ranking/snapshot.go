// Package ranking computes ordered top-K views of the score store along with
// a content fingerprint, so consumers can tell whether the ranking changed
// without comparing entries.
package ranking

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dyluth/standings/pkg/scoreboard"
	"github.com/zeebo/blake3"
)

// fingerprintKey separates ranking fingerprints from any other BLAKE3 use.
// ASCII "standings.ranking.snapshot", zero-padded to 32 bytes.
var fingerprintKey = [32]byte{
	's', 't', 'a', 'n', 'd', 'i', 'n', 'g', 's', '.', 'r', 'a', 'n', 'k', 'i', 'n',
	'g', '.', 's', 'n', 'a', 'p', 's', 'h', 'o', 't', 0, 0, 0, 0, 0, 0,
}

// Source supplies ordered entries: score descending, entity id ascending.
// *scoreboard.Client implements it.
type Source interface {
	TopK(ctx context.Context, k int) ([]scoreboard.Entry, error)
}

// Entry is one ranked position. Rank starts at 1.
type Entry struct {
	Rank     int    `json:"rank"`
	EntityID string `json:"entity_id"`
	Score    int64  `json:"score"`
}

// Snapshot is an immutable top-K view.
type Snapshot struct {
	Entries     []Entry   `json:"entries"`
	Fingerprint string    `json:"fingerprint"`
	TakenAt     time.Time `json:"taken_at"`
}

// Compute reads the top k entries (k <= 0 means all) and fingerprints them.
// The same store state always yields the same entries and fingerprint.
func Compute(ctx context.Context, src Source, k int, now time.Time) (*Snapshot, error) {
	raw, err := src.TopK(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("failed to read ranking: %w", err)
	}

	entries := make([]Entry, len(raw))
	for i, e := range raw {
		entries[i] = Entry{Rank: i + 1, EntityID: e.EntityID, Score: e.Score}
	}

	return &Snapshot{
		Entries:     entries,
		Fingerprint: Fingerprint(entries),
		TakenAt:     now,
	}, nil
}

// Fingerprint hashes the ordered (entity id, score) sequence.
// Ids are length-prefixed so no two sequences encode to the same bytes.
func Fingerprint(entries []Entry) string {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("ranking: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	var buf [8]byte
	for _, e := range entries {
		binary.BigEndian.PutUint64(buf[:], uint64(len(e.EntityID)))
		hasher.Write(buf[:])
		hasher.Write([]byte(e.EntityID))
		binary.BigEndian.PutUint64(buf[:], uint64(e.Score))
		hasher.Write(buf[:])
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// EntityIDs returns the snapshot's ids in rank order.
func (s *Snapshot) EntityIDs() []string {
	ids := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		ids[i] = e.EntityID
	}
	return ids
}

// Empty reports whether the snapshot has no entries.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Entries) == 0
}
