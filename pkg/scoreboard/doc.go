// Package scoreboard provides the Redis-backed durable state for standings.
//
// # Overview
//
// The scoreboard is the single source of truth for everything the engine must
// not lose across restarts: cumulative entity scores, last-activity times,
// archived group totals, reset receipts, scheduler state and the pointer to the
// currently published ranking artifact. Directory metadata is deliberately not
// stored here; it is a disposable cache owned by the directory package.
//
// # Atomicity
//
// Every mutation is atomic per record. Increments use ZINCRBY; operations that
// read-modify-write more than one key (activity upserts, archiving, clearing)
// run as Lua scripts so concurrent ingestion never observes a half-applied
// change and never needs a global lock.
//
// # Idempotency
//
// Reset work is keyed by a cycle invocation id. Archiving an entity writes a
// receipt with HSETNX before touching the group total, and clearing records the
// entity in a per-invocation set before subtracting. Replaying the same
// invocation is therefore a no-op for every entity it already handled.
//
// # Redis Schema
//
// All keys follow the pattern: standings:{instance_name}:{entity}
//
//	Scores:          standings:{instance}:scores                 (ZSET member=entity score=points)
//	Activity:        standings:{instance}:activity               (HASH entity -> unix ms)
//	Burst counters:  standings:{instance}:burst:{entity}         (STRING counter with TTL)
//	Group totals:    standings:{instance}:groups                 (HASH group -> points)
//	Receipts:        standings:{instance}:receipt:{invocation}   (HASH entity -> "amount|group")
//	Cleared sets:    standings:{instance}:cleared:{invocation}   (SET entity)
//	Schedule state:  standings:{instance}:schedule:{cycle}       (HASH)
//	Artifacts:       standings:{instance}:artifact:{channel}     (HASH current pointer)
//	Payloads:        standings:{instance}:artifact_payload:{ref} (STRING)
//
// Pub/Sub channels: standings:{instance}:{event_type}_events
package scoreboard
