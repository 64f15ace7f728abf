package scoreboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so
// several standings deployments can share one Redis server.

// ScoresKey returns the ZSET holding cumulative entity scores.
// Pattern: standings:{instance_name}:scores
func ScoresKey(instanceName string) string {
	return fmt.Sprintf("standings:%s:scores", instanceName)
}

// ActivityKey returns the hash of entity last-event times.
// Pattern: standings:{instance_name}:activity
func ActivityKey(instanceName string) string {
	return fmt.Sprintf("standings:%s:activity", instanceName)
}

// BurstKey returns the rolling burst counter for one entity.
// Pattern: standings:{instance_name}:burst:{entity_id}
func BurstKey(instanceName, entityID string) string {
	return fmt.Sprintf("standings:%s:burst:%s", instanceName, entityID)
}

// GroupsKey returns the hash of archived group totals.
// The group id is a hash field, never part of a key name.
// Pattern: standings:{instance_name}:groups
func GroupsKey(instanceName string) string {
	return fmt.Sprintf("standings:%s:groups", instanceName)
}

// ReceiptKey returns the archive receipt hash for a cycle invocation.
// Pattern: standings:{instance_name}:receipt:{invocation_id}
func ReceiptKey(instanceName, invocationID string) string {
	return fmt.Sprintf("standings:%s:receipt:%s", instanceName, invocationID)
}

// ClearedKey returns the set of entities already cleared by a cycle invocation.
// Pattern: standings:{instance_name}:cleared:{invocation_id}
func ClearedKey(instanceName, invocationID string) string {
	return fmt.Sprintf("standings:%s:cleared:%s", instanceName, invocationID)
}

// OnceKey returns the marker key for a one-shot step of a cycle invocation.
// Pattern: standings:{instance_name}:once:{invocation_id}:{step}
func OnceKey(instanceName, invocationID, step string) string {
	return fmt.Sprintf("standings:%s:once:%s:%s", instanceName, invocationID, step)
}

// ScheduleKey returns the persisted state hash for a named cycle.
// Pattern: standings:{instance_name}:schedule:{cycle_name}
func ScheduleKey(instanceName, cycleName string) string {
	return fmt.Sprintf("standings:%s:schedule:%s", instanceName, cycleName)
}

// ArtifactKey returns the current-artifact pointer for a display channel.
// Pattern: standings:{instance_name}:artifact:{channel}
func ArtifactKey(instanceName, channel string) string {
	return fmt.Sprintf("standings:%s:artifact:%s", instanceName, channel)
}

// ArtifactPayloadKey returns the key holding a published artifact's bytes.
// Pattern: standings:{instance_name}:artifact_payload:{ref}
func ArtifactPayloadKey(instanceName, ref string) string {
	return fmt.Sprintf("standings:%s:artifact_payload:%s", instanceName, ref)
}

// GroupComparisonKey returns the key holding the last announced comparison.
// Pattern: standings:{instance_name}:group_comparison:last
func GroupComparisonKey(instanceName string) string {
	return fmt.Sprintf("standings:%s:group_comparison:last", instanceName)
}

// ArtifactEventsChannel returns the Pub/Sub channel for artifact publish/retire events.
// Pattern: standings:{instance_name}:artifact_events
func ArtifactEventsChannel(instanceName string) string {
	return fmt.Sprintf("standings:%s:artifact_events", instanceName)
}

// GroupEventsChannel returns the Pub/Sub channel for group comparison announcements.
// Pattern: standings:{instance_name}:group_events
func GroupEventsChannel(instanceName string) string {
	return fmt.Sprintf("standings:%s:group_events", instanceName)
}
