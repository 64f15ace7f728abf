package scoreboard

import (
	"strings"
	"testing"
)

func TestKeyHelpers(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"scores", ScoresKey("default-1"), "standings:default-1:scores"},
		{"activity", ActivityKey("default-1"), "standings:default-1:activity"},
		{"burst", BurstKey("default-1", "u1"), "standings:default-1:burst:u1"},
		{"groups", GroupsKey("default-1"), "standings:default-1:groups"},
		{"receipt", ReceiptKey("default-1", "reset:100"), "standings:default-1:receipt:reset:100"},
		{"cleared", ClearedKey("default-1", "reset:100"), "standings:default-1:cleared:reset:100"},
		{"once", OnceKey("default-1", "groups:1", "announce"), "standings:default-1:once:groups:1:announce"},
		{"schedule", ScheduleKey("default-1", "reset"), "standings:default-1:schedule:reset"},
		{"artifact", ArtifactKey("default-1", "lb"), "standings:default-1:artifact:lb"},
		{"payload", ArtifactPayloadKey("default-1", "r1"), "standings:default-1:artifact_payload:r1"},
		{"comparison", GroupComparisonKey("default-1"), "standings:default-1:group_comparison:last"},
		{"artifact events", ArtifactEventsChannel("default-1"), "standings:default-1:artifact_events"},
		{"group events", GroupEventsChannel("default-1"), "standings:default-1:group_events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, expected %q", tt.got, tt.expected)
			}
			if !strings.HasPrefix(tt.got, "standings:default-1:") {
				t.Errorf("key %q is not namespaced by instance", tt.got)
			}
		})
	}
}

func TestInstanceIsolation(t *testing.T) {
	if ScoresKey("a") == ScoresKey("b") {
		t.Error("different instances must not share the scores key")
	}
	if GroupsKey("a") == GroupsKey("b") {
		t.Error("different instances must not share the groups key")
	}
}
