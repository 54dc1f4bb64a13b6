package shaper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEpochFormatConvertsMetaTimestamps(t *testing.T) {
	doc := map[string]interface{}{
		"meta": map[string]interface{}{
			"created":      "2024-01-15T10:00:00Z",
			"lastModified": "2024-01-16T11:30:00Z",
		},
	}
	cfg := DefaultConfig()
	cfg.MetaDatetimeFormat = "epoch"
	Apply(doc, cfg, true)

	meta := doc["meta"].(map[string]interface{})
	created, ok := meta["created"].(int64)
	require.True(t, ok)
	assert.Positive(t, created)
}

func TestApplyDefaultLeavesRFC3339Timestamps(t *testing.T) {
	doc := map[string]interface{}{
		"meta": map[string]interface{}{"created": "2024-01-15T10:00:00Z"},
	}
	Apply(doc, DefaultConfig(), true)
	meta := doc["meta"].(map[string]interface{})
	assert.Equal(t, "2024-01-15T10:00:00Z", meta["created"])
}

func TestApplyIncludeUserGroupsFalseDropsGroupsOnUserOnly(t *testing.T) {
	doc := map[string]interface{}{"groups": []interface{}{map[string]interface{}{"value": "g1"}}}
	cfg := DefaultConfig()
	cfg.IncludeUserGroups = false

	userDoc := map[string]interface{}{"groups": doc["groups"]}
	Apply(userDoc, cfg, true)
	assert.NotContains(t, userDoc, "groups", "expected groups to be dropped from a User response")

	groupDoc := map[string]interface{}{"groups": doc["groups"]}
	Apply(groupDoc, cfg, false)
	assert.Contains(t, groupDoc, "groups", "include_user_groups must not affect Group responses")
}

func TestApplyShowEmptyGroupsMembersFalseOmitsEmptyArrays(t *testing.T) {
	doc := map[string]interface{}{
		"members": []interface{}{},
		"groups":  []interface{}{map[string]interface{}{"value": "g1"}},
	}
	cfg := DefaultConfig()
	cfg.ShowEmptyGroupsMembers = false
	Apply(doc, cfg, false)

	assert.NotContains(t, doc, "members", "expected empty members to be omitted")
	assert.Contains(t, doc, "groups", "expected non-empty groups to survive")
}
