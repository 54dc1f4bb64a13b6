package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scimbridge/tenant-scim/internal/schema"
)

func apply(t *testing.T, doc map[string]interface{}, op, path string, value interface{}) {
	t.Helper()
	err := Apply(doc, Operation{Op: op, Path: path, Value: value}, schema.ResourceUser, DefaultCompatibilityConfig())
	require.NoError(t, err, "Apply(%s, %q)", op, path)
}

func TestReplaceSimpleAttribute(t *testing.T) {
	doc := map[string]interface{}{"displayName": "Old"}
	apply(t, doc, "replace", "displayName", "New")
	assert.Equal(t, "New", doc["displayName"])
}

func TestReplaceNestedAttribute(t *testing.T) {
	doc := map[string]interface{}{"name": map[string]interface{}{"givenName": "Bob"}}
	apply(t, doc, "replace", "name.givenName", "Robert")
	name := doc["name"].(map[string]interface{})
	assert.Equal(t, "Robert", name["givenName"])
}

func TestAddAppendsToMultiValuedAttribute(t *testing.T) {
	doc := map[string]interface{}{
		"emails": []interface{}{map[string]interface{}{"value": "a@example.com", "type": "work"}},
	}
	apply(t, doc, "add", "emails", []interface{}{map[string]interface{}{"value": "b@example.com", "type": "home"}})
	emails := doc["emails"].([]interface{})
	assert.Len(t, emails, 2)
}

func TestRemoveAttribute(t *testing.T) {
	doc := map[string]interface{}{"nickName": "Bobby"}
	apply(t, doc, "remove", "nickName", nil)
	assert.NotContains(t, doc, "nickName")
}

func TestRemoveRequiresPath(t *testing.T) {
	doc := map[string]interface{}{"nickName": "Bobby"}
	err := Apply(doc, Operation{Op: "remove", Path: ""}, schema.ResourceUser, DefaultCompatibilityConfig())
	assert.Error(t, err, "expected error for remove without path")
}

func TestAddWithNoPathMergesObject(t *testing.T) {
	doc := map[string]interface{}{"userName": "bjensen"}
	apply(t, doc, "add", "", map[string]interface{}{"title": "Manager", "active": true})
	assert.Equal(t, "Manager", doc["title"])
	assert.Equal(t, true, doc["active"])
}

func TestReplaceEmptyArrayClearsAttributeByDefault(t *testing.T) {
	doc := map[string]interface{}{
		"emails": []interface{}{map[string]interface{}{"value": "a@example.com"}},
	}
	apply(t, doc, "replace", "emails", []interface{}{})
	assert.NotContains(t, doc, "emails")
}

func TestReplaceEmptyArrayRejectedWhenToggleDisabled(t *testing.T) {
	doc := map[string]interface{}{
		"emails": []interface{}{map[string]interface{}{"value": "a@example.com"}},
	}
	compat := CompatibilityConfig{SupportPatchReplaceEmptyArray: false, SupportPatchReplaceEmptyValue: false}
	err := Apply(doc, Operation{Op: "replace", Path: "emails", Value: []interface{}{}}, schema.ResourceUser, compat)
	assert.Error(t, err, "expected error when empty-array replace is disabled")
}

func TestReplaceEmptyValuePatternRequiresToggle(t *testing.T) {
	doc := map[string]interface{}{
		"emails": []interface{}{map[string]interface{}{"value": "a@example.com"}},
	}
	pattern := []interface{}{map[string]interface{}{"value": ""}}

	err := Apply(doc, Operation{Op: "replace", Path: "emails", Value: pattern}, schema.ResourceUser, DefaultCompatibilityConfig())
	assert.Error(t, err, "expected rejection by default (toggle defaults to false)")

	compat := CompatibilityConfig{SupportPatchReplaceEmptyArray: true, SupportPatchReplaceEmptyValue: true}
	require.NoError(t, Apply(doc, Operation{Op: "replace", Path: "emails", Value: pattern}, schema.ResourceUser, compat))
	assert.NotContains(t, doc, "emails", "expected emails to be cleared by the empty-value pattern")
}

func TestValuePathReplaceSubAttribute(t *testing.T) {
	doc := map[string]interface{}{
		"emails": []interface{}{
			map[string]interface{}{"value": "a@example.com", "type": "work"},
			map[string]interface{}{"value": "b@example.com", "type": "home"},
		},
	}
	apply(t, doc, "replace", `emails[type eq "work"].value`, "new@example.com")
	emails := doc["emails"].([]interface{})
	assert.Equal(t, "new@example.com", emails[0].(map[string]interface{})["value"])
	assert.Equal(t, "b@example.com", emails[1].(map[string]interface{})["value"])
}

func TestValuePathRemoveMatchingElement(t *testing.T) {
	doc := map[string]interface{}{
		"emails": []interface{}{
			map[string]interface{}{"value": "a@example.com", "type": "work"},
			map[string]interface{}{"value": "b@example.com", "type": "home"},
		},
	}
	apply(t, doc, "remove", `emails[type eq "home"]`, nil)
	emails := doc["emails"].([]interface{})
	assert.Len(t, emails, 1)
}

func TestValuePathRemoveAllLeavesAttributeAbsent(t *testing.T) {
	doc := map[string]interface{}{
		"emails": []interface{}{map[string]interface{}{"value": "a@example.com", "type": "work"}},
	}
	apply(t, doc, "remove", `emails[type eq "work"]`, nil)
	assert.NotContains(t, doc, "emails", "expected emails attribute to be removed once empty")
}

func TestValuePathAddNewElement(t *testing.T) {
	doc := map[string]interface{}{
		"members": []interface{}{map[string]interface{}{"value": "u1"}},
	}
	err := Apply(doc, Operation{
		Op:    "add",
		Path:  "members",
		Value: map[string]interface{}{"value": "u2", "type": "User"},
	}, schema.ResourceGroup, DefaultCompatibilityConfig())
	require.NoError(t, err)
	members := doc["members"].([]interface{})
	assert.Len(t, members, 2)
}

func TestMultiplePrimaryRejected(t *testing.T) {
	doc := map[string]interface{}{
		"emails": []interface{}{
			map[string]interface{}{"value": "a@example.com", "primary": true},
		},
	}
	err := Apply(doc, Operation{
		Op:   "add",
		Path: "emails",
		Value: []interface{}{
			map[string]interface{}{"value": "b@example.com", "primary": true},
		},
	}, schema.ResourceUser, DefaultCompatibilityConfig())
	assert.Error(t, err, "expected rejection of a second primary=true element")
}
