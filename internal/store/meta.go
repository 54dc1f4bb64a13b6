package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/scimbridge/tenant-scim/internal/schema"
)

func resourceTypeName(rt schema.ResourceType) string {
	if rt == schema.ResourceGroup {
		return "Group"
	}
	return "User"
}

// applyMeta stamps doc's "meta" sub-attribute with resourceType/created/lastModified/
// version, overwriting any value the caller supplied for those fields. "location" is left
// to the caller, since the store has no notion of a tenant's base URL.
func applyMeta(doc map[string]interface{}, rt schema.ResourceType, version int, created, updated time.Time) {
	meta, _ := doc["meta"].(map[string]interface{})
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["resourceType"] = resourceTypeName(rt)
	meta["created"] = created.Format(time.RFC3339)
	meta["lastModified"] = updated.Format(time.RFC3339)
	meta["version"] = etag(version)
	doc["meta"] = meta
}

// etag renders version as the weak ETag SCIM clients pass back in If-Match.
func etag(version int) string {
	return fmt.Sprintf("W/%q", fmt.Sprintf("%d", version))
}

// stringField reads a top-level string attribute case-insensitively, per SCIM's
// case-insensitive attribute-name matching.
func stringField(doc map[string]interface{}, name string) (string, bool) {
	for k, v := range doc {
		if strings.EqualFold(k, name) {
			s, ok := v.(string)
			return s, ok
		}
	}
	return "", false
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
