// Package normalize produces the case-folded sibling of a SCIM resource document and
// validates it against the schema registry. Every object key is lowercased
// unconditionally; a string value is only lowercased when the attribute it belongs to is
// not case-exact per the schema registry.
package normalize

import (
	"strings"

	"github.com/scimbridge/tenant-scim/internal/schema"
)

// Document normalizes data into a lowercased-key, conditionally-lowercased-value
// sibling document used for case-insensitive filtering and uniqueness indexing.
func Document(data map[string]interface{}, rt schema.ResourceType) map[string]interface{} {
	return normalizeValue(data, "", rt).(map[string]interface{})
}

// DocumentAt is Document for a fragment that lives below the resource root, e.g. one
// element of a multi-valued attribute being matched by a PATCH value-path filter, where
// schema lookups must be qualified by the attribute's own path ("emails").
func DocumentAt(data map[string]interface{}, prefix string, rt schema.ResourceType) map[string]interface{} {
	return normalizeValue(data, prefix, rt).(map[string]interface{})
}

func normalizeValue(value interface{}, path string, rt schema.ResourceType) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			lowerKey := strings.ToLower(key)
			newPath := lowerKey
			if path != "" {
				newPath = path + "." + lowerKey
			}
			schemaPath := stripArrayIndices(newPath)
			if s, ok := val.(string); ok && schema.IsCaseExactFieldForResource(schemaPath, rt) {
				out[lowerKey] = s
				continue
			}
			out[lowerKey] = normalizeValue(val, newPath, rt)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item, path, rt)
		}
		return out
	case string:
		schemaPath := stripArrayIndices(path)
		if schema.IsCaseExactFieldForResource(schemaPath, rt) {
			return v
		}
		return strings.ToLower(v)
	default:
		return value
	}
}

// stripArrayIndices removes the "[N]" array-index notation normalizeValue appends
// internally; schema lookups operate on the attribute path, not the instance path. In
// this Go port, arrays never append an index segment to path (see normalizeValue's
// []interface{} case, which re-uses the parent path for every element, matching
// schema-lookup semantics directly) so this is a defensive no-op kept for parity with
// the original algorithm's path bookkeeping.
func stripArrayIndices(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	for _, r := range path {
		if r == '[' || r == ']' || isDigit(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// IsCaseExactField exposes the schema check for callers outside this package (the
// filter compiler and PATCH interpreter both need it to pick data_orig vs data_norm).
func IsCaseExactField(path string, rt schema.ResourceType) bool {
	return schema.IsCaseExactFieldForResource(stripArrayIndices(path), rt)
}
