package patch

import (
	"fmt"
	"strings"

	"github.com/scimbridge/tenant-scim/internal/filter"
	"github.com/scimbridge/tenant-scim/internal/normalize"
	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// Operation is one entry of a PATCH request's Operations array.
type Operation struct {
	Op    string
	Path  string
	Value interface{}
}

// CompatibilityConfig carries the two PATCH-time toggles this package supports.
// internal/shaper carries the response-time toggles separately.
type CompatibilityConfig struct {
	SupportPatchReplaceEmptyArray bool
	SupportPatchReplaceEmptyValue bool
}

// DefaultCompatibilityConfig returns the default PATCH compatibility toggles: empty-array
// replace is supported (clears the attribute), the non-standard empty-value clear pattern
// is not.
func DefaultCompatibilityConfig() CompatibilityConfig {
	return CompatibilityConfig{SupportPatchReplaceEmptyArray: true, SupportPatchReplaceEmptyValue: false}
}

// Apply mutates doc in place per op. rt selects the schema used for multi-valued and
// primary-capable attribute lookups. Callers apply every Operation in a PATCH request
// before re-running internal/normalize's mutability/format checks against the result and
// rebuilding the normalized sibling document.
func Apply(doc map[string]interface{}, op Operation, rt schema.ResourceType, compat CompatibilityConfig) error {
	opKind := strings.ToLower(strings.TrimSpace(op.Op))
	switch opKind {
	case "add", "remove", "replace":
	default:
		return scimerr.InvalidValue("unsupported PATCH operation: " + op.Op)
	}

	path, err := parsePath(op.Path)
	if err != nil {
		return err
	}

	if opKind == "remove" && len(path.segments) == 0 && path.kind == attrPathKind {
		return scimerr.InvalidPath("remove requires a path")
	}

	switch path.kind {
	case attrPathKind:
		return applyAttrPath(doc, path, opKind, op.Value, rt, compat)
	default:
		return applyValuePath(doc, path, opKind, op.Value, rt, compat)
	}
}

func applyAttrPath(doc map[string]interface{}, path *scimPath, opKind string, value interface{}, rt schema.ResourceType, compat CompatibilityConfig) error {
	if len(path.segments) == 0 {
		// Whole-document add/replace: merge an object's top-level keys into doc.
		obj, ok := value.(map[string]interface{})
		if !ok {
			return scimerr.InvalidValue(fmt.Sprintf("%s with no path requires an object value", opKind))
		}
		for k, v := range obj {
			doc[k] = v
		}
		return checkPrimaryConflicts(doc, rt)
	}

	parent, err := navigateCreate(doc, path.parentSegments())
	if err != nil {
		return err
	}
	final := path.finalKey()
	schemaPath := path.schemaPath()
	multiValued := schema.IsMultiValued(rt, schemaPath)

	switch opKind {
	case "add":
		if err := applyAdd(parent, final, multiValued, value); err != nil {
			return err
		}
	case "replace":
		if err := applyReplace(parent, final, multiValued, value, compat); err != nil {
			return err
		}
	case "remove":
		delete(parent, final)
	}

	if urn, ok := schemaURN(path.segments); ok {
		addSchemaURN(doc, urn)
	}
	return checkPrimaryConflicts(doc, rt)
}

func applyAdd(parent map[string]interface{}, final string, multiValued bool, value interface{}) error {
	if multiValued {
		newArr, ok := value.([]interface{})
		if !ok {
			newArr = []interface{}{value}
		}
		existing, _ := parent[final].([]interface{})
		parent[final] = append(existing, newArr...)
		return nil
	}
	parent[final] = value
	return nil
}

func applyReplace(parent map[string]interface{}, final string, multiValued bool, value interface{}, compat CompatibilityConfig) error {
	if multiValued {
		arr, ok := value.([]interface{})
		if ok {
			if len(arr) == 0 {
				if !compat.SupportPatchReplaceEmptyArray {
					return scimerr.InvalidValue(fmt.Sprintf("replacing %s with an empty array is not supported", final))
				}
				delete(parent, final)
				return nil
			}
			if isEmptyValuePattern(arr) {
				if !compat.SupportPatchReplaceEmptyValue {
					return scimerr.InvalidValue(fmt.Sprintf("replacing %s with the empty-value clear pattern is not supported", final))
				}
				delete(parent, final)
				return nil
			}
		}
	}
	parent[final] = value
	return nil
}

// isEmptyValuePattern recognizes the non-standard [{"value": ""}] single-element clear
// pattern some SCIM clients send instead of an empty array.
func isEmptyValuePattern(arr []interface{}) bool {
	if len(arr) != 1 {
		return false
	}
	obj, ok := arr[0].(map[string]interface{})
	if !ok || len(obj) != 1 {
		return false
	}
	v, ok := obj["value"]
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s == ""
}

func applyValuePath(doc map[string]interface{}, path *scimPath, opKind string, value interface{}, rt schema.ResourceType, compat CompatibilityConfig) error {
	parent, err := navigateCreate(doc, path.segments[:max(0, len(path.segments)-1)])
	if err != nil {
		return err
	}
	final := ""
	if len(path.segments) > 0 {
		final = path.segments[len(path.segments)-1]
	}
	if final == "" {
		return scimerr.InvalidPath("value path requires an attribute name")
	}

	arrVal, ok := parent[final]
	var arr []interface{}
	if ok {
		arr, ok = arrVal.([]interface{})
		if !ok {
			return scimerr.InvalidPath(fmt.Sprintf("%s is not a multi-valued attribute", final))
		}
	} else if opKind == "add" {
		arr = nil
	} else {
		// Nothing to match against; remove/replace on a missing attribute is a no-op.
		return nil
	}

	schemaPrefix := path.schemaPath()
	pred := filter.CompileAt(path.filter, rt, schemaPrefix)

	var matched []int
	for i, item := range arr {
		elem, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		elemNorm := normalize.DocumentAt(elem, schemaPrefix, rt)
		ok, err := pred(elem, elemNorm)
		if err != nil {
			return err
		}
		if ok {
			matched = append(matched, i)
		}
	}

	switch opKind {
	case "add":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return scimerr.InvalidValue("add with a value path requires an object value")
		}
		arr = append(arr, obj)
	case "remove":
		arr = removeIndices(arr, matched)
	case "replace":
		for _, idx := range matched {
			if path.subAttr != "" {
				elem, ok := arr[idx].(map[string]interface{})
				if !ok {
					continue
				}
				elem[path.subAttr] = value
			} else if obj, ok := value.(map[string]interface{}); ok {
				arr[idx] = obj
			} else {
				arr[idx] = value
			}
		}
	}

	if len(arr) == 0 {
		delete(parent, final)
	} else {
		parent[final] = arr
	}
	return checkPrimaryConflicts(doc, rt)
}

func removeIndices(arr []interface{}, indices []int) []interface{} {
	if len(indices) == 0 {
		return arr
	}
	remove := make(map[int]bool, len(indices))
	for _, i := range indices {
		remove[i] = true
	}
	out := make([]interface{}, 0, len(arr))
	for i, item := range arr {
		if !remove[i] {
			out = append(out, item)
		}
	}
	return out
}

// navigateCreate walks segments from doc, creating intermediate objects as needed, and
// returns the map the final segment should be applied to.
func navigateCreate(doc map[string]interface{}, segments []string) (map[string]interface{}, error) {
	current := doc
	for _, seg := range segments {
		next, ok := current[seg]
		if !ok {
			m := make(map[string]interface{})
			current[seg] = m
			current = m
			continue
		}
		m, ok := next.(map[string]interface{})
		if !ok {
			return nil, scimerr.InvalidPath(fmt.Sprintf("cannot navigate path: %q is not an object", seg))
		}
		current = m
	}
	return current, nil
}

// checkPrimaryConflicts re-evaluates primary constraints after a PATCH op: no
// primary-capable multi-valued attribute may carry more than one element with
// primary=true.
func checkPrimaryConflicts(doc map[string]interface{}, rt schema.ResourceType) error {
	for attrName, v := range doc {
		if !schema.IsPrimaryCapable(attrName) {
			continue
		}
		arr, ok := v.([]interface{})
		if !ok {
			continue
		}
		count := 0
		for _, item := range arr {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if p, ok := obj["primary"]; ok {
				if b, ok := p.(bool); ok && b {
					count++
				}
			}
		}
		if count > 1 {
			return scimerr.InvalidValue(fmt.Sprintf("at most one element of %s may have primary=true", attrName))
		}
	}
	return nil
}

// schemaURN reports the leading schema-URN segment of a path, if any.
func schemaURN(segments []string) (string, bool) {
	if len(segments) == 0 {
		return "", false
	}
	if strings.HasPrefix(segments[0], scimSchemaURNPrefix) {
		return segments[0], true
	}
	return "", false
}

func addSchemaURN(doc map[string]interface{}, urn string) {
	schemas, _ := doc["schemas"].([]interface{})
	for _, s := range schemas {
		if str, ok := s.(string); ok && str == urn {
			return
		}
	}
	doc["schemas"] = append(schemas, urn)
}
