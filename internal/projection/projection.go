// Package projection shapes an emitted resource document per RFC 7644 §3.10's
// attributes/excludedAttributes query parameters and the schema registry's returned
// policy.
package projection

import (
	"strings"

	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// alwaysKept are top-level attributes retained regardless of the requested projection.
var alwaysKept = map[string]bool{"id": true, "schemas": true, "meta": true}

// Params are the parsed attributes/excludedAttributes query parameters.
type Params struct {
	Attributes         []string
	ExcludedAttributes []string
}

// ParseParams splits the comma-separated attributes/excludedAttributes query values and
// rejects the case where both are present.
func ParseParams(attributes, excludedAttributes string) (Params, error) {
	attrs := splitNonEmpty(attributes)
	excluded := splitNonEmpty(excludedAttributes)
	if len(attrs) > 0 && len(excluded) > 0 {
		return Params{}, scimerr.InvalidValue("attributes and excludedAttributes are mutually exclusive")
	}
	return Params{Attributes: attrs, ExcludedAttributes: excluded}, nil
}

func splitNonEmpty(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Apply returns a shaped copy of doc; the caller's document is never mutated. Attributes
// with schema.ReturnedNever (e.g. password) are stripped unconditionally, regardless of
// Params.
func Apply(doc map[string]interface{}, params Params, rt schema.ResourceType) map[string]interface{} {
	var shaped map[string]interface{}
	switch {
	case len(params.Attributes) > 0:
		shaped = projectIn(doc, params.Attributes)
	case len(params.ExcludedAttributes) > 0:
		shaped = projectOut(doc, params.ExcludedAttributes)
	default:
		shaped = doc
	}
	return withoutNeverReturned(shaped, "", rt)
}

func projectIn(doc map[string]interface{}, attributes []string) map[string]interface{} {
	out := make(map[string]interface{}, len(attributes)+len(alwaysKept))
	for name := range alwaysKept {
		if v, ok := doc[name]; ok {
			out[name] = v
		}
	}
	for _, path := range attributes {
		copyPath(doc, out, strings.Split(path, "."))
	}
	return out
}

func projectOut(doc map[string]interface{}, excluded []string) map[string]interface{} {
	out := doc
	for _, path := range excluded {
		if alwaysKept[strings.ToLower(strings.SplitN(path, ".", 2)[0])] {
			continue
		}
		out = excludePath(out, strings.Split(path, "."))
	}
	return out
}

// excludePath returns a copy of container with the value at segments removed,
// copy-on-write: only the maps along the path are ever duplicated, so the caller's
// original document (and any of its branches the exclusion doesn't touch) is never
// mutated.
func excludePath(container map[string]interface{}, segments []string) map[string]interface{} {
	if len(segments) == 0 {
		return container
	}
	key, v, ok := lookupKey(container, segments[0])
	if !ok {
		return container
	}
	out := make(map[string]interface{}, len(container))
	for k, vv := range container {
		out[k] = vv
	}
	if len(segments) == 1 {
		delete(out, key)
		return out
	}
	switch t := v.(type) {
	case map[string]interface{}:
		out[key] = excludePath(t, segments[1:])
	case []interface{}:
		newArr := make([]interface{}, len(t))
		for i, item := range t {
			if obj, ok := item.(map[string]interface{}); ok {
				newArr[i] = excludePath(obj, segments[1:])
			} else {
				newArr[i] = item
			}
		}
		out[key] = newArr
	}
	return out
}

// copyPath copies the value(s) at a dotted path from src into dst, descending through
// maps and, for a multi-valued sub-attribute path like "emails.value", reconstructing a
// filtered array where each element carries only the requested sub-attribute.
func copyPath(src, dst map[string]interface{}, segments []string) {
	if len(segments) == 0 {
		return
	}
	head := segments[0]
	key, v, ok := lookupKey(src, head)
	if !ok {
		return
	}
	if len(segments) == 1 {
		dst[key] = v
		return
	}
	switch t := v.(type) {
	case map[string]interface{}:
		child, ok := dst[key].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			dst[key] = child
		}
		copyPath(t, child, segments[1:])
	case []interface{}:
		existing, _ := dst[key].([]interface{})
		merged := make([]interface{}, len(t))
		for i, item := range t {
			obj, ok := item.(map[string]interface{})
			if !ok {
				merged[i] = item
				continue
			}
			var base map[string]interface{}
			if i < len(existing) {
				if m, ok := existing[i].(map[string]interface{}); ok {
					base = m
				}
			}
			if base == nil {
				base = make(map[string]interface{})
			}
			copyPath(obj, base, segments[1:])
			merged[i] = base
		}
		dst[key] = merged
	}
}

// withoutNeverReturned builds a copy of doc with every attribute whose schema.Returned
// policy is "never" omitted, recursing into nested complex and multi-valued attributes.
// Copy-on-write throughout, so it never mutates doc or any of its nested containers.
func withoutNeverReturned(doc map[string]interface{}, prefix string, rt schema.ResourceType) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for key, v := range doc {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if schema.ReturnedPolicy(rt, path) == schema.ReturnedNever {
			continue
		}
		switch t := v.(type) {
		case map[string]interface{}:
			out[key] = withoutNeverReturned(t, path, rt)
		case []interface{}:
			arr := make([]interface{}, len(t))
			for i, item := range t {
				if obj, ok := item.(map[string]interface{}); ok {
					arr[i] = withoutNeverReturned(obj, path, rt)
				} else {
					arr[i] = item
				}
			}
			out[key] = arr
		default:
			out[key] = v
		}
	}
	return out
}

func lookupKey(m map[string]interface{}, name string) (string, interface{}, bool) {
	if v, ok := m[name]; ok {
		return name, v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return k, v, true
		}
	}
	return "", nil, false
}
