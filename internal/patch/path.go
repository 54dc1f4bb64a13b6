// Package patch implements RFC 7644 §3.5.2 PATCH operations: add, remove, and replace
// against a stored resource's original-cased document. A PATCH path is either a plain
// attribute path or a value path with an embedded filter; the filter grammar is shared
// with internal/filter rather than reimplemented.
package patch

import (
	"strings"

	"github.com/scimbridge/tenant-scim/internal/filter"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// pathKind distinguishes a plain attribute path from one carrying a value-path filter.
type pathKind int

const (
	attrPathKind pathKind = iota
	valuePathKind
)

// scimPath is a parsed PATCH path expression.
type scimPath struct {
	kind     pathKind
	segments []string // dot-separated attribute path, schema URN (if any) already stripped
	filter   *filter.Filter
	subAttr  string // set only for valuePath with a trailing ".subAttr"
}

const scimSchemaURNPrefix = "urn:ietf:params:scim:schemas:"

// schemaPath joins segments into the dotted path internal/schema expects, ignoring a
// leading schema-URN segment: PATCH paths may be schema-qualified
// ("urn:...:enterprise:2.0:User:manager.value") but the registry only knows attribute
// names.
func (p *scimPath) schemaPath() string {
	segs := p.segments
	if len(segs) > 0 && strings.HasPrefix(segs[0], scimSchemaURNPrefix) {
		segs = segs[1:]
	}
	return strings.Join(segs, ".")
}

// finalKey returns the attribute name an attrPath operation targets.
func (p *scimPath) finalKey() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// parentSegments returns the path to the object that directly contains finalKey.
func (p *scimPath) parentSegments() []string {
	if len(p.segments) == 0 {
		return nil
	}
	return p.segments[:len(p.segments)-1]
}

// parsePath parses a PATCH path expression. An empty raw string denotes a whole-document
// operation (RFC 7644 §3.5.2's "no path" add/replace form).
func parsePath(raw string) (*scimPath, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &scimPath{kind: attrPathKind}, nil
	}
	if strings.Contains(raw, "[") {
		return parseValuePath(raw)
	}
	return parseAttrPath(raw)
}

func parseAttrPath(raw string) (*scimPath, error) {
	if strings.HasPrefix(raw, scimSchemaURNPrefix) {
		lastColon := strings.LastIndex(raw, ":")
		urn := raw[:lastColon]
		attrPart := raw[lastColon+1:]
		if urn == "" || attrPart == "" {
			return nil, scimerr.InvalidPath("invalid schema-qualified attribute: " + raw)
		}
		segments := append([]string{urn}, strings.Split(attrPart, ".")...)
		if hasEmptySegment(segments) {
			return nil, scimerr.InvalidPath("invalid schema-qualified attribute path: " + raw)
		}
		return &scimPath{kind: attrPathKind, segments: segments}, nil
	}

	segments := strings.Split(raw, ".")
	if hasEmptySegment(segments) {
		return nil, scimerr.InvalidPath("invalid attribute path: " + raw)
	}
	return &scimPath{kind: attrPathKind, segments: segments}, nil
}

func parseValuePath(raw string) (*scimPath, error) {
	bracketStart := strings.IndexByte(raw, '[')
	bracketEnd := strings.LastIndexByte(raw, ']')
	if bracketStart < 0 || bracketEnd < 0 || bracketStart >= bracketEnd {
		return nil, scimerr.InvalidPath("malformed value path: " + raw)
	}

	attrPart := raw[:bracketStart]
	var segments []string
	if attrPart != "" {
		segments = strings.Split(attrPart, ".")
		if hasEmptySegment(segments) {
			return nil, scimerr.InvalidPath("invalid attribute path in value path: " + raw)
		}
	}

	innerFilter, err := filter.Parse(raw[bracketStart+1 : bracketEnd])
	if err != nil {
		return nil, scimerr.InvalidPath("invalid value-path filter: " + err.Error())
	}

	var subAttr string
	if bracketEnd+1 < len(raw) {
		remaining := raw[bracketEnd+1:]
		if !strings.HasPrefix(remaining, ".") || len(remaining) == 1 {
			return nil, scimerr.InvalidPath("malformed sub-attribute in value path: " + raw)
		}
		subAttr = remaining[1:]
	}

	return &scimPath{kind: valuePathKind, segments: segments, filter: innerFilter, subAttr: subAttr}, nil
}

func hasEmptySegment(segments []string) bool {
	for _, s := range segments {
		if s == "" {
			return true
		}
	}
	return false
}
