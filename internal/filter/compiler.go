package filter

import (
	"strings"
	"time"

	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// Predicate evaluates a compiled filter against one resource's original and normalized
// documents. It is an engine-agnostic in-memory evaluator rather than a translation into
// SQL, so the same predicate runs unchanged against either supported database dialect.
type Predicate func(orig, norm map[string]interface{}) (bool, error)

// Compile turns a parsed Filter into a Predicate against resources of type rt.
func Compile(f *Filter, rt schema.ResourceType) Predicate {
	return CompileAt(f, rt, "")
}

// CompileAt is Compile for a filter that applies below the resource root: the value-path
// filter inside a PATCH op like "emails[type eq \"work\"]", evaluated against each element
// of the emails array with schema lookups qualified by prefix ("emails").
func CompileAt(f *Filter, rt schema.ResourceType, prefix string) Predicate {
	return func(orig, norm map[string]interface{}) (bool, error) {
		return evaluate(f, orig, norm, prefix, rt)
	}
}

func evaluate(f *Filter, orig, norm interface{}, prefix string, rt schema.ResourceType) (bool, error) {
	switch f.Kind {
	case And:
		l, err := evaluate(f.Left, orig, norm, prefix, rt)
		if err != nil {
			return false, err
		}
		if !l {
			return false, nil
		}
		return evaluate(f.Right, orig, norm, prefix, rt)
	case Or:
		l, err := evaluate(f.Left, orig, norm, prefix, rt)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return evaluate(f.Right, orig, norm, prefix, rt)
	case Not:
		v, err := evaluate(f.Inner, orig, norm, prefix, rt)
		if err != nil {
			return false, err
		}
		return !v, nil
	case Present:
		return isPresent(orig, splitPath(f.Attr)), nil
	case Complex:
		return evaluateComplex(f, orig, norm, prefix, rt)
	default:
		return evaluateComparison(f, orig, norm, prefix, rt)
	}
}

func fullPath(prefix, attr string) string {
	if prefix == "" {
		return attr
	}
	return prefix + "." + attr
}

func splitPath(attr string) []string {
	return strings.Split(attr, ".")
}

func evaluateComparison(f *Filter, orig, norm interface{}, prefix string, rt schema.ResourceType) (bool, error) {
	path := fullPath(prefix, f.Attr)
	caseExact := schema.IsCaseExactFieldForResource(path, rt)

	doc := norm
	value := f.Value
	if caseExact {
		doc = orig
	} else if s, ok := value.(string); ok {
		value = strings.ToLower(s)
	}

	leaves := resolveLeaves(doc, splitPath(f.Attr))
	for _, leaf := range leaves {
		ok, err := matches(f.Kind, leaf, value)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matches(kind Kind, leaf, value interface{}) (bool, error) {
	switch kind {
	case Equal:
		return equalValues(leaf, value), nil
	case NotEqual:
		return !equalValues(leaf, value), nil
	case Contains:
		ls, lok := leaf.(string)
		vs, vok := value.(string)
		if !lok || !vok {
			return false, nil
		}
		return strings.Contains(ls, vs), nil
	case StartsWith:
		ls, lok := leaf.(string)
		vs, vok := value.(string)
		if !lok || !vok {
			return false, nil
		}
		return strings.HasPrefix(ls, vs), nil
	case EndsWith:
		ls, lok := leaf.(string)
		vs, vok := value.(string)
		if !lok || !vok {
			return false, nil
		}
		return strings.HasSuffix(ls, vs), nil
	case GreaterThan, GreaterOrEqual, LessThan, LessOrEqual:
		c, err := compareOrdered(leaf, value)
		if err != nil {
			return false, err
		}
		switch kind {
		case GreaterThan:
			return c > 0, nil
		case GreaterOrEqual:
			return c >= 0, nil
		case LessThan:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	default:
		return false, scimerr.InvalidFilter("unsupported comparison operator")
	}
}

func equalValues(a, b interface{}) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int64:
		switch bv := b.(type) {
		case int64:
			return av == bv
		case float64:
			return float64(av) == bv
		}
		return false
	case float64:
		switch bv := b.(type) {
		case int64:
			return av == float64(bv)
		case float64:
			return av == bv
		}
		return false
	case nil:
		return b == nil
	default:
		return false
	}
}

func compareOrdered(a, b interface{}) (int, error) {
	if as, aok := a.(string); aok {
		bs, bok := b.(string)
		if !bok {
			return 0, scimerr.InvalidFilter("type mismatch in ordered comparison")
		}
		if at, err := time.Parse(time.RFC3339, as); err == nil {
			if bt, err2 := time.Parse(time.RFC3339, bs); err2 == nil {
				switch {
				case at.Before(bt):
					return -1, nil
				case at.After(bt):
					return 1, nil
				default:
					return 0, nil
				}
			}
		}
		return strings.Compare(as, bs), nil
	}
	an, aok := toFloat(a)
	bn, bok := toFloat(b)
	if !aok || !bok {
		return 0, scimerr.InvalidFilter("type mismatch in ordered comparison")
	}
	switch {
	case an < bn:
		return -1, nil
	case an > bn:
		return 1, nil
	default:
		return 0, nil
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// evaluateComplex evaluates a Complex node against each element of the referenced array.
// When the node carries a SubAttr (parsed from "attr[filter].subAttr op value"), an
// element only counts as a match once it satisfies Inner and its SubAttr also satisfies
// SubOp/SubValue.
func evaluateComplex(f *Filter, orig, norm interface{}, prefix string, rt schema.ResourceType) (bool, error) {
	path := fullPath(prefix, f.Attr)
	origArr, _ := navigateRaw(orig, splitPath(f.Attr)).([]interface{})
	normArr, _ := navigateRaw(norm, splitPath(f.Attr)).([]interface{})
	for i := range origArr {
		var elemNorm interface{}
		if i < len(normArr) {
			elemNorm = normArr[i]
		}
		ok, err := evaluate(f.Inner, origArr[i], elemNorm, path, rt)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if f.SubAttr == "" {
			return true, nil
		}
		sub := &Filter{Kind: f.SubOp, Attr: f.SubAttr, Value: f.SubValue}
		subOK, err := evaluateComparison(sub, origArr[i], elemNorm, path, rt)
		if err != nil {
			return false, err
		}
		if subOK {
			return true, nil
		}
	}
	return false, nil
}

// resolveLeaves walks segments against v, transparently flattening through arrays, and
// returns every scalar leaf reached. Used for comparison and presence operators, which
// must match if *any* element of a multi-valued attribute satisfies the predicate.
func resolveLeaves(v interface{}, segments []string) []interface{} {
	if len(segments) == 0 {
		return flattenLeaf(v)
	}
	switch t := v.(type) {
	case map[string]interface{}:
		val, ok := lookupCI(t, segments[0])
		if !ok {
			return nil
		}
		return resolveLeaves(val, segments[1:])
	case []interface{}:
		var out []interface{}
		for _, item := range t {
			out = append(out, resolveLeaves(item, segments)...)
		}
		return out
	default:
		return nil
	}
}

func flattenLeaf(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		var out []interface{}
		for _, item := range t {
			out = append(out, flattenLeaf(item)...)
		}
		return out
	default:
		return []interface{}{t}
	}
}

// navigateRaw performs a plain nested-map descent without flattening arrays; used by
// Complex to fetch the container array itself rather than its leaves.
func navigateRaw(v interface{}, segments []string) interface{} {
	cur := v
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		val, ok := lookupCI(m, seg)
		if !ok {
			return nil
		}
		cur = val
	}
	return cur
}

func isPresent(v interface{}, segments []string) bool {
	leaves := resolveLeaves(v, segments)
	if len(leaves) == 0 {
		return false
	}
	if len(leaves) == 1 {
		if s, ok := leaves[0].(string); ok && s == "" {
			return false
		}
	}
	return true
}

func lookupCI(m map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}
