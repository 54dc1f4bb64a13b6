// Package filter implements the RFC 7644 §3.4.2.2 filter grammar: parsing a filter
// string into a typed tree and compiling that tree into a Predicate evaluated against a
// resource's normalized/original JSON documents.
package filter

// Kind identifies the shape of one node in a parsed filter tree.
type Kind int

const (
	Equal Kind = iota
	NotEqual
	Contains
	StartsWith
	EndsWith
	GreaterThan
	GreaterOrEqual
	LessThan
	LessOrEqual
	Present
	And
	Or
	Not
	Complex
)

// Filter is one node of a parsed SCIM filter expression. Comparison nodes (Equal
// through Present) carry Attr and, except Present, Value. Logical nodes (And, Or) carry
// Left/Right; Not carries Inner. Complex carries Attr (the multi-valued attribute being
// addressed) and Inner (the value-path filter applied to its elements). A Complex node
// parsed from "attr[filter].subAttr op value" additionally carries SubAttr/SubOp/SubValue:
// an element must satisfy Inner and have its SubAttr match SubOp/SubValue to count.
type Filter struct {
	Kind     Kind
	Attr     string
	Value    interface{}
	Left     *Filter
	Right    *Filter
	Inner    *Filter
	SubAttr  string
	SubOp    Kind
	SubValue interface{}
}

func cmp(k Kind, attr string, value interface{}) *Filter {
	return &Filter{Kind: k, Attr: attr, Value: value}
}
