package schema

import "strings"

// ResourceType names the two core SCIM resource types this server manages.
type ResourceType string

const (
	ResourceUser  ResourceType = "User"
	ResourceGroup ResourceType = "Group"
)

// definitionFor returns the base schema for a resource type.
func definitionFor(rt ResourceType) Definition {
	if rt == ResourceGroup {
		return Group
	}
	return User
}

// Lookup walks a dot-separated attribute path (e.g. "name.givenName" or
// "emails.value") against a resource type's schema and returns the leaf
// AttributeDefinition, or false if the path isn't declared. The leading
// segment may also be a sub-attribute name of the Enterprise User extension
// when rt is ResourceUser (e.g. "manager.value" resolves against the
// extension schema as a fallback).
func Lookup(rt ResourceType, path string) (AttributeDefinition, bool) {
	segments := strings.Split(path, ".")
	if len(segments) == 0 {
		return AttributeDefinition{}, false
	}
	if def, ok := lookupIn(definitionFor(rt).Attributes, segments); ok {
		return def, ok
	}
	if rt == ResourceUser {
		if def, ok := lookupIn(EnterpriseUser.Attributes, segments); ok {
			return def, ok
		}
	}
	return AttributeDefinition{}, false
}

func lookupIn(attrs []AttributeDefinition, segments []string) (AttributeDefinition, bool) {
	for _, attr := range attrs {
		if !strings.EqualFold(attr.Name, segments[0]) {
			continue
		}
		if len(segments) == 1 {
			return attr, true
		}
		return lookupIn(attr.SubAttributes, segments[1:])
	}
	return AttributeDefinition{}, false
}

// IsCaseExactFieldForResource reports whether the dot-separated path (already
// stripped of array index notation by the caller) should preserve value case
// when normalized. Undeclared/custom paths default to case-insensitive.
func IsCaseExactFieldForResource(path string, rt ResourceType) bool {
	def, ok := Lookup(rt, path)
	if !ok {
		return false
	}
	return def.CaseExact
}

// IsMultiValued reports whether the dot-separated path names a multi-valued
// attribute.
func IsMultiValued(rt ResourceType, path string) bool {
	def, ok := Lookup(rt, path)
	return ok && def.MultiValued
}

// Returned reports the returned policy of a path, defaulting to "default"
// for undeclared attributes so unknown/custom fields still round-trip.
func ReturnedPolicy(rt ResourceType, path string) Returned {
	def, ok := Lookup(rt, path)
	if !ok {
		return ReturnedDefault
	}
	return def.Returned
}

// MutabilityOf reports the mutability of a path, defaulting to readWrite for
// undeclared attributes.
func MutabilityOf(rt ResourceType, path string) Mutability {
	def, ok := Lookup(rt, path)
	if !ok {
		return ReadWrite
	}
	return def.Mutability
}
