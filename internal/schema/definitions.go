// Package schema holds the static SCIM attribute metadata for User, Group, and the
// Enterprise User extension: the registry everything else in this module consults to
// decide case-exactness, mutability, required-ness, and multi-valuedness of a path.
package schema

import "strings"

// AttributeType is the SCIM core attribute data type (RFC 7643 §2.3).
type AttributeType string

const (
	TypeString   AttributeType = "string"
	TypeBoolean  AttributeType = "boolean"
	TypeDecimal  AttributeType = "decimal"
	TypeInteger  AttributeType = "integer"
	TypeDateTime AttributeType = "dateTime"
	TypeBinary   AttributeType = "binary"
	TypeRef      AttributeType = "reference"
	TypeComplex  AttributeType = "complex"
)

// Mutability describes whether and how clients may write an attribute (RFC 7643 §2.2).
type Mutability string

const (
	ReadWrite Mutability = "readWrite"
	ReadOnly  Mutability = "readOnly"
	Immutable Mutability = "immutable"
	WriteOnly Mutability = "writeOnly"
)

// Returned controls when an attribute is included in a response.
type Returned string

const (
	ReturnedAlways  Returned = "always"
	ReturnedNever   Returned = "never"
	ReturnedDefault Returned = "default"
	ReturnedRequest Returned = "request"
)

// Uniqueness describes the scope within which an attribute's value must be unique.
type Uniqueness string

const (
	UniqueNone   Uniqueness = "none"
	UniqueServer Uniqueness = "server"
	UniqueGlobal Uniqueness = "global"
)

// AttributeDefinition is one entry in a resource's schema, possibly carrying its own
// sub-attribute list for complex (including multi-valued complex) attributes.
type AttributeDefinition struct {
	Name          string
	Type          AttributeType
	MultiValued   bool
	Required      bool
	CaseExact     bool
	Canonical     []string
	Mutability    Mutability
	Returned      Returned
	Uniqueness    Uniqueness
	SubAttributes []AttributeDefinition
}

// Definition is the full schema for one resource type or extension.
type Definition struct {
	ID          string
	Name        string
	Description string
	Attributes  []AttributeDefinition
}

// primaryCapableSubAttrs is the standard set of sub-attributes shared by SCIM's
// multi-valued complex attributes that carry a "primary" flag (emails, phoneNumbers,
// ims, photos, entitlements, roles, x509Certificates).
func primaryCapableSubAttrs(valueCaseExact bool) []AttributeDefinition {
	return []AttributeDefinition{
		{Name: "value", Type: TypeString, CaseExact: valueCaseExact, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "display", Type: TypeString, CaseExact: false, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "type", Type: TypeString, CaseExact: false, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "primary", Type: TypeBoolean, Mutability: ReadWrite, Returned: ReturnedDefault},
	}
}

// UserURN is the base User schema's URN.
const UserURN = "urn:ietf:params:scim:schemas:core:2.0:User"

// GroupURN is the base Group schema's URN.
const GroupURN = "urn:ietf:params:scim:schemas:core:2.0:Group"

// EnterpriseUserURN is the Enterprise User extension's URN.
const EnterpriseUserURN = "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User"

// metaAttribute is shared by every resource type; all sub-attributes are server-owned.
var metaAttribute = AttributeDefinition{
	Name:       "meta",
	Type:       TypeComplex,
	Mutability: ReadOnly,
	Returned:   ReturnedDefault,
	SubAttributes: []AttributeDefinition{
		{Name: "resourceType", Type: TypeString, CaseExact: true, Mutability: ReadOnly, Returned: ReturnedDefault},
		{Name: "created", Type: TypeDateTime, Mutability: ReadOnly, Returned: ReturnedDefault},
		{Name: "lastModified", Type: TypeDateTime, Mutability: ReadOnly, Returned: ReturnedDefault},
		{Name: "location", Type: TypeRef, CaseExact: true, Mutability: ReadOnly, Returned: ReturnedDefault},
		{Name: "version", Type: TypeString, CaseExact: true, Mutability: ReadOnly, Returned: ReturnedDefault},
	},
}

// User is the SCIM core User schema (RFC 7643 §4.1).
var User = Definition{
	ID:          UserURN,
	Name:        "User",
	Description: "User Account",
	Attributes: []AttributeDefinition{
		{Name: "id", Type: TypeString, CaseExact: true, Required: true, Mutability: ReadOnly, Returned: ReturnedAlways, Uniqueness: UniqueServer},
		{Name: "externalId", Type: TypeString, CaseExact: true, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "userName", Type: TypeString, CaseExact: false, Required: true, Mutability: ReadWrite, Returned: ReturnedDefault, Uniqueness: UniqueServer},
		{
			Name: "name", Type: TypeComplex, Mutability: ReadWrite, Returned: ReturnedDefault,
			SubAttributes: []AttributeDefinition{
				{Name: "formatted", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "familyName", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "givenName", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "middleName", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "honorificPrefix", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "honorificSuffix", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
			},
		},
		{Name: "displayName", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "nickName", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "profileUrl", Type: TypeRef, CaseExact: true, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "title", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "userType", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "preferredLanguage", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "locale", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "timezone", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "active", Type: TypeBoolean, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "password", Type: TypeString, Mutability: WriteOnly, Returned: ReturnedNever},
		{Name: "emails", Type: TypeComplex, MultiValued: true, Mutability: ReadWrite, Returned: ReturnedDefault, SubAttributes: primaryCapableSubAttrs(false)},
		{Name: "phoneNumbers", Type: TypeComplex, MultiValued: true, Mutability: ReadWrite, Returned: ReturnedDefault, SubAttributes: primaryCapableSubAttrs(false)},
		{Name: "ims", Type: TypeComplex, MultiValued: true, Mutability: ReadWrite, Returned: ReturnedDefault, SubAttributes: primaryCapableSubAttrs(false)},
		{Name: "photos", Type: TypeComplex, MultiValued: true, Mutability: ReadWrite, Returned: ReturnedDefault, SubAttributes: primaryCapableSubAttrs(true)},
		{
			Name: "addresses", Type: TypeComplex, MultiValued: true, Mutability: ReadWrite, Returned: ReturnedDefault,
			SubAttributes: []AttributeDefinition{
				{Name: "formatted", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "streetAddress", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "locality", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "region", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "postalCode", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "country", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "type", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "primary", Type: TypeBoolean, Mutability: ReadWrite, Returned: ReturnedDefault},
			},
		},
		{
			Name: "groups", Type: TypeComplex, MultiValued: true, Mutability: ReadOnly, Returned: ReturnedDefault,
			SubAttributes: []AttributeDefinition{
				{Name: "value", Type: TypeString, CaseExact: true, Mutability: ReadOnly, Returned: ReturnedDefault},
				{Name: "display", Type: TypeString, Mutability: ReadOnly, Returned: ReturnedDefault},
				{Name: "type", Type: TypeString, CaseExact: true, Mutability: ReadOnly, Returned: ReturnedDefault, Canonical: []string{"direct", "indirect"}},
				{Name: "$ref", Type: TypeRef, CaseExact: true, Mutability: ReadOnly, Returned: ReturnedDefault},
			},
		},
		{Name: "entitlements", Type: TypeComplex, MultiValued: true, Mutability: ReadWrite, Returned: ReturnedDefault, SubAttributes: primaryCapableSubAttrs(false)},
		{Name: "roles", Type: TypeComplex, MultiValued: true, Mutability: ReadWrite, Returned: ReturnedDefault, SubAttributes: primaryCapableSubAttrs(false)},
		{Name: "x509Certificates", Type: TypeComplex, MultiValued: true, Mutability: ReadWrite, Returned: ReturnedDefault, SubAttributes: primaryCapableSubAttrs(true)},
		metaAttribute,
	},
}

// Group is the SCIM core Group schema (RFC 7643 §4.2).
var Group = Definition{
	ID:          GroupURN,
	Name:        "Group",
	Description: "Group",
	Attributes: []AttributeDefinition{
		{Name: "id", Type: TypeString, CaseExact: true, Required: true, Mutability: ReadOnly, Returned: ReturnedAlways, Uniqueness: UniqueServer},
		{Name: "externalId", Type: TypeString, CaseExact: true, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "displayName", Type: TypeString, CaseExact: false, Required: true, Mutability: ReadWrite, Returned: ReturnedDefault, Uniqueness: UniqueServer},
		{
			Name: "members", Type: TypeComplex, MultiValued: true, Mutability: ReadWrite, Returned: ReturnedDefault,
			SubAttributes: []AttributeDefinition{
				{Name: "value", Type: TypeString, CaseExact: true, Mutability: Immutable, Returned: ReturnedDefault},
				{Name: "display", Type: TypeString, Mutability: Immutable, Returned: ReturnedDefault},
				{Name: "type", Type: TypeString, CaseExact: true, Mutability: Immutable, Returned: ReturnedDefault, Canonical: []string{"User", "Group"}},
				{Name: "$ref", Type: TypeRef, CaseExact: true, Mutability: Immutable, Returned: ReturnedDefault},
			},
		},
		metaAttribute,
	},
}

// EnterpriseUser is the Enterprise User extension schema (RFC 7643 §4.3).
var EnterpriseUser = Definition{
	ID:          EnterpriseUserURN,
	Name:        "EnterpriseUser",
	Description: "Enterprise User",
	Attributes: []AttributeDefinition{
		{Name: "employeeNumber", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "costCenter", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "organization", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "division", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{Name: "department", Type: TypeString, Mutability: ReadWrite, Returned: ReturnedDefault},
		{
			Name: "manager", Type: TypeComplex, Mutability: ReadWrite, Returned: ReturnedDefault,
			SubAttributes: []AttributeDefinition{
				{Name: "value", Type: TypeString, CaseExact: true, Mutability: ReadWrite, Returned: ReturnedDefault},
				{Name: "displayName", Type: TypeString, Mutability: ReadOnly, Returned: ReturnedDefault},
				{Name: "$ref", Type: TypeRef, CaseExact: true, Mutability: ReadWrite, Returned: ReturnedDefault},
			},
		},
	},
}

// primaryCapableAttributes lists the top-level User attribute names whose sub-attribute
// "primary" is constrained to at most one true value.
var primaryCapableAttributes = map[string]bool{
	"emails":           true,
	"phoneNumbers":     true,
	"addresses":        true,
	"ims":               true,
	"photos":           true,
	"entitlements":     true,
	"roles":            true,
	"x509Certificates": true,
}

// IsPrimaryCapable reports whether attr (a top-level User attribute name, compared
// case-insensitively) carries a "primary" sub-attribute subject to the
// at-most-one-true constraint.
func IsPrimaryCapable(attr string) bool {
	for name := range primaryCapableAttributes {
		if strings.EqualFold(name, attr) {
			return true
		}
	}
	return false
}
