// Package scimerr defines the SCIM Error document shape (RFC 7644 §3.12) and the Go
// error type every component in this module returns, so the API layer can map any
// internal failure to the right HTTP status and scimType without a component ever having
// to know about HTTP.
package scimerr

import "fmt"

// ScimType is one of the scimType tokens RFC 7644 §3.12 defines for 400-class errors.
type ScimType string

const (
	TypeNone              ScimType = ""
	TypeInvalidFilter     ScimType = "invalidFilter"
	TypeInvalidPath       ScimType = "invalidPath"
	TypeInvalidValue      ScimType = "invalidValue"
	TypeInvalidSyntax     ScimType = "invalidSyntax"
	TypeMutability        ScimType = "mutability"
	TypeUniqueness        ScimType = "uniqueness"
	TypePreconditionFailed ScimType = "preconditionFailed"
)

// Error is the error type returned across every internal package. It carries enough
// information for the Protocol Front End to render a SCIM Error document directly.
type Error struct {
	Status  int
	SType   ScimType
	Detail  string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.wrapped)
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.wrapped }

func newErr(status int, st ScimType, detail string) *Error {
	return &Error{Status: status, SType: st, Detail: detail}
}

// BadRequest is a generic 400 with no scimType (malformed JSON, wrong media type).
func BadRequest(detail string) *Error { return newErr(400, TypeNone, detail) }

// InvalidFilter is a 400 invalidFilter (bad filter syntax, unknown attribute, type mismatch).
func InvalidFilter(detail string) *Error { return newErr(400, TypeInvalidFilter, detail) }

// InvalidPath is a 400 invalidPath (bad PATCH path syntax).
func InvalidPath(detail string) *Error { return newErr(400, TypeInvalidPath, detail) }

// InvalidValue is a 400 invalidValue (format violation, primary duplicate, projection conflict).
func InvalidValue(detail string) *Error { return newErr(400, TypeInvalidValue, detail) }

// MutabilityViolation is a 400 mutability.
func MutabilityViolation(detail string) *Error { return newErr(400, TypeMutability, detail) }

// Conflict is a 409 uniqueness violation.
func Conflict(detail string) *Error { return newErr(409, TypeUniqueness, detail) }

// Unauthorized is a 401 with no scimType.
func Unauthorized(detail string) *Error { return newErr(401, TypeNone, detail) }

// Forbidden is a 403 with no scimType.
func Forbidden(detail string) *Error { return newErr(403, TypeNone, detail) }

// NotFound is a 404 with no scimType.
func NotFound(detail string) *Error { return newErr(404, TypeNone, detail) }

// PreconditionFailed is a 412, emitted when If-Match doesn't match the stored version.
func PreconditionFailed(detail string) *Error { return newErr(412, TypePreconditionFailed, detail) }

// TooManyRequests is a 429, emitted by the per-tenant admission guard.
func TooManyRequests(detail string) *Error { return newErr(429, TypeNone, detail) }

// Internal is a 500. cause is logged internally but never serialized into the response
// document; callers should pass a detail message safe to show a client.
func Internal(detail string, cause error) *Error {
	return &Error{Status: 500, SType: TypeNone, Detail: detail, wrapped: cause}
}

// Document is the wire shape of a SCIM Error response.
type Document struct {
	Schemas  []string `json:"schemas"`
	Status   string   `json:"status"`
	SCIMType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail"`
}

// ToDocument renders e as the SCIM Error document RFC 7644 §3.12 mandates. detail
// overrides e.Detail when non-empty, used by the front end to swap in an opaque
// correlation-id message for 500s without leaking internals.
func (e *Error) ToDocument(detailOverride string) Document {
	detail := e.Detail
	if detailOverride != "" {
		detail = detailOverride
	}
	return Document{
		Schemas:  []string{"urn:ietf:params:scim:api:messages:2.0:Error"},
		Status:   fmt.Sprintf("%d", e.Status),
		SCIMType: string(e.SType),
		Detail:   detail,
	}
}

// As reports whether err is (or wraps) a *Error, mirroring errors.As for callers that
// don't want to import "errors" just for this one check.
func As(err error) (*Error, bool) {
	se, ok := err.(*Error)
	return se, ok
}
