package normalize

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/scimbridge/tenant-scim/internal/schema"
	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// Result is the output of Validate: the original-cased document (server-managed
// fields stripped) and its normalized sibling, ready for storage.
type Result struct {
	Orig map[string]interface{}
	Norm map[string]interface{}
}

// serverManagedTop are top-level keys a client may never set; they're dropped from the
// incoming payload before any other validation runs.
var serverManagedTop = map[string]bool{"id": true, "meta": true}

// Validate normalizes and validates a raw, client-supplied resource document. previous
// is the currently stored data_orig when this is a PUT (for immutable-attribute checks)
// or nil on create. hashPassword, if the document carries a "password" field, is
// invoked to turn the plaintext into a stored hash; pass nil to skip (e.g. PATCH paths
// that never touch password go through a different entry point in internal/patch).
func Validate(raw map[string]interface{}, rt schema.ResourceType, previous map[string]interface{}, hashPassword func(string) (string, error)) (*Result, error) {
	doc := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if serverManagedTop[strings.ToLower(k)] {
			continue
		}
		doc[k] = v
	}

	if err := checkRequired(doc, rt); err != nil {
		return nil, err
	}
	if err := checkMutability(doc, previous, rt); err != nil {
		return nil, err
	}
	if err := checkFormats(doc, rt); err != nil {
		return nil, err
	}
	if err := checkPrimaryConstraints(doc); err != nil {
		return nil, err
	}

	if pw, ok := doc["password"]; ok {
		s, _ := pw.(string)
		if hashPassword != nil && s != "" {
			hashed, err := hashPassword(s)
			if err != nil {
				return nil, scimerr.InvalidValue(err.Error())
			}
			doc["password"] = hashed
		}
	}

	return &Result{Orig: doc, Norm: Document(doc, rt)}, nil
}

func checkRequired(doc map[string]interface{}, rt schema.ResourceType) error {
	def := schema.User
	if rt == schema.ResourceGroup {
		def = schema.Group
	}
	for _, attr := range def.Attributes {
		if !attr.Required {
			continue
		}
		v, ok := lookupCaseInsensitive(doc, attr.Name)
		if !ok || isEmptyValue(v) {
			return scimerr.InvalidValue(fmt.Sprintf("%s is required", attr.Name))
		}
	}
	return nil
}

// checkMutability enforces: on replace, immutable attributes must equal the previous
// value; readOnly attributes are silently dropped rather than rejected. writeOnly is left
// alone here; never echoing it back is a read-side concern handled by the projection
// engine.
func checkMutability(doc map[string]interface{}, previous map[string]interface{}, rt schema.ResourceType) error {
	def := schema.User
	if rt == schema.ResourceGroup {
		def = schema.Group
	}
	for _, attr := range def.Attributes {
		key, v, ok := lookupCaseInsensitiveKey(doc, attr.Name)
		if !ok {
			continue
		}
		switch attr.Mutability {
		case schema.ReadOnly:
			delete(doc, key)
		case schema.Immutable:
			if previous == nil {
				continue
			}
			prevV, hadPrev := lookupCaseInsensitive(previous, attr.Name)
			if hadPrev && !valuesEqual(prevV, v) {
				return scimerr.MutabilityViolation(fmt.Sprintf("%s is immutable", attr.Name))
			}
		}
	}
	return nil
}

// checkPrimaryConstraints rejects documents where a primary-capable multi-valued
// attribute has more than one element with primary=true.
func checkPrimaryConstraints(doc map[string]interface{}) error {
	for attrName := range doc {
		lower := strings.ToLower(attrName)
		if !schema.IsPrimaryCapable(lower) {
			continue
		}
		arr, ok := doc[attrName].([]interface{})
		if !ok {
			continue
		}
		if err := validatePrimaryCount(lower, arr); err != nil {
			return err
		}
	}
	return nil
}

func validatePrimaryCount(attrName string, arr []interface{}) error {
	count := 0
	for _, item := range arr {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if p, ok := lookupCaseInsensitive(obj, "primary"); ok {
			if b, ok := p.(bool); ok && b {
				count++
			}
		}
	}
	if count > 1 {
		return scimerr.InvalidValue(fmt.Sprintf("at most one element of %s may have primary=true", attrName))
	}
	return nil
}

// checkFormats validates email, reference/URL, timezone, and locale attributes. Phone
// numbers carry no format constraint.
func checkFormats(doc map[string]interface{}, rt schema.ResourceType) error {
	if emails, ok := doc["emails"].([]interface{}); ok {
		for _, item := range emails {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if v, ok := lookupCaseInsensitive(obj, "value"); ok {
				if s, ok := v.(string); ok && s != "" && !ValidEmail(s) {
					return scimerr.InvalidValue(fmt.Sprintf("invalid email format: %s", s))
				}
			}
		}
	}
	if v, ok := doc["profileUrl"]; ok {
		if s, ok := v.(string); ok && s != "" && !ValidReference(s) {
			return scimerr.InvalidValue(fmt.Sprintf("invalid profileUrl format: %s", s))
		}
	}
	if photos, ok := doc["photos"].([]interface{}); ok {
		for _, item := range photos {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if v, ok := lookupCaseInsensitive(obj, "value"); ok {
				if s, ok := v.(string); ok && s != "" && !ValidReference(s) {
					return scimerr.InvalidValue(fmt.Sprintf("invalid photo URL format: %s", s))
				}
			}
		}
	}
	if v, ok := doc["timezone"]; ok {
		if s, ok := v.(string); ok && s != "" && !ValidTimezone(s) {
			return scimerr.InvalidValue(fmt.Sprintf("invalid timezone format: %s", s))
		}
	}
	if v, ok := doc["locale"]; ok {
		if s, ok := v.(string); ok && s != "" && !ValidLocale(s) {
			return scimerr.InvalidValue(fmt.Sprintf("invalid locale format: %s", s))
		}
	}
	_ = rt // format checks are resource-type independent today; kept for signature symmetry
	return nil
}

// ValidEmail validates per RFC 5322 using the standard library's address parser.
func ValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// ValidReference validates a SCIM reference/URL attribute: an absolute URI with a
// scheme, or a relative reference beginning with "/", "./", or "../".
func ValidReference(uri string) bool {
	if uri == "" {
		return false
	}
	if u, err := url.Parse(uri); err == nil && u.Scheme != "" {
		return true
	}
	return strings.HasPrefix(uri, "/") || strings.HasPrefix(uri, "./") || strings.HasPrefix(uri, "../")
}

var utcOffsetRE = regexp.MustCompile(`^[+-]\d{2}:\d{2}$`)

// ValidTimezone accepts an IANA zone name, "UTC"/"GMT", or a "+HH:MM"/"-HH:MM" offset.
func ValidTimezone(tz string) bool {
	if tz == "UTC" || tz == "GMT" {
		return true
	}
	if utcOffsetRE.MatchString(tz) {
		return true
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

var bcp47RE = regexp.MustCompile(`^[A-Za-z]{2,3}(-[A-Za-z0-9]{1,8})*$`)

// iso639 is a subset of ISO 639-1/639-2 language codes, sufficient to reject
// nonsensical tags like "invalid" while accepting everyday locale values.
var iso639 = map[string]bool{
	"aa": true, "ab": true, "ae": true, "af": true, "ak": true, "am": true, "an": true,
	"ar": true, "as": true, "av": true, "ay": true, "az": true, "be": true, "bg": true,
	"bn": true, "bo": true, "br": true, "bs": true, "ca": true, "co": true, "cs": true,
	"cy": true, "da": true, "de": true, "el": true, "en": true, "eo": true, "es": true,
	"et": true, "eu": true, "fa": true, "fi": true, "fj": true, "fo": true, "fr": true,
	"ga": true, "gd": true, "gl": true, "gu": true, "ha": true, "he": true, "hi": true,
	"hr": true, "ht": true, "hu": true, "hy": true, "id": true, "is": true, "it": true,
	"ja": true, "jv": true, "ka": true, "kk": true, "km": true, "kn": true, "ko": true,
	"ku": true, "ky": true, "la": true, "lb": true, "lo": true, "lt": true, "lv": true,
	"mg": true, "mi": true, "mk": true, "ml": true, "mn": true, "mr": true, "ms": true,
	"mt": true, "my": true, "ne": true, "nl": true, "no": true, "ny": true, "pa": true,
	"pl": true, "ps": true, "pt": true, "qu": true, "ro": true, "ru": true, "rw": true,
	"sd": true, "si": true, "sk": true, "sl": true, "sm": true, "sn": true, "so": true,
	"sq": true, "sr": true, "sv": true, "sw": true, "ta": true, "te": true, "tg": true,
	"th": true, "ti": true, "tk": true, "tl": true, "tr": true, "uk": true, "ur": true,
	"uz": true, "vi": true, "wo": true, "xh": true, "yi": true, "yo": true, "zh": true,
	"zu": true,
	"chi": true, "zho": true, "ger": true, "deu": true, "fre": true, "fra": true,
	"dut": true, "nld": true, "gre": true, "ell": true, "per": true, "fas": true,
}

// ValidLocale validates a BCP 47-shaped language tag whose primary subtag is a known
// ISO 639 code, or a private-use "x-"/"X-" tag.
func ValidLocale(locale string) bool {
	if locale == "" || !bcp47RE.MatchString(locale) {
		return false
	}
	if strings.HasPrefix(locale, "x-") || strings.HasPrefix(locale, "X-") {
		return true
	}
	lang := strings.ToLower(strings.SplitN(locale, "-", 2)[0])
	return iso639[lang]
}

func lookupCaseInsensitive(m map[string]interface{}, name string) (interface{}, bool) {
	_, v, ok := lookupCaseInsensitiveKey(m, name)
	return v, ok
}

func lookupCaseInsensitiveKey(m map[string]interface{}, name string) (string, interface{}, bool) {
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

func isEmptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	default:
		return false
	}
}

func valuesEqual(a, b interface{}) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
