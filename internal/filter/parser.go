package filter

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/scimbridge/tenant-scim/internal/scimerr"
)

// Parse parses a SCIM filter expression into a Filter tree. Precedence is not > and >
// or, left-to-right at each level; parentheses and value-path brackets both open a new
// nesting depth for the purpose of locating top-level operators.
func Parse(raw string) (*Filter, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, scimerr.InvalidFilter("empty filter")
	}
	return parseExpr(s)
}

func parseExpr(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	s = stripOuterParens(s)
	s = strings.TrimSpace(s)

	if rest, ok := stripNotPrefix(s); ok {
		inner, err := parseExpr(rest)
		if err != nil {
			return nil, err
		}
		return &Filter{Kind: Not, Inner: inner}, nil
	}

	if left, right, ok := splitTopLevel(s, " or "); ok {
		l, err := parseExpr(left)
		if err != nil {
			return nil, err
		}
		r, err := parseExpr(right)
		if err != nil {
			return nil, err
		}
		return &Filter{Kind: Or, Left: l, Right: r}, nil
	}

	if left, right, ok := splitTopLevel(s, " and "); ok {
		l, err := parseExpr(left)
		if err != nil {
			return nil, err
		}
		r, err := parseExpr(right)
		if err != nil {
			return nil, err
		}
		return &Filter{Kind: And, Left: l, Right: r}, nil
	}

	return parseSimple(s)
}

// stripOuterParens removes one layer of enclosing parens if they actually match each
// other (i.e. the opening paren's matching close is the string's final character, not
// closed somewhere in the middle by an unrelated group).
func stripOuterParens(s string) string {
	for {
		trimmed := strings.TrimSpace(s)
		if len(trimmed) < 2 || trimmed[0] != '(' || trimmed[len(trimmed)-1] != ')' {
			return s
		}
		depth := 0
		inQuote := false
		matchesToEnd := true
		for i, r := range trimmed {
			switch {
			case r == '"' && !isEscaped(trimmed, i):
				inQuote = !inQuote
			case inQuote:
				continue
			case r == '(' || r == '[':
				depth++
			case r == ')' || r == ']':
				depth--
				if depth == 0 && i != len(trimmed)-1 {
					matchesToEnd = false
				}
			}
		}
		if !matchesToEnd || depth != 0 {
			return s
		}
		s = trimmed[1 : len(trimmed)-1]
	}
}

func isEscaped(s string, idx int) bool {
	backslashes := 0
	for i := idx - 1; i >= 0 && s[i] == '\\'; i-- {
		backslashes++
	}
	return backslashes%2 == 1
}

func stripNotPrefix(s string) (string, bool) {
	if len(s) < 4 {
		return "", false
	}
	if !strings.EqualFold(s[:4], "not ") {
		return "", false
	}
	return strings.TrimSpace(s[4:]), true
}

// splitTopLevel finds the first occurrence of token (e.g. " or ", " and ") at bracket
// depth zero and outside any quoted string, and returns the text before and after it.
func splitTopLevel(s, token string) (left, right string, found bool) {
	depth := 0
	inQuote := false
	lower := strings.ToLower(s)
	for i := 0; i < len(s); i++ {
		r := s[i]
		switch {
		case r == '"' && !isEscaped(s, i):
			inQuote = !inQuote
		case inQuote:
			continue
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			depth--
		case depth == 0 && strings.HasPrefix(lower[i:], token):
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(token):]), true
		}
	}
	return "", "", false
}

// operatorTokens is ordered longest-first so e.g. ">=" is matched before ">".
var operatorTokens = []string{">=", "<=", "!=", "eq", "ne", "co", "sw", "ew", "gt", "ge", "lt", "le", "=", ">", "<"}

func isAlphaToken(tok string) bool {
	return len(tok) == 2 && tok[0] >= 'a' && tok[0] <= 'z'
}

func parseSimple(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, scimerr.InvalidFilter("empty filter term")
	}

	if rest, attr, ok := stripPresentSuffix(s); ok {
		_ = rest
		return &Filter{Kind: Present, Attr: attr}, nil
	}

	if attr, inner, trailing, ok := extractComplex(s); ok {
		innerFilter, err := parseExpr(inner)
		if err != nil {
			return nil, err
		}
		cf := &Filter{Kind: Complex, Attr: attr, Inner: innerFilter}
		if trailing != "" {
			subAttr, opTok, valueStr, ok := findOperator(trailing)
			if !ok {
				return nil, scimerr.InvalidFilter("invalid trailing sub-attribute comparison: " + trailing)
			}
			value, err := parseValue(valueStr)
			if err != nil {
				return nil, err
			}
			kind, err := kindForToken(opTok)
			if err != nil {
				return nil, err
			}
			cf.SubAttr = subAttr
			cf.SubOp = kind
			cf.SubValue = value
		}
		return cf, nil
	}

	attr, opTok, valueStr, ok := findOperator(s)
	if !ok {
		return nil, scimerr.InvalidFilter("no recognized operator in filter: " + s)
	}
	value, err := parseValue(valueStr)
	if err != nil {
		return nil, err
	}
	kind, err := kindForToken(opTok)
	if err != nil {
		return nil, err
	}
	return cmp(kind, attr, value), nil
}

func kindForToken(tok string) (Kind, error) {
	switch tok {
	case "eq", "=":
		return Equal, nil
	case "ne", "!=":
		return NotEqual, nil
	case "co":
		return Contains, nil
	case "sw":
		return StartsWith, nil
	case "ew":
		return EndsWith, nil
	case "gt", ">":
		return GreaterThan, nil
	case "ge", ">=":
		return GreaterOrEqual, nil
	case "lt", "<":
		return LessThan, nil
	case "le", "<=":
		return LessOrEqual, nil
	default:
		return 0, scimerr.InvalidFilter("unknown operator: " + tok)
	}
}

// stripPresentSuffix recognizes "<attr> pr" (case-insensitive, trailing whitespace
// tolerated) and returns the attribute path.
func stripPresentSuffix(s string) (string, string, bool) {
	trimmed := strings.TrimRight(s, " \t")
	if len(trimmed) < 3 {
		return "", "", false
	}
	if !strings.EqualFold(trimmed[len(trimmed)-3:], " pr") {
		return "", "", false
	}
	attr := strings.TrimSpace(trimmed[:len(trimmed)-3])
	if attr == "" || strings.ContainsAny(attr, "[") {
		return "", "", false
	}
	return "", attr, true
}

// extractComplex recognizes "attr[innerFilter]" and "attr[innerFilter].subAttr op value"
// value-path syntax: the attribute name precedes the first top-level '[', the filter body
// runs to the last ']', and anything after that closing bracket (minus its leading '.') is
// returned as trailing for the caller to parse as a comparison against subAttr.
func extractComplex(s string) (attr string, inner string, trailing string, ok bool) {
	idx := strings.IndexByte(s, '[')
	if idx < 0 {
		return "", "", "", false
	}
	last := strings.LastIndexByte(s, ']')
	if last <= idx {
		return "", "", "", false
	}
	attr = strings.TrimSpace(s[:idx])
	if attr == "" || strings.ContainsAny(attr, " \"") {
		return "", "", "", false
	}
	inner = s[idx+1 : last]

	if rest := strings.TrimSpace(s[last+1:]); rest != "" {
		if !strings.HasPrefix(rest, ".") || len(rest) == 1 {
			return "", "", "", false
		}
		trailing = strings.TrimSpace(rest[1:])
	}
	return attr, inner, trailing, true
}

// findOperator scans s for the first recognized operator token at quote depth zero,
// honoring word boundaries for the two-letter alphabetic operators so an attribute name
// like "frequency" is never mistaken for containing "eq".
func findOperator(s string) (attr, token, value string, ok bool) {
	inQuote := false
	for i := 0; i < len(s); i++ {
		r := s[i]
		if r == '"' && !isEscaped(s, i) {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		for _, tok := range operatorTokens {
			if i+len(tok) > len(s) {
				continue
			}
			candidate := s[i : i+len(tok)]
			if !strings.EqualFold(candidate, tok) {
				continue
			}
			if isAlphaToken(tok) {
				if !isWordBoundary(s, i) || !isWordBoundary(s, i+len(tok)) {
					continue
				}
			}
			left := strings.TrimSpace(s[:i])
			right := strings.TrimSpace(s[i+len(tok):])
			if left == "" || right == "" {
				continue
			}
			return left, strings.ToLower(tok), right, true
		}
	}
	return "", "", "", false
}

func isWordBoundary(s string, idx int) bool {
	if idx <= 0 || idx >= len(s) {
		return true
	}
	before := s[idx-1]
	return before == ' ' || before == '\t' || before == '(' || before == ')'
}

// parseValue parses a filter literal: a JSON-quoted string, true/false/null, an integer,
// a float, or (fallback) a bare unquoted string.
func parseValue(s string) (interface{}, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, scimerr.InvalidFilter("missing filter value")
	}
	if strings.HasPrefix(s, "\"") {
		var str string
		if err := json.Unmarshal([]byte(s), &str); err != nil {
			return nil, scimerr.InvalidFilter("invalid quoted string: " + s)
		}
		return str, nil
	}
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return s, nil
}
