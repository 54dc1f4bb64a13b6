package filter

import "strings"

// SortOrder is the direction of a sortOrder query parameter.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// ParseSortOrder parses a sortOrder query parameter value: "descending" or "desc" (any
// case) selects Descending, anything else, including absence, defaults to Ascending.
func ParseSortOrder(raw string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "descending", "desc":
		return Descending
	default:
		return Ascending
	}
}

// SortSpec is a resolved sortBy/sortOrder pair.
type SortSpec struct {
	Attribute string
	Order     SortOrder
}

// SortSpecFromParams builds a SortSpec from the raw sortBy/sortOrder query parameters.
// An empty sortBy yields ("", Ascending), which callers treat as "no sorting requested".
func SortSpecFromParams(sortBy, sortOrder string) SortSpec {
	return SortSpec{
		Attribute: strings.TrimSpace(sortBy),
		Order:     ParseSortOrder(sortOrder),
	}
}
