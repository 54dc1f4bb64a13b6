package store

import "time"

// Resource is a persisted SCIM document as the store sees it: the caller's original-cased
// JSON document (meta included) plus the version gorm uses for optimistic concurrency.
type Resource struct {
	ID         string
	ExternalID *string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Data       map[string]interface{}
}

// Member is one row of a Group's membership join table.
type Member struct {
	ID   string
	Type string // "User" or "Group"
}
