// Package shaper applies a tenant's response-time compatibility toggles to an emitted
// resource document, as the last step before serialization.
package shaper

import "time"

// Config is the subset of a tenant's compatibility block this package applies at
// response time. Filter- and PATCH-time toggles live in internal/filter and
// internal/patch respectively; this is intentionally a separate, smaller struct rather
// than one shared config spanning every package, since each consumer only ever needs its
// own slice of the toggle set.
type Config struct {
	MetaDatetimeFormat     string // "rfc3339" (default) or "epoch"
	ShowEmptyGroupsMembers bool
	IncludeUserGroups      bool
}

// DefaultConfig returns the default response-time compatibility toggles: RFC 3339
// timestamps, empty members/groups arrays shown as "[]", and the User "groups" field
// included.
func DefaultConfig() Config {
	return Config{MetaDatetimeFormat: "rfc3339", ShowEmptyGroupsMembers: true, IncludeUserGroups: true}
}

// Apply mutates doc in place per cfg. isUser distinguishes User responses (where
// include_user_groups applies) from Group responses.
func Apply(doc map[string]interface{}, cfg Config, isUser bool) {
	if cfg.MetaDatetimeFormat == "epoch" {
		shapeMetaTimestamps(doc)
	}
	if isUser && !cfg.IncludeUserGroups {
		delete(doc, "groups")
	}
	if !cfg.ShowEmptyGroupsMembers {
		omitIfEmpty(doc, "groups")
		omitIfEmpty(doc, "members")
	}
}

func shapeMetaTimestamps(doc map[string]interface{}) {
	meta, ok := doc["meta"].(map[string]interface{})
	if !ok {
		return
	}
	for _, key := range []string{"created", "lastModified"} {
		s, ok := meta[key].(string)
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			meta[key] = t.UnixMilli()
		}
	}
}

func omitIfEmpty(doc map[string]interface{}, key string) {
	arr, ok := doc[key].([]interface{})
	if ok && len(arr) == 0 {
		delete(doc, key)
	}
}
