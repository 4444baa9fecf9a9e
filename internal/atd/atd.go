// Package atd holds the activity type directory: a static table mapping
// named exclusion groups to the activity types they hide. It is loaded
// once at startup and never mutated, so lookups need no synchronization.
package atd

import (
	"encoding/json"
	"os"
)

// Exclusion group names consulted by the query engine.
const (
	GroupVisitorHidden          = "visitor-hidden"
	GroupExploreGeneralHidden   = "explore-general-hidden"
	GroupChallengeGeneralHidden = "challenge-general-hidden"
)

// Directory answers whether an activity type is excluded from a group.
type Directory struct {
	groups map[string]map[string]struct{}
}

// Default returns the built-in directory. Operational types (briefings,
// deliberations) are hidden from visitor-facing views; the per-track
// "general" groups hide the other track's internals from a track's
// combined display.
func Default() *Directory {
	return FromMapping(map[string][]string{
		GroupVisitorHidden: {
			"judge-briefing",
			"referee-briefing",
			"coach-briefing",
			"judge-deliberation",
		},
		GroupExploreGeneralHidden: {
			"challenge-match",
			"challenge-judging",
			"referee-briefing",
		},
		GroupChallengeGeneralHidden: {
			"explore-judging",
			"judge-deliberation",
		},
	})
}

// FromMapping builds a directory from a group-name → type-id list
// mapping.
func FromMapping(mapping map[string][]string) *Directory {
	groups := make(map[string]map[string]struct{}, len(mapping))
	for group, types := range mapping {
		set := make(map[string]struct{}, len(types))
		for _, t := range types {
			set[t] = struct{}{}
		}
		groups[group] = set
	}
	return &Directory{groups: groups}
}

// LoadFile reads a group → type-id mapping from a JSON file. Used to
// override the built-in table at startup.
func LoadFile(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mapping map[string][]string
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return nil, err
	}
	return FromMapping(mapping), nil
}

// IsExcluded reports whether the activity type belongs to the named
// exclusion group. Unknown types and unknown groups are never excluded:
// the directory fails open so a misconfigured table can hide nothing
// that should be visible, never the reverse.
func (d *Directory) IsExcluded(activityTypeID, group string) bool {
	set, ok := d.groups[group]
	if !ok {
		return false
	}
	_, excluded := set[activityTypeID]
	return excluded
}
