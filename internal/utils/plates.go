package utils

import (
	"sort"
	"strings"
)

// PlateSet is a set of plate numbers keyed exactly as the backend reports
// them, so "AB-12" and "AB12" are different plates. The zero value is empty
// and ready to use.
type PlateSet map[string]struct{}

func plateKey(raw string) string {
	return strings.TrimSpace(raw)
}

// ParsePlateSet reads a comma separated list, ignoring blanks.
func ParsePlateSet(raw string) PlateSet {
	set := PlateSet{}
	for _, part := range strings.Split(raw, ",") {
		if p := plateKey(part); p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

func (s PlateSet) Has(plate string) bool {
	_, ok := s[plateKey(plate)]
	return ok
}

// Toggled returns a copy of s with plate flipped.
func (s PlateSet) Toggled(plate string) PlateSet {
	out := make(PlateSet, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	key := plateKey(plate)
	if key == "" {
		return out
	}
	if _, ok := out[key]; ok {
		delete(out, key)
	} else {
		out[key] = struct{}{}
	}
	return out
}

// String encodes the set in sorted order for use in a query string.
func (s PlateSet) String() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
