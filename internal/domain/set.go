package domain

import (
	"encoding/json"
	"sort"
)

// StringSet is an unordered set of strings. It is serialised as a sorted JSON array.
type StringSet map[string]struct{}

// NewStringSet builds a set from the provided values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v. Empty strings are ignored.
func (s StringSet) Add(v string) {
	if v == "" {
		return
	}
	s[v] = struct{}{}
}

// Has reports whether v is a member.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of members.
func (s StringSet) Len() int { return len(s) }

// Sorted returns the members in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clone copies the set. A nil set clones to an empty one.
func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null decodes to an empty set.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}
