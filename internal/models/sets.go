package models

import (
	"encoding/json"
	"sort"
)

// NumberSet is a set of issue or pull request numbers
type NumberSet map[int]struct{}

// NewNumberSet builds a set from the given numbers
func NewNumberSet(nums ...int) NumberSet {
	s := make(NumberSet, len(nums))
	for _, n := range nums {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts n and reports whether it was not present yet
func (s NumberSet) Add(n int) bool {
	if _, ok := s[n]; ok {
		return false
	}
	s[n] = struct{}{}
	return true
}

func (s NumberSet) Has(n int) bool {
	_, ok := s[n]
	return ok
}

// AddAll merges other into s
func (s NumberSet) AddAll(other NumberSet) {
	for n := range other {
		s[n] = struct{}{}
	}
}

// Sorted returns the members in ascending order
func (s NumberSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// MarshalJSON writes the set as a sorted array
func (s NumberSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *NumberSet) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	*s = NewNumberSet(nums...)
	return nil
}

// StringSet is a set of strings such as commit shas, paths or branch names
type StringSet map[string]struct{}

// NewStringSet builds a set from the given values
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts v and reports whether it was not present yet
func (s StringSet) Add(v string) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in lexical order
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Sorted())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	if values == nil {
		*s = nil
		return nil
	}
	*s = NewStringSet(values...)
	return nil
}
