package model

import (
	"sort"
	"strings"
)

// Set is a collection of unique strings.
type Set struct {
	elements map[string]struct{}
}

// NewSet creates a new set holding the given values.
func NewSet(values ...string) *Set {
	s := &Set{
		elements: make(map[string]struct{}, len(values)),
	}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts an element into the set
func (s *Set) Add(value string) {
	s.elements[value] = struct{}{}
}

// Contains checks if an element is in the set
func (s *Set) Contains(value string) bool {
	_, found := s.elements[value]
	return found
}

// Size returns the number of elements in the set
func (s *Set) Size() int {
	return len(s.elements)
}

// List returns all elements in the set, sorted.
func (s *Set) List() []string {
	keys := make([]string, 0, len(s.elements))
	for key := range s.elements {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Set) Union(other *Set) *Set {
	result := NewSet()
	for key := range s.elements {
		result.Add(key)
	}
	for key := range other.elements {
		result.Add(key)
	}
	return result
}

func (s *Set) ToString() string {
	return strings.Join(s.List(), ",")
}
