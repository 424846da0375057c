package ixon

import (
	"errors"
	"sort"
)

// Enum behaves a bit like a C enum
type Enum map[string]int

// ErrBadEnumIndex is generated when an unknown enum index is used
var ErrBadEnumIndex = errors.New("index not found in enum")

var (
	// AcquisitionMode maps names to the values used by the SDK
	AcquisitionMode = Enum{
		"single":        1,
		"accumulate":    2,
		"kinetics":      3,
		"fast kinetics": 4,
		"continuous":    5, // run till abort
	}

	// TriggerMode maps names to the values used by the SDK
	TriggerMode = Enum{
		"internal":          0,
		"external":          1,
		"external start":    6,
		"external exposure": 7,
		"software":          10,
	}
)

// Lookup returns the SDK value for name
func (e Enum) Lookup(name string) (int, error) {
	v, ok := e[name]
	if !ok {
		return 0, ErrBadEnumIndex
	}
	return v, nil
}

// Name returns the name for an SDK value
func (e Enum) Name(value int) (string, error) {
	for k, v := range e {
		if v == value {
			return k, nil
		}
	}
	return "", ErrBadEnumIndex
}

// Names returns the member names in sorted order
func (e Enum) Names() []string {
	names := make([]string, 0, len(e))
	for k := range e {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
