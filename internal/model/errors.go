package model

import (
	"sort"
	"strings"
)

// FieldErrors maps a JSON field name to a description of what is wrong
// with it.  A nil or empty map means the value passed validation.
type FieldErrors map[string]string

func (fe FieldErrors) add(field, msg string) FieldErrors {
	if fe == nil {
		fe = FieldErrors{}
	}
	if _, exists := fe[field]; !exists {
		fe[field] = msg
	}
	return fe
}

// String renders the errors in a stable "field: message" order.
func (fe FieldErrors) String() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return strings.Join(parts, "; ")
}
