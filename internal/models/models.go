package models

import (
	"sort"
	"strconv"
	"strings"
)

// JSONValue is a generic type to represent any JSON value.
// This can be a string, json.Number (numbers keep their source text), boolean, nil, JSONObject, or JSONArray.
type JSONValue interface{}

// JSONObject represents a JSON object, which is a map of strings to JSONValues.
type JSONObject map[string]JSONValue

// JSONArray represents a JSON array, which is a slice of JSONValues.
type JSONArray []JSONValue

// Null is the marker stored in a FlatRecord for a JSON null that was kept.
type Null struct{}

// MarshalJSON renders the marker as a JSON null inside array columns.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Float is an integer that was coerced to floating point. It always renders
// with a fractional part so the coercion stays visible in the output.
type Float float64

// String formats the value, keeping a trailing ".0" for integral values.
func (f Float) String() string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// MarshalJSON keeps the same textual form inside array columns.
func (f Float) MarshalJSON() ([]byte, error) {
	return []byte(f.String()), nil
}

// ArrayColumn is a whole JSON array stored as a single column value.
// Elements are scalars, Null, nested arrays, or SubRecord values.
type ArrayColumn []JSONValue

// SubRecord is a flattened object found inside an array. It serializes with
// its keys in lexicographic order.
type SubRecord map[string]JSONValue

// FlatRecord maps a separator-joined path to a scalar, Null, Float or ArrayColumn.
type FlatRecord map[string]JSONValue

// Keys returns the record's paths in lexicographic order.
func (r FlatRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Record is one flattened input value together with where it came from.
type Record struct {
	Fields FlatRecord
	Source string
	Line   int
	Index  int
}

// Batch is a bounded, ordered group of records.
type Batch []Record
