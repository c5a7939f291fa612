// Package flattener collapses nested JSON objects into single-level records
// whose keys are the joined paths of the original fields.
package flattener

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/mcncl/json2csv/internal/config"
	"github.com/mcncl/json2csv/internal/models"
)

// Options controls flattening. The same Options must be used for every pass
// over a dataset, otherwise the column union and the rows disagree.
type Options struct {
	Separator string
	// IntToFloat stores integer numbers as models.Float.
	IntToFloat bool
	// DropNulls omits null fields and null array elements.
	DropNulls bool
	// FlattenArrayObjects flattens objects found inside arrays into
	// key-sorted sub-records; otherwise they are kept as nested objects.
	FlattenArrayObjects bool
	ColumnCase          config.ColumnCase
}

// OptionsFromConfig builds Options from the flatten section of a config
func OptionsFromConfig(cfg config.FlattenConfig) Options {
	return Options{
		Separator:           cfg.Separator,
		IntToFloat:          cfg.IntToFloat,
		DropNulls:           cfg.RemoveNull,
		FlattenArrayObjects: cfg.FlattenList,
		ColumnCase:          cfg.ColumnCase,
	}
}

// Flattener turns parsed objects into FlatRecords.
type Flattener struct {
	opts   Options
	rename func(string) string
}

// New creates a Flattener
func New(opts Options) *Flattener {
	if opts.Separator == "" {
		opts.Separator = config.DefaultSeparator
	}
	return &Flattener{opts: opts, rename: segmentCase(opts.ColumnCase)}
}

// entry is one pending (path, value) pair of the worklist.
type entry struct {
	path  string
	value models.JSONValue
}

// Flatten collapses obj into a FlatRecord. Nested objects are walked with an
// explicit stack, in lexicographic key order, so the result is deterministic
// and the depth of the document does not grow the call stack. When two
// fields collapse onto the same path the one visited last wins.
func (f *Flattener) Flatten(obj models.JSONObject) models.FlatRecord {
	out := make(models.FlatRecord, len(obj))
	stack := f.push(nil, "", obj)

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := e.value.(type) {
		case models.JSONObject:
			stack = f.push(stack, e.path, v)
		case models.JSONArray:
			out[e.path] = f.flattenArray(v)
		case nil:
			if !f.opts.DropNulls {
				out[e.path] = models.Null{}
			}
		case json.Number:
			out[e.path] = f.number(v)
		default:
			out[e.path] = v
		}
	}

	return out
}

// push appends the fields of obj in reverse key order so they pop in order.
func (f *Flattener) push(stack []entry, prefix string, obj models.JSONObject) []entry {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	for _, k := range keys {
		stack = append(stack, entry{path: f.join(prefix, k), value: obj[k]})
	}
	return stack
}

func (f *Flattener) join(prefix, key string) string {
	key = f.rename(key)
	if prefix == "" {
		return key
	}
	return prefix + f.opts.Separator + key
}

// flattenArray keeps the whole array as one column value. Nested arrays are
// kept unchanged, the options only apply to object elements and nulls.
func (f *Flattener) flattenArray(arr models.JSONArray) models.ArrayColumn {
	out := make(models.ArrayColumn, 0, len(arr))
	for _, elem := range arr {
		switch v := elem.(type) {
		case models.JSONObject:
			if f.opts.FlattenArrayObjects {
				out = append(out, models.SubRecord(f.Flatten(v)))
			} else {
				out = append(out, v)
			}
		case nil:
			if !f.opts.DropNulls {
				out = append(out, models.Null{})
			}
		default:
			out = append(out, v)
		}
	}
	return out
}

func (f *Flattener) number(n json.Number) models.JSONValue {
	if !f.opts.IntToFloat || !isInteger(n) {
		return n
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return n
	}
	return models.Float(v)
}

func isInteger(n json.Number) bool {
	return !strings.ContainsAny(n.String(), ".eE")
}

func segmentCase(c config.ColumnCase) func(string) string {
	switch c {
	case config.ColumnCaseSnake:
		return strcase.ToSnake
	case config.ColumnCaseCamel:
		return strcase.ToCamel
	case config.ColumnCaseLowerCamel:
		return strcase.ToLowerCamel
	case config.ColumnCaseKebab:
		return strcase.ToKebab
	default:
		return func(s string) string { return s }
	}
}
