// Package schema tracks the union of flattened keys seen across a dataset
// and freezes it into the stable, sorted header of the output table.
package schema

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/mcncl/json2csv/internal/errors"
	"github.com/mcncl/json2csv/internal/models"
)

// ColumnSet is the monotonically growing union of record keys. Once frozen
// its order is fixed and further additions are rejected.
type ColumnSet struct {
	seen    map[string]struct{}
	columns []string
	index   map[string]int
	frozen  bool
}

// NewColumnSet creates an empty, unfrozen ColumnSet
func NewColumnSet() *ColumnSet {
	return &ColumnSet{seen: make(map[string]struct{})}
}

// Add folds the keys of one record into the union
func (cs *ColumnSet) Add(rec models.FlatRecord) error {
	if cs.frozen {
		return errors.NewSchemaError("cannot add keys after the header is fixed", errors.ErrSchemaFrozen)
	}
	for k := range rec {
		cs.seen[k] = struct{}{}
	}
	return nil
}

// AddBatch folds every record of a batch into the union
func (cs *ColumnSet) AddBatch(batch models.Batch) error {
	for _, rec := range batch {
		if err := cs.Add(rec.Fields); err != nil {
			return err
		}
	}
	return nil
}

// Freeze sorts the union lexicographically and fixes it. Calling Freeze
// again returns the same columns.
func (cs *ColumnSet) Freeze() []string {
	if cs.frozen {
		return cs.columns
	}

	cs.columns = make([]string, 0, len(cs.seen))
	for k := range cs.seen {
		cs.columns = append(cs.columns, k)
	}
	sort.Strings(cs.columns)

	cs.index = make(map[string]int, len(cs.columns))
	for i, c := range cs.columns {
		cs.index[c] = i
	}
	cs.frozen = true
	return cs.columns
}

// Columns returns the frozen header, or the current union in sorted order
// if the set is not frozen yet.
func (cs *ColumnSet) Columns() []string {
	if cs.frozen {
		out := make([]string, len(cs.columns))
		copy(out, cs.columns)
		return out
	}
	out := make([]string, 0, len(cs.seen))
	for k := range cs.seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Index returns the position of key in the frozen header. It reports false
// for unknown keys and before Freeze.
func (cs *ColumnSet) Index(key string) (int, bool) {
	if !cs.frozen {
		return 0, false
	}
	i, ok := cs.index[key]
	return i, ok
}

// Len returns the number of distinct keys
func (cs *ColumnSet) Len() int {
	return len(cs.seen)
}

// Fingerprint hashes the sorted header. Two runs over the same data with
// the same options produce the same fingerprint.
func (cs *ColumnSet) Fingerprint() uint64 {
	d := xxhash.New()
	for _, c := range cs.Columns() {
		_, _ = d.WriteString(c)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// Check returns an ErrSchemaMismatch error for the first key of rec that is
// not part of the frozen header.
func (cs *ColumnSet) Check(rec models.FlatRecord) error {
	for _, k := range rec.Keys() {
		if _, ok := cs.seen[k]; !ok {
			return errors.NewSchemaError(fmt.Sprintf("key %q is not in the header", k), errors.ErrSchemaMismatch)
		}
	}
	return nil
}
