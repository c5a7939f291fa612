// Package writer renders batches of flattened records as CSV rows against a
// fixed header.
package writer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/mcncl/json2csv/internal/errors"
	"github.com/mcncl/json2csv/internal/models"
	"github.com/mcncl/json2csv/internal/schema"
)

// nested serializes array columns with object keys in lexicographic order.
var nested = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

// Options controls CSV rendering
type Options struct {
	Delimiter  rune
	NullMarker string
	UseCRLF    bool
}

// Writer appends CSV rows one batch at a time.
type Writer struct {
	csv     *csv.Writer
	opts    Options
	columns *schema.ColumnSet
	row     []string
	rows    int
}

// New creates a Writer over w
func New(w io.Writer, opts Options) *Writer {
	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	cw.UseCRLF = opts.UseCRLF
	return &Writer{csv: cw, opts: opts}
}

// WriteHeader freezes columns and writes them as the first row
func (w *Writer) WriteHeader(columns *schema.ColumnSet) error {
	header := columns.Freeze()
	w.columns = columns
	w.row = make([]string, len(header))

	if err := w.csv.Write(header); err != nil {
		return errors.NewOutputError("failed to write header", err)
	}
	return w.Flush()
}

// WriteBatch writes one row per record, in batch order. A record holding a
// key outside the header is a hard error: nothing of it is written.
func (w *Writer) WriteBatch(batch models.Batch) error {
	if w.columns == nil {
		return errors.NewOutputError("header must be written before rows", nil)
	}

	for _, rec := range batch {
		if err := w.writeRecord(rec); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (w *Writer) writeRecord(rec models.Record) error {
	clear(w.row)
	for col, v := range rec.Fields {
		i, ok := w.columns.Index(col)
		if !ok {
			err := w.columns.Check(rec.Fields)
			return errors.NewSchemaError(fmt.Sprintf("record at %s line %d does not fit the header", rec.Source, rec.Line), err)
		}

		s, err := FormatValue(v, w.opts.NullMarker)
		if err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to render %q at %s line %d", col, rec.Source, rec.Line), err)
		}
		w.row[i] = s
	}

	if err := w.csv.Write(w.row); err != nil {
		return errors.NewOutputError("failed to write row", err)
	}
	w.rows++
	return nil
}

// Flush pushes buffered rows to the underlying writer
func (w *Writer) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return errors.NewOutputError("failed to flush output", err)
	}
	return nil
}

// Rows returns the number of data rows written so far
func (w *Writer) Rows() int {
	return w.rows
}

// FormatValue renders one FlatRecord value as a CSV field. Arrays and
// objects become a single JSON text that keeps element order.
func FormatValue(v models.JSONValue, nullMarker string) (string, error) {
	switch val := v.(type) {
	case nil, models.Null:
		return nullMarker, nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case models.Float:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case models.ArrayColumn, models.SubRecord, models.JSONObject, models.JSONArray:
		b, err := nested.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return fmt.Sprint(val), nil
	}
}
