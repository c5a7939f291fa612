// Package converter drives a conversion run: it scans inputs into flattened
// records, settles the column union and writes the rows.
//
// Two strategies are available. Full-memory keeps every batch until the
// union is known. Streaming reads the inputs twice, once to collect the
// columns and once to write, so only one batch is held at a time.
package converter

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/mcncl/json2csv/internal/config"
	"github.com/mcncl/json2csv/internal/errors"
	"github.com/mcncl/json2csv/internal/flattener"
	"github.com/mcncl/json2csv/internal/models"
	"github.com/mcncl/json2csv/internal/parser"
	"github.com/mcncl/json2csv/internal/schema"
	"github.com/mcncl/json2csv/internal/source"
	"github.com/mcncl/json2csv/internal/tokenizer"
	"github.com/mcncl/json2csv/internal/writer"
)

// progressEvery is the minimum gap between two progress lines.
const progressEvery = 2 * time.Second

// Stats summarizes a finished run
type Stats struct {
	Files       int
	Records     int
	Skipped     int
	Batches     int
	Columns     int
	Fingerprint uint64
}

// Converter runs conversions with a fixed configuration.
type Converter struct {
	cfg       *config.Config
	logger    *slog.Logger
	flattener *flattener.Flattener
	limiter   *rate.Limiter
	// SpoolDir holds temporary copies of one-shot inputs in streaming mode.
	// Empty means the system temp directory.
	SpoolDir string
}

// New creates a Converter. A nil logger discards all output.
func New(cfg *config.Config, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Converter{
		cfg:       cfg,
		logger:    logger,
		flattener: flattener.New(flattener.OptionsFromConfig(cfg.Flatten)),
		limiter:   rate.NewLimiter(rate.Every(progressEvery), 1),
	}
}

// tokenizerMode maps the configured input shape to a tokenizer mode
func tokenizerMode(shape config.Shape) tokenizer.Mode {
	switch shape {
	case config.ShapeJSON:
		return tokenizer.ModeArray
	case config.ShapeSingle:
		return tokenizer.ModeSingle
	default:
		return tokenizer.ModeNDJSON
	}
}

// ScanInput flattens every record of in and passes it to fn, in input order.
// Malformed records are logged and skipped; their count is returned. A
// stream desync abandons the rest of the input unless strict mode is on, in
// which case it is returned as an error. Errors from fn stop the scan.
func (c *Converter) ScanInput(in source.Input, fn func(models.Record) error) (int, error) {
	return c.scan(in, true, fn)
}

func (c *Converter) scan(in source.Input, report bool, fn func(models.Record) error) (int, error) {
	rc, err := in.Open()
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	tok := tokenizer.New(rc, tokenizerMode(c.cfg.Input.Shape), c.cfg.Input.BufferSize)
	skipped := 0

	for {
		t, err := tok.Next()
		if err == io.EOF {
			return skipped, nil
		}
		if err != nil {
			if !errors.Is(err, errors.ErrTokenizerDesync) && !errors.Is(err, errors.ErrTrailingData) {
				return skipped, err
			}
			if c.cfg.Input.Strict {
				return skipped, errors.NewTokenizerError(fmt.Sprintf("%s: %s", in.Name, messageOf(err)), err)
			}
			skipped++
			if report {
				c.logger.Error("abandoning rest of input", "source", in.Name, "line", tok.Line(), "error", messageOf(err))
			}
			return skipped, nil
		}

		rec, err := c.decode(in.Name, t)
		if err != nil {
			if !errors.IsRecordError(err) {
				return skipped, err
			}
			skipped++
			if report {
				c.logger.Warn("skipping malformed record",
					"source", in.Name,
					"line", t.Line,
					"index", t.Index,
					"error", messageOf(err),
				)
			}
			continue
		}

		if err := fn(rec); err != nil {
			return skipped, err
		}
	}
}

// decode parses and flattens one value. A failure is a RecordError that
// concerns only this value.
func (c *Converter) decode(name string, t tokenizer.Token) (models.Record, error) {
	obj, err := parser.ParseRecord(t.Raw)
	if err != nil {
		return models.Record{}, &errors.RecordError{Source: name, Line: t.Line, Index: t.Index, Err: err}
	}
	return models.Record{
		Fields: c.flattener.Flatten(obj),
		Source: name,
		Line:   t.Line,
		Index:  t.Index,
	}, nil
}

// eachBatch groups the records of all inputs into batches of at most
// BatchSize records and hands each full batch, then the remainder, to fn.
func (c *Converter) eachBatch(inputs []source.Input, pass int, fn func(models.Batch) error) (int, error) {
	size := c.cfg.Input.BatchSize
	if size <= 0 {
		size = config.DefaultBatchSize
	}
	// BatchSize is an upper bound, not an allocation size.
	capacity := size
	if capacity > 4096 {
		capacity = 4096
	}

	report := pass == 1
	batch := make(models.Batch, 0, capacity)
	skipped := 0

	for _, in := range inputs {
		if report {
			c.logger.Info("reading input", "source", in.Name)
		} else {
			c.logger.Debug("reading input", "source", in.Name, "pass", pass)
		}

		n, err := c.scan(in, report, func(rec models.Record) error {
			batch = append(batch, rec)
			if len(batch) < size {
				return nil
			}
			full := batch
			batch = make(models.Batch, 0, capacity)
			return fn(full)
		})
		skipped += n
		if err != nil {
			return skipped, err
		}
	}

	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// CollectColumns runs the first streaming pass: it computes the column union
// of all inputs, batch by batch, without keeping any record.
func (c *Converter) CollectColumns(inputs []source.Input) (*schema.ColumnSet, error) {
	columns, _, _, err := c.collect(inputs)
	return columns, err
}

func (c *Converter) collect(inputs []source.Input) (*schema.ColumnSet, int, int, error) {
	columns := schema.NewColumnSet()
	batches := 0

	skipped, err := c.eachBatch(inputs, 1, func(batch models.Batch) error {
		batches++
		if err := columns.AddBatch(batch); err != nil {
			return err
		}
		c.progress(batches, columns)
		return nil
	})
	if err != nil {
		return nil, skipped, batches, err
	}
	return columns, skipped, batches, nil
}

func (c *Converter) progress(batch int, columns *schema.ColumnSet) {
	if c.limiter.Allow() {
		c.logger.Info(fmt.Sprintf("batch %d: %d columns found", batch, columns.Len()))
	}
}

// Run converts inputs into CSV on out using the configured strategy.
func (c *Converter) Run(inputs []source.Input, out io.Writer) (Stats, error) {
	if len(inputs) == 0 {
		return Stats{}, errors.NewInputError("no inputs to convert", errors.ErrNoInput)
	}

	delimiter, err := c.cfg.DelimiterRune()
	if err != nil {
		return Stats{}, errors.NewConfigError("invalid delimiter", err)
	}
	w := writer.New(out, writer.Options{
		Delimiter:  delimiter,
		NullMarker: c.cfg.Output.NullMarker,
		UseCRLF:    c.cfg.Output.UseCRLF,
	})

	c.logger.Info("starting conversion",
		"mode", string(c.cfg.Mode),
		"shape", string(c.cfg.Input.Shape),
		"inputs", len(inputs),
		"batch_size", c.cfg.Input.BatchSize,
	)

	var stats Stats
	if c.cfg.Mode == config.ModeStreaming {
		stats, err = c.runStreaming(inputs, w)
	} else {
		stats, err = c.runFullMemory(inputs, w)
	}
	if err != nil {
		return stats, err
	}

	stats.Files = len(inputs)
	stats.Records = w.Rows()
	if stats.Records == 0 {
		c.logger.Warn("no records found in input")
	}
	c.logger.Info("conversion finished",
		"records", stats.Records,
		"skipped", stats.Skipped,
		"columns", stats.Columns,
		"fingerprint", fmt.Sprintf("%016x", stats.Fingerprint),
	)
	return stats, nil
}

func (c *Converter) runFullMemory(inputs []source.Input, w *writer.Writer) (Stats, error) {
	var stats Stats
	columns := schema.NewColumnSet()
	var held []models.Batch

	skipped, err := c.eachBatch(inputs, 1, func(batch models.Batch) error {
		stats.Batches++
		if err := columns.AddBatch(batch); err != nil {
			return err
		}
		held = append(held, batch)
		c.progress(stats.Batches, columns)
		return nil
	})
	stats.Skipped = skipped
	if err != nil {
		return stats, err
	}

	if err := c.writeHeader(w, columns, &stats); err != nil {
		return stats, err
	}
	for i, batch := range held {
		if err := w.WriteBatch(batch); err != nil {
			return stats, err
		}
		held[i] = nil
	}
	return stats, nil
}

func (c *Converter) runStreaming(inputs []source.Input, w *writer.Writer) (Stats, error) {
	var stats Stats

	inputs, cleanup, err := c.rewindable(inputs)
	defer func() {
		if err := cleanup(); err != nil {
			c.logger.Warn("failed to remove spool file", "error", err)
		}
	}()
	if err != nil {
		return stats, err
	}

	columns, skipped, batches, err := c.collect(inputs)
	stats.Skipped = skipped
	stats.Batches = batches
	if err != nil {
		return stats, err
	}

	if err := c.writeHeader(w, columns, &stats); err != nil {
		return stats, err
	}

	_, err = c.eachBatch(inputs, 2, w.WriteBatch)
	return stats, err
}

func (c *Converter) writeHeader(w *writer.Writer, columns *schema.ColumnSet, stats *Stats) error {
	if err := w.WriteHeader(columns); err != nil {
		return err
	}
	stats.Columns = columns.Len()
	stats.Fingerprint = columns.Fingerprint()
	c.logger.Debug("header written", "columns", stats.Columns, "fingerprint", fmt.Sprintf("%016x", stats.Fingerprint))
	return nil
}

// rewindable spools every one-shot input so the second pass can reopen it.
// The returned cleanup removes all spool files and is always safe to call.
func (c *Converter) rewindable(inputs []source.Input) ([]source.Input, func() error, error) {
	var cleanups []func() error
	cleanup := func() error {
		var first error
		for _, fn := range cleanups {
			if err := fn(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	out := make([]source.Input, len(inputs))
	for i, in := range inputs {
		if in.Rewindable() {
			out[i] = in
			continue
		}
		c.logger.Debug("spooling one-shot input", "source", in.Name)
		spooled, done, err := source.Spool(in, c.SpoolDir)
		cleanups = append(cleanups, done)
		if err != nil {
			return nil, cleanup, err
		}
		out[i] = spooled
	}
	return out, cleanup, nil
}

// messageOf returns the message of an AppError without its type prefix
func messageOf(err error) string {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
