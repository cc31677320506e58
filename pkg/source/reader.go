// Package source streams delimited-text files as fixed-size batches.
//
// A Reader is forward-only and consumed once: each call to Next reads at
// most BatchSize rows from the underlying file, so memory stays bounded by
// one batch regardless of file size.
package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/pkg/compression"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/logger"
	"github.com/ajitpratap0/polyload/pkg/metrics"
	"github.com/ajitpratap0/polyload/pkg/models"
)

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 1000

// Options controls how a file is parsed.
type Options struct {
	BatchSize  int
	Delimiter  rune
	InferTypes bool
	NullValues []string
}

// DefaultOptions returns the options used by the pipeline when nothing is configured.
func DefaultOptions() Options {
	return Options{
		BatchSize:  DefaultBatchSize,
		Delimiter:  ',',
		InferTypes: true,
		NullValues: []string{"", "NA", "NaN", "null"},
	}
}

// Reader yields batches from one file.
type Reader struct {
	path    string
	table   string
	opts    Options
	nulls   map[string]struct{}
	file    *os.File
	dec     io.ReadCloser
	csv     *csv.Reader
	headers []string
	seq     int
	err     error
	logger  *zap.Logger
}

// Open opens path and reads its header row. Compressed files (.gz, .zst,
// .lz4, .sz, .s2) are decompressed on the fly.
func Open(path string, opts Options) (*Reader, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}

	file, err := os.Open(path) //nolint:gosec // G304: paths come from discovery
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, fmt.Sprintf("failed to open %s", path))
	}

	r := &Reader{
		path:   path,
		table:  TableName(path),
		opts:   opts,
		nulls:  make(map[string]struct{}, len(opts.NullValues)),
		file:   file,
		logger: logger.Get().With(zap.String("component", "source"), zap.String("file", path)),
	}
	for _, n := range opts.NullValues {
		r.nulls[n] = struct{}{}
	}

	algo := compression.Detect(path)
	dec, err := compression.NewReader(algo, bufio.NewReaderSize(file, 64*1024))
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, fmt.Sprintf("failed to open %s stream %s", algo, path))
	}
	r.dec = dec

	r.csv = csv.NewReader(dec)
	r.csv.Comma = opts.Delimiter
	r.csv.ReuseRecord = true

	headers, err := r.csv.Read()
	if err == io.EOF {
		// an empty file has no header and yields no batches
		r.err = io.EOF
		return r, nil
	}
	if err != nil {
		_ = r.Close()
		return nil, errors.NewParseError(path, 1, fmt.Errorf("failed to read header: %w", err))
	}
	r.headers = make([]string, len(headers))
	for i, h := range headers {
		r.headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	r.csv.FieldsPerRecord = len(r.headers)

	return r, nil
}

// Table returns the table name derived from the file name.
func (r *Reader) Table() string {
	return r.table
}

// Headers returns the column names from the header row.
func (r *Reader) Headers() []string {
	return r.headers
}

// Next returns the next batch, or io.EOF once the file is exhausted. A
// malformed row returns a *errors.ParseError; the reader then stays in
// that error state.
func (r *Reader) Next(ctx context.Context) (*models.Batch, error) {
	if r.err != nil {
		return nil, r.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([][]string, 0, r.opts.BatchSize)
	for len(rows) < r.opts.BatchSize {
		row, err := r.csv.Read()
		if err == io.EOF {
			r.err = io.EOF
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			r.err = errors.NewParseError(r.path, line, err)
			metrics.ParseErrors.WithLabelValues(r.table).Inc()
			r.logger.Error("malformed row", zap.Int("line", line), zap.Error(err))
			return nil, r.err
		}
		rows = append(rows, append([]string(nil), row...))
	}

	if len(rows) == 0 {
		return nil, io.EOF
	}
	batch := models.NewBatch(r.table, r.seq+1, len(rows))
	for _, rec := range r.toRecords(rows) {
		batch.Add(rec)
	}
	r.seq = batch.Seq
	metrics.SourceBatches.WithLabelValues(r.table).Inc()
	metrics.SourceRecords.WithLabelValues(r.table).Add(float64(batch.Size()))
	return batch, nil
}

// Close releases the file.
func (r *Reader) Close() error {
	if r.dec != nil {
		_ = r.dec.Close()
	}
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// toRecords converts one batch of raw rows. With type inference every
// column gets a single kind for the whole batch: the widest kind any of its
// non-null cells needs.
func (r *Reader) toRecords(rows [][]string) []*models.Record {
	kinds := make([]Kind, len(r.headers))
	if r.opts.InferTypes {
		for _, row := range rows {
			for i, cell := range row {
				if _, null := r.nulls[cell]; !null {
					kinds[i] = Widen(kinds[i], InferKind(cell))
				}
			}
		}
	} else {
		for i := range kinds {
			kinds[i] = KindString
		}
	}

	records := make([]*models.Record, len(rows))
	for n, row := range rows {
		values := make([]interface{}, len(row))
		for i, cell := range row {
			if _, null := r.nulls[cell]; null {
				continue
			}
			values[i] = ConvertCell(cell, kinds[i])
		}
		records[n] = models.NewRecord(r.headers, values)
	}
	return records
}

// Kind is the inferred type of a column.
type Kind int

// Kinds from narrowest to widest.
const (
	KindInt Kind = iota
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Widen returns the kind that can hold values of both a and b.
func Widen(a, b Kind) Kind {
	if b > a {
		return b
	}
	return a
}

// InferKind returns the narrowest kind that represents cell. Integers with
// a leading zero are strings so codes such as ISBNs keep their digits.
func InferKind(cell string) Kind {
	s := strings.TrimSpace(cell)
	if s == "" {
		return KindString
	}
	if digits, ok := integerDigits(s); ok {
		if len(digits) > 1 && digits[0] == '0' {
			return KindString
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return KindInt
		}
	}
	if isDecimal(s) {
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return KindFloat
		}
	}
	return KindString
}

// ConvertCell converts cell to int64, float64 or string according to k.
// A cell that does not parse as k is returned unchanged.
func ConvertCell(cell string, k Kind) interface{} {
	s := strings.TrimSpace(cell)
	switch k {
	case KindInt:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case KindFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return cell
}

// InferValue converts a single cell on its own, without column context.
func InferValue(cell string) interface{} {
	return ConvertCell(cell, InferKind(cell))
}

// integerDigits strips an optional minus sign and reports whether the rest
// is a non-empty run of ASCII digits.
func integerDigits(s string) (string, bool) {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return digits, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return digits, false
		}
	}
	return digits, true
}

// isDecimal accepts plain and exponent notation but rejects the inf/nan
// spellings strconv would otherwise take.
func isDecimal(s string) bool {
	hasDigit := false
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E':
		default:
			return false
		}
	}
	return hasDigit
}
