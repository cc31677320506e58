package models

import (
	"fmt"
)

// Batch represents a bounded group of records read from one source file.
// All records of a batch must share an identical key set: sinks that build
// a positional column list from the first record rely on it.
type Batch struct {
	// Table is the logical table name derived from the source file
	Table string
	// Seq is the 1-based position of the batch within its file
	Seq int
	// Records holds the rows in source order
	Records []*Record
}

// NewBatch creates an empty batch with room for capacity records.
func NewBatch(table string, seq, capacity int) *Batch {
	return &Batch{
		Table:   table,
		Seq:     seq,
		Records: make([]*Record, 0, capacity),
	}
}

// Add appends a record to the batch.
func (b *Batch) Add(r *Record) {
	b.Records = append(b.Records, r)
}

// Size returns the number of records in the batch.
func (b *Batch) Size() int {
	return len(b.Records)
}

// Columns returns the key list of the first record, or nil for an empty batch.
func (b *Batch) Columns() []string {
	if len(b.Records) == 0 {
		return nil
	}
	return b.Records[0].Keys()
}

// Validate checks the uniform key set invariant.
func (b *Batch) Validate() error {
	if len(b.Records) == 0 {
		return nil
	}
	first := b.Records[0]
	for i, r := range b.Records[1:] {
		if !first.SameKeys(r) {
			return fmt.Errorf("batch %d of %s: record %d has keys %v, expected %v",
				b.Seq, b.Table, i+1, r.Keys(), first.Keys())
		}
	}
	return nil
}

// Clone returns a batch whose records are independent copies.
func (b *Batch) Clone() *Batch {
	c := NewBatch(b.Table, b.Seq, len(b.Records))
	for _, r := range b.Records {
		c.Add(r.Clone())
	}
	return c
}
