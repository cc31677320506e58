// Package adapter reshapes generic records into the form each sink variant
// expects. Every function here is pure: inputs are never modified, and any
// transform that changes a record works on a clone.
package adapter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ajitpratap0/polyload/pkg/models"
)

// Columnar sink rename applied to every record before columns are computed.
const (
	BookIDKey          = "book_id"
	GoodreadsBookIDKey = "goodreads_book_id"
)

// Label derives a graph node label from a table name: a single trailing
// "s" is stripped and the first character is uppercased.
//
//	books   -> Book
//	to_read -> To_read
func Label(table string) string {
	name := strings.TrimSuffix(table, "s")
	if name == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// RenameKey returns a new batch in which every record carrying from has it
// renamed to to. Records without the key are cloned unchanged.
func RenameKey(batch *models.Batch, from, to string) *models.Batch {
	out := models.NewBatch(batch.Table, batch.Seq, batch.Size())
	for _, r := range batch.Records {
		c := r.Clone()
		c.Rename(from, to)
		out.Add(c)
	}
	return out
}

// Sanitize returns the record as a parameter map with external object
// identifiers converted to their string form.
func Sanitize(record *models.Record) map[string]interface{} {
	out := make(map[string]interface{}, record.Len())
	for _, k := range record.Keys() {
		v, _ := record.Get(k)
		out[k] = SanitizeValue(v)
	}
	return out
}

// SanitizeValue converts a single value. Anything that is not an object
// identifier passes through unchanged.
func SanitizeValue(v interface{}) interface{} {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case *primitive.ObjectID:
		if id == nil {
			return nil
		}
		return id.Hex()
	default:
		return v
	}
}

// Columnar flattens a batch into a column list taken from the first record
// and one positional value tuple per record. A record missing a column
// contributes nil in that position.
func Columnar(batch *models.Batch) ([]string, [][]interface{}) {
	columns := batch.Columns()
	if columns == nil {
		return nil, nil
	}
	cols := make([]string, len(columns))
	copy(cols, columns)

	rows := make([][]interface{}, 0, batch.Size())
	for _, r := range batch.Records {
		row := make([]interface{}, len(cols))
		for i, c := range cols {
			row[i], _ = r.Get(c)
		}
		rows = append(rows, row)
	}
	return cols, rows
}

// Documents converts a batch into ordered BSON documents, one per record.
func Documents(batch *models.Batch) []interface{} {
	docs := make([]interface{}, 0, batch.Size())
	for _, r := range batch.Records {
		doc := make(bson.D, 0, r.Len())
		for _, k := range r.Keys() {
			v, _ := r.Get(k)
			doc = append(doc, bson.E{Key: k, Value: v})
		}
		docs = append(docs, doc)
	}
	return docs
}
