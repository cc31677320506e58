// Package erd turns SQL DDL into a Graphviz entity-relationship diagram.
//
// Only CREATE TABLE statements and their inline FOREIGN KEY clauses are
// read. Schema prefixes are dropped, so dbo.books and books are the same
// table.
package erd

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	tablePattern = regexp.MustCompile(`(?is)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([\w\.\[\]"` + "`" + `]+)\s*\((.*?)\)\s*;`)
	fkPattern    = regexp.MustCompile(`(?is)FOREIGN\s+KEY\s*\(([^)]+)\)\s+REFERENCES\s+([\w\.\[\]"` + "`" + `]+)\s*\(([^)]+)\)`)
)

// constraint keywords that start a table element which is not a column
var constraintWords = map[string]bool{
	"CONSTRAINT": true,
	"PRIMARY":    true,
	"FOREIGN":    true,
	"UNIQUE":     true,
	"CHECK":      true,
	"INDEX":      true,
	"KEY":        true,
}

// Table is one parsed CREATE TABLE statement.
type Table struct {
	Name    string
	Columns []string
}

// ForeignKey is one FOREIGN KEY ... REFERENCES clause.
type ForeignKey struct {
	Table      string
	Columns    string
	RefTable   string
	RefColumns string
}

// Schema is the parsed DDL, tables in declaration order.
type Schema struct {
	Tables      []Table
	ForeignKeys []ForeignKey
}

// Parse extracts tables and foreign keys from sql. A table declared twice
// keeps its first position and its last definition.
func Parse(sql string) *Schema {
	s := &Schema{}
	index := make(map[string]int)

	for _, m := range tablePattern.FindAllStringSubmatch(sql, -1) {
		name := unqualify(m[1])
		body := m[2]

		t := Table{Name: name, Columns: columns(body)}
		if i, ok := index[name]; ok {
			s.Tables[i] = t
		} else {
			index[name] = len(s.Tables)
			s.Tables = append(s.Tables, t)
		}

		for _, fk := range fkPattern.FindAllStringSubmatch(body, -1) {
			s.ForeignKeys = append(s.ForeignKeys, ForeignKey{
				Table:      name,
				Columns:    cleanList(fk[1]),
				RefTable:   unqualify(fk[2]),
				RefColumns: cleanList(fk[3]),
			})
		}
	}
	return s
}

// WriteDOT renders the schema as a Graphviz digraph with one record node
// per table and one edge per foreign key, child to parent.
func (s *Schema) WriteDOT(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph erd {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=record, fontname=\"Helvetica\"];\n")
	for _, t := range s.Tables {
		fields := make([]string, 0, len(t.Columns)+1)
		fields = append(fields, escapeRecord(t.Name))
		if len(t.Columns) > 0 {
			cols := make([]string, len(t.Columns))
			for i, c := range t.Columns {
				cols[i] = escapeRecord(c) + `\l`
			}
			fields = append(fields, strings.Join(cols, ""))
		}
		fmt.Fprintf(&b, "  %s [label=\"{%s}\"];\n", quote(t.Name), strings.Join(fields, "|"))
	}
	for _, fk := range s.ForeignKeys {
		fmt.Fprintf(&b, "  %s -> %s [label=%s];\n",
			quote(fk.Table), quote(fk.RefTable), quote(fk.Columns+" → "+fk.RefColumns))
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func columns(body string) []string {
	var cols []string
	for _, part := range splitTopLevel(body) {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		if constraintWords[strings.ToUpper(fields[0])] {
			continue
		}
		cols = append(cols, trimIdent(fields[0]))
	}
	return cols
}

// splitTopLevel splits on commas outside parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func unqualify(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return trimIdent(name)
}

func trimIdent(s string) string {
	return strings.Trim(s, "[]\"`")
}

func cleanList(s string) string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = trimIdent(strings.TrimSpace(p))
	}
	return strings.Join(parts, ", ")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func escapeRecord(s string) string {
	r := strings.NewReplacer(`{`, `\{`, `}`, `\}`, `|`, `\|`, `<`, `\<`, `>`, `\>`, `"`, `\"`)
	return r.Replace(s)
}
