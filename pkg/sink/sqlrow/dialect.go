package sqlrow

import (
	"fmt"
	"strings"
)

// Dialect captures what differs between relational row stores when building
// a parameterized multi-row INSERT.
type Dialect struct {
	// Name is the sink type the dialect is registered under
	Name string
	// Driver is the database/sql driver name
	Driver string
	// MaxParams bounds the bind parameters of one statement
	MaxParams int
	// MaxRows bounds the VALUES tuples of one statement (0 = no limit)
	MaxRows int
	// ColumnsQuery lists the column names of the table given as its only parameter
	ColumnsQuery string

	quote       func(ident string) string
	placeholder func(n int) string
}

var (
	// SQLServer quotes with brackets and binds @p1..@pN. A request carries at
	// most 2100 parameters and a VALUES list at most 1000 rows.
	SQLServer = Dialect{
		Name:         "sqlserver",
		Driver:       "sqlserver",
		MaxParams:    2000,
		MaxRows:      1000,
		ColumnsQuery: "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = @p1",
		quote: func(ident string) string {
			return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
		},
		placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
	}

	// MySQL quotes with backticks and binds positional question marks.
	MySQL = Dialect{
		Name:         "mysql",
		Driver:       "mysql",
		MaxParams:    65535,
		ColumnsQuery: "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?",
		quote: func(ident string) string {
			return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
		},
		placeholder: func(int) string { return "?" },
	}

	// Postgres quotes with double quotes and binds $1..$N.
	Postgres = Dialect{
		Name:         "postgres",
		Driver:       "pgx",
		MaxParams:    65535,
		ColumnsQuery: "SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1",
		quote: func(ident string) string {
			return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
		},
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

// Quote returns ident as a quoted identifier.
func (d Dialect) Quote(ident string) string {
	return d.quote(ident)
}

// Statement is one parameterized INSERT and its arguments.
type Statement struct {
	SQL  string
	Args []interface{}
}

// RowsPerStatement returns how many rows of width columns fit in one statement.
func (d Dialect) RowsPerStatement(columns int) int {
	if columns <= 0 {
		return 0
	}
	n := d.MaxParams / columns
	if n < 1 {
		n = 1
	}
	if d.MaxRows > 0 && n > d.MaxRows {
		n = d.MaxRows
	}
	return n
}

// Plan splits rows into as few INSERT statements as the dialect limits allow.
// Rows must be positional with respect to columns.
func (d Dialect) Plan(table string, columns []string, rows [][]interface{}) []Statement {
	if len(columns) == 0 || len(rows) == 0 {
		return nil
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.quote(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", d.quote(table), strings.Join(quoted, ", "))

	per := d.RowsPerStatement(len(columns))
	stmts := make([]Statement, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		stmts = append(stmts, d.statement(prefix, len(columns), rows[start:end]))
	}
	return stmts
}

func (d Dialect) statement(prefix string, width int, rows [][]interface{}) Statement {
	var b strings.Builder
	b.WriteString(prefix)
	args := make([]interface{}, 0, width*len(rows))
	n := 0
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < width; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			n++
			b.WriteString(d.placeholder(n))
			args = append(args, row[j])
		}
		b.WriteByte(')')
	}
	return Statement{SQL: b.String(), Args: args}
}

// Unknown returns the columns absent from the table, in batch order.
func Unknown(columns []string, table map[string]struct{}) []string {
	var missing []string
	for _, c := range columns {
		if _, ok := table[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
