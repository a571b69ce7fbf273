package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/colgraph/internal/queryir"
)

// Compile converts a query to parameterized SQLite SQL.
// Returns (sql, params, error) tuple.
//
// Every identifier is double-quoted, so dotted column paths such as
// "baz.y" are plain column names. Every Scan orders by rowid, so a row
// range always names the same rows.
func Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Scan:
		sql := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid LIMIT ? OFFSET ?",
			columnList(query.Columns), QuoteIdent(query.Table))
		return sql, []any{query.Limit, query.Offset}, nil
	case queryir.Count:
		return fmt.Sprintf("SELECT COUNT(*) FROM %s", QuoteIdent(query.Table)), nil, nil
	case queryir.Create:
		defs := make([]string, len(query.Columns))
		for i, c := range query.Columns {
			defs[i] = QuoteIdent(c) + " INTEGER NOT NULL"
		}
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s; CREATE TABLE %s (%s)",
			QuoteIdent(query.Table), QuoteIdent(query.Table), strings.Join(defs, ", "))
		return sql, nil, nil
	case queryir.Insert:
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(query.Columns)), ", ")
		sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			QuoteIdent(query.Table), columnList(query.Columns), marks)
		return sql, nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// TableInfo returns the PRAGMA listing the columns of table.
func TableInfo(table string) string {
	return fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(table))
}

// QuoteIdent quotes an SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}
