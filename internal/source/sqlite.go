package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/colgraph/internal/columnar"
	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/queryir"
	"github.com/roach88/colgraph/internal/querysql"
	"github.com/roach88/colgraph/internal/tracer"
)

// SQLite serves a table of INTEGER columns. Column names are dotted paths
// ("baz.y") so nested records map onto flat tables. Each Read selects only
// the requested columns.
type SQLite struct {
	db         *sql.DB
	table      string
	columns    []string
	form       *tracer.Form
	rows       int
	partitions int
	logger     *slog.Logger
	onQuery    func(query string)
}

var _ graph.IOSource = (*SQLite)(nil)

// SQLiteOption configures a SQLite source.
type SQLiteOption func(*SQLite)

// WithSQLiteLogger sets the logger that receives each query at debug level.
func WithSQLiteLogger(l *slog.Logger) SQLiteOption {
	return func(s *SQLite) { s.logger = l }
}

// WithQueryHook registers fn to observe every SELECT the source issues.
func WithQueryHook(fn func(query string)) SQLiteOption {
	return func(s *SQLite) { s.onQuery = fn }
}

// OpenSQLite opens the database at path and serves table split into the
// given number of partitions. The column list and row count are read once
// at open time.
func OpenSQLite(ctx context.Context, path, table string, partitions int, opts ...SQLiteOption) (*SQLite, error) {
	if partitions < 1 {
		return nil, fmt.Errorf("partition count %d must be at least 1", partitions)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s := &SQLite{
		db:         db,
		table:      table,
		partitions: partitions,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.introspect(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// openDB opens a SQLite database and applies the connection settings every
// colgraph database uses.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return db, nil
}

func (s *SQLite) introspect(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, querysql.TableInfo(s.table))
	if err != nil {
		return fmt.Errorf("table %q: %w", s.table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("table %q: %w", s.table, err)
		}
		if !strings.EqualFold(typ, "INTEGER") {
			return fmt.Errorf("table %q: column %q has type %q, want INTEGER", s.table, name, typ)
		}
		s.columns = append(s.columns, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("table %q: %w", s.table, err)
	}
	if len(s.columns) == 0 {
		return fmt.Errorf("table %q does not exist or has no columns", s.table)
	}
	slices.Sort(s.columns)

	form, err := tracer.FormFromColumns(s.columns)
	if err != nil {
		return fmt.Errorf("table %q: %w", s.table, err)
	}
	s.form = form

	q, _, err := querysql.Compile(queryir.Count{Table: s.table})
	if err != nil {
		return err
	}
	if err := s.db.QueryRowContext(ctx, q).Scan(&s.rows); err != nil {
		return fmt.Errorf("table %q: count rows: %w", s.table, err)
	}
	return nil
}

func (s *SQLite) Name() string       { return s.table }
func (s *SQLite) Form() *tracer.Form { return s.form }
func (s *SQLite) Partitions() int    { return s.partitions }

// Rows returns the row count observed at open time.
func (s *SQLite) Rows() int { return s.rows }

// Read selects the requested columns of one partition, ordered by rowid.
func (s *SQLite) Read(ctx context.Context, partition int, columns []string) (any, error) {
	start, end, err := partitionBounds(s.rows, s.partitions, partition)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", s.table, err)
	}
	if columns == nil {
		columns = s.columns
	}
	for _, c := range columns {
		if !slices.Contains(s.columns, c) {
			return nil, fmt.Errorf("table %q: unknown column %q", s.table, c)
		}
	}

	query, params, err := querysql.Compile(queryir.Scan{
		Table:   s.table,
		Columns: columns,
		Limit:   end - start,
		Offset:  start,
	})
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", s.table, err)
	}
	s.logger.Debug("sqlite read", "table", s.table, "partition", partition, "query", query)
	if s.onQuery != nil {
		s.onQuery(query)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", s.table, err)
	}
	defer rows.Close()

	data := make(map[string][]int64, len(columns))
	for _, c := range columns {
		data[c] = make([]int64, 0, end-start)
	}
	vals := make([]sql.NullInt64, len(columns))
	dest := make([]any, len(columns))
	for i := range vals {
		dest[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("table %q: %w", s.table, err)
		}
		for i, c := range columns {
			if !vals[i].Valid {
				return nil, fmt.Errorf("table %q: NULL in column %q", s.table, c)
			}
			data[c] = append(data[c], vals[i].Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table %q: %w", s.table, err)
	}
	return columnar.NewTable(data)
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WriteSQLite creates table in the database at path and fills it with t.
// An existing table of the same name is replaced.
func WriteSQLite(ctx context.Context, path, table string, t *columnar.Table) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	columns := t.Columns()
	create, _, err := querysql.Compile(queryir.Create{Table: table, Columns: columns})
	if err != nil {
		return fmt.Errorf("table %q: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("table %q: %w", table, err)
	}

	stmt, _, err := querysql.Compile(queryir.Insert{Table: table, Columns: columns})
	if err != nil {
		return fmt.Errorf("table %q: %w", table, err)
	}
	insert, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("table %q: %w", table, err)
	}
	defer insert.Close()

	args := make([]any, len(columns))
	for row := 0; row < t.Len(); row++ {
		for i, c := range columns {
			col, _ := t.Column(c)
			args[i] = col[row]
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("table %q: row %d: %w", table, row, err)
		}
	}
	return tx.Commit()
}
