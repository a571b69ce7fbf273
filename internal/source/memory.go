package source

import (
	"context"
	"fmt"

	"github.com/roach88/colgraph/internal/columnar"
	"github.com/roach88/colgraph/internal/graph"
	"github.com/roach88/colgraph/internal/tracer"
)

// Memory serves an in-memory table split into contiguous row ranges.
type Memory struct {
	name       string
	table      *columnar.Table
	partitions int
}

var _ graph.IOSource = (*Memory)(nil)

// NewMemory splits table into the given number of partitions. Earlier
// partitions receive the remainder rows.
func NewMemory(name string, table *columnar.Table, partitions int) (*Memory, error) {
	if partitions < 1 {
		return nil, fmt.Errorf("source %q: partition count %d must be at least 1", name, partitions)
	}
	if table == nil {
		return nil, fmt.Errorf("source %q: table is required", name)
	}
	return &Memory{name: name, table: table, partitions: partitions}, nil
}

func (m *Memory) Name() string       { return m.name }
func (m *Memory) Form() *tracer.Form { return m.table.Form() }
func (m *Memory) Partitions() int    { return m.partitions }

// Read returns one partition restricted to columns.
func (m *Memory) Read(ctx context.Context, partition int, columns []string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start, end, err := partitionBounds(m.table.Len(), m.partitions, partition)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", m.name, err)
	}
	t, err := m.table.Select(columns)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", m.name, err)
	}
	return t.Slice(start, end)
}

// partitionBounds returns the row range [start, end) of partition p when
// rows are split into n contiguous partitions.
func partitionBounds(rows, n, p int) (start, end int, err error) {
	if p < 0 || p >= n {
		return 0, 0, fmt.Errorf("partition %d out of range [0, %d)", p, n)
	}
	size, rem := rows/n, rows%n
	start = p*size + min(p, rem)
	end = start + size
	if p < rem {
		end++
	}
	return start, end, nil
}
