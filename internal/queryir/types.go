package queryir

// Query is a statement against one table.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Scan reads Columns of the rows [Offset, Offset+Limit) in insertion order.
//
// Translates to SQL:
//
//	SELECT "foo", "baz.y" FROM "events" ORDER BY rowid LIMIT ? OFFSET ?
type Scan struct {
	Table   string
	Columns []string // explicit column list; never empty
	Limit   int
	Offset  int
}

func (Scan) queryNode() {}

// Count counts the rows of Table.
type Count struct {
	Table string
}

func (Count) queryNode() {}

// Create drops Table if it exists and creates it with NOT NULL INTEGER
// Columns.
type Create struct {
	Table   string
	Columns []string
}

func (Create) queryNode() {}

// Insert inserts one row. Values are bound as parameters, one per column.
type Insert struct {
	Table   string
	Columns []string
}

func (Insert) queryNode() {}

// Compile-time checks that every statement implements Query.
var (
	_ Query = Scan{}
	_ Query = Count{}
	_ Query = Create{}
	_ Query = Insert{}
)
