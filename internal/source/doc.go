// Package source provides the IOSource implementations input layers read
// from: an in-memory table split into partitions, and a SQLite table whose
// reads push the requested column list down into the SELECT.
package source
