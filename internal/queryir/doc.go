// Package queryir describes the statements a table source issues, as data.
//
// Sources build a Query and hand it to a backend compiler (querysql for
// SQLite) instead of formatting SQL themselves. Keeping the statement
// abstract lets tests assert on what a source reads, in particular which
// columns a projected input pushes down, without parsing SQL.
//
// SEALED INTERFACE:
//
// Query is sealed with the marker method pattern. Only types in this
// package implement it, so backend compilers can switch exhaustively.
//
// Query types:
//   - Scan: read some columns of a row range, in insertion order
//   - Count: count the rows of a table
//   - Create: (re)create a table of INTEGER columns
//   - Insert: insert one row into a table
package queryir
