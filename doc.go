// Package siardlite translates SIARD archives (Software Independent
// Archiving of Relational Databases) into self-contained SQL scripts that
// SQLite can execute to recreate the archived database: schemas, tables,
// primary keys, unique indexes and row data.
//
// # Pipeline
//
// A translation runs in two phases over header/metadata.xml:
//
//  1. Type pre-pass: every complex type (distinct, udt, array) declared in
//     any schema is registered in a run-scoped type table, so that udt
//     attributes may reference types declared in later schemas. Arrays
//     nested inside udt attributes are lifted into synthetic named array
//     types.
//
//  2. Main pass: for each schema (optionally filtered by a
//     case-insensitive regex) and each table, emit CREATE TABLE with
//     SQLite affinities, stream one INSERT INTO per row from the table's
//     content XML, then emit CREATE UNIQUE INDEX for each candidate key.
//
// Complex column values flatten into JSON-producing SQL expressions
// (json_array, json_object); binary payloads, whether inline via SIARD
// \u00XX escapes or external LOB files, become X'...' blob literals.
//
// # Usage
//
// Create a Translator, run it against a sink, and close it:
//
//	tr, err := siardlite.New("archive.siard")
//	if err != nil { ... }
//	defer tr.Close()
//
//	f, _ := os.Create("out.sql")
//	defer f.Close()
//	err = tr.Run(f)
//
// The input may be a .siard/.zip file or an exploded directory holding
// header/metadata.xml and content/. External LOB files may live inside
// nested archives; the internal/archive accessor resolves URIs whose path
// segments cross .zip/.siard boundaries.
//
// # Resource model
//
// Each Translator owns a temporary workspace directory for extracted
// archive members, created under TMPDIR (default /tmp) and removed by
// Close. Translation is single-threaded; output order is deterministic
// and equals metadata iteration order.
package siardlite
