// Package store provides the persistence layer of the migration engine.
//
// Two databases are involved:
//
//   - The engine database (DuckDB, file-backed or in-memory) holds the
//     engine's own state: findings, the audit log and the task status
//     settings. Its schema is created by the migrations subpackage.
//   - The host database is the legacy platform being migrated. It is
//     accessed read-mostly through HostDB, which discovers tables and
//     text columns via information_schema instead of a fixed schema, so
//     the scanner survives host versions it has never seen.
//
// The findings and log tables keep the column layout of the legacy
// reporting format; exported reports from the engine stay comparable
// with historical ones.
package store
