// Package store reads staged source tables and manages the local staging
// database.
//
// Every reader implements Reader and returns domain.SourceRecords tagged with
// the timestamp kind of the table, so the normalizer never needs to know
// which engine produced them:
//
//   - SQLReader: DuckDB (the default staging file) and MySQL, via database/sql
//   - PGReader: PostgreSQL, via a pgx pool
//   - MemoryReader: in-memory tables for dry runs and tests
//
// Table and column names come from configuration and are spliced into SQL,
// so they are checked against ValidIdentifier; values are always bound.
//
// DuckDB staging (CreateSchema, StageRows, Summarize) uses the native
// appender and upserts through a scratch table, which makes reloading a
// file idempotent.
package store
