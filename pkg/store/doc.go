// Package store persists workspaces, stories and their configuration records.
//
// [Repository] is the capability every consumer depends on. Two
// implementations exist: [PostgresStore] for Postgres (and Supabase) via the
// pgx database/sql driver, and [MemoryStore] for tests and local development.
//
// Snapshot imports go through [Repository.ApplySnapshot], which writes
// collections in dependency order: workspaces, then the records that hang
// off a workspace, then stories parent-first. The whole import succeeds or
// fails as a unit.
package store
