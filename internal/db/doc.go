// Package db is the relational store gateway for Markbook.
//
// It owns the schema (embedded, versioned migrations per dialect) and a
// small set of typed operations over teachers, classes, students, exams,
// answer scripts, evaluated answers and anomaly flags.
//
// Construction
//   - `NewStoreFromDSN(dbType, dsn)` opens a pooled `*bun.DB` for "sqlite",
//     "postgres" or "mysql" and returns a `Store`. There is no package-level
//     store; callers own the returned value and must `Close` it.
//   - `InitializeSchema` applies pending migrations. It is idempotent and,
//     like every other operation, reports failures to the caller.
//
// Errors
//   - Every operation returns either nil or a `*Error` carrying the
//     operation name and one of the kind sentinels (`ErrConnectivity`,
//     `ErrConstraint`, `ErrDuplicate`, `ErrForeignKey`, `ErrMalformedInput`,
//     `ErrNotFound`). Match kinds with `errors.Is`.
//
// Testing notes
//   - Prefer an in-memory SQLite DSN such as
//     "file:<name>?mode=memory&cache=shared" for tests that need real
//     constraint semantics; foreign keys are switched on automatically.
package db
