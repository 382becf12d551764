// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

// execRawProvider is a small interface used to accept either *bun.DB or *bun.Tx
// since both expose NewRaw(...).* methods returning *bun.RawQuery.
type execRawProvider interface {
	NewRaw(query string, args ...interface{}) *bun.RawQuery
}

// ExecRaw executes a raw SQL statement using the provided Bun DB or transaction.
func ExecRaw(ctx context.Context, exec execRawProvider, query string, args ...interface{}) (sql.Result, error) {
	return exec.NewRaw(query, args...).Exec(ctx)
}

// QueryRawInto runs a raw query and scans the result into dest using Bun's RawQuery.Scan.
func QueryRawInto(ctx context.Context, exec execRawProvider, dest interface{}, query string, args ...interface{}) error {
	return exec.NewRaw(query, args...).Scan(ctx, dest)
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func WithTx(ctx context.Context, bdb *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) error {
	return bdb.RunInTx(ctx, nil, fn)
}
