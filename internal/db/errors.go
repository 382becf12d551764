// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error kinds. ErrDuplicate and ErrForeignKey both match ErrConstraint.
var (
	ErrConnectivity   = errors.New("store unreachable")
	ErrConstraint     = errors.New("constraint violation")
	ErrDuplicate      = fmt.Errorf("duplicate record: %w", ErrConstraint)
	ErrForeignKey     = fmt.Errorf("referenced record missing: %w", ErrConstraint)
	ErrMalformedInput = errors.New("malformed input")
	ErrNotFound       = errors.New("record not found")
)

// Error is the failure outcome of a store operation.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Err != nil && e.Kind != nil:
		fmt.Fprintf(&b, "%v: %v", e.Kind, e.Err)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// MapDBError inspects low-level driver errors and tags the ones it
// recognizes with a kind sentinel. Unrecognized errors are returned
// unchanged. Postgres and MySQL errors are matched by code; SQLite and
// anything else falls back to the message text.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if kind := classify(err); kind != nil {
		return &Error{Kind: kind, Err: err}
	}
	return err
}

// opError wraps err as the outcome of op.
func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		if se.Op == "" {
			return &Error{Op: op, Kind: se.Kind, Err: se.Err}
		}
		return err
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

// malformed reports a validation failure for op. No statement has been
// issued when this is returned.
func malformed(op string, err error) error {
	return &Error{Op: op, Kind: ErrMalformedInput, Err: err}
}

func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return ErrConnectivity
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrForeignKey
		case "23502", "22001", "22003", "22P02", "22007", "22008":
			return ErrMalformedInput
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return ErrConnectivity
		}
		return nil
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return ErrConnectivity
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return ErrDuplicate
		case 1216, 1452:
			return ErrForeignKey
		case 1048, 1364, 1406, 1264, 1292:
			return ErrMalformedInput
		case 1045, 1049:
			return ErrConnectivity
		}
		return nil
	}

	le := strings.ToLower(err.Error())
	switch {
	case strings.Contains(le, "foreign key"):
		return ErrForeignKey
	case strings.Contains(le, "duplicate") || strings.Contains(le, "unique"):
		return ErrDuplicate
	case strings.Contains(le, "not null constraint") || strings.Contains(le, "cannot be null"):
		return ErrMalformedInput
	case strings.Contains(le, "connection refused") || strings.Contains(le, "no such host") ||
		strings.Contains(le, "dial tcp") || strings.Contains(le, "i/o timeout") ||
		strings.Contains(le, "unable to open database"):
		return ErrConnectivity
	}
	return nil
}
