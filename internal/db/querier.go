package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotConnected is returned by Unavailable(nil).
var ErrNotConnected = errors.New("database not connected")

// Querier represents the minimal database operations used by services.
// Both *pgxpool.Pool and pgxmock pools satisfy this interface.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Unavailable is a Querier for a store that could not be reached. Every call
// fails with err, so callers report the connect error instead of panicking.
func Unavailable(err error) Querier {
	if err == nil {
		err = ErrNotConnected
	}
	return unavailable{err: err}
}

type unavailable struct{ err error }

func (u unavailable) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, u.err
}

func (u unavailable) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, u.err
}

func (u unavailable) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{err: u.err}
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
