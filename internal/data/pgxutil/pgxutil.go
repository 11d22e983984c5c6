// Package pgxutil holds transaction and raw-connection helpers shared by the Postgres repositories.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Advisory lock keys. The two-arg (major, minor) form keeps this service's locks apart
// from other applications sharing the database.
const (
	AdvisoryLockMajor        int32 = 4100
	AdvisoryLockReclaimStale int32 = 1
	AdvisoryLockRatioEpoch   int32 = 2
	AdvisoryLockMigrations   int32 = 3
)

// SQLTxConfig groups parameters for WithSQLTx.
type SQLTxConfig struct {
	Opts *sql.TxOptions
	Fn   func(*sql.Tx) error
}

// WithSQLTx runs cfg.Fn within a database/sql transaction. The transaction is committed when
// Fn returns nil and rolled back otherwise.
func WithSQLTx(ctx context.Context, db *sql.DB, cfg SQLTxConfig) (err error) {
	if cfg.Fn == nil {
		return errors.New("transaction func is required")
	}
	tx, err := db.BeginTx(ctx, cfg.Opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
	}()
	if err = cfg.Fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// TryAdvisoryXactLock attempts pg_try_advisory_xact_lock(major, minor) inside tx.
// The lock is released when the transaction ends.
func TryAdvisoryXactLock(ctx context.Context, tx *sql.Tx, major, minor int32) (bool, error) {
	var locked bool
	if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", major, minor).Scan(&locked); err != nil {
		return false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	return locked, nil
}

// WithSessionAdvisoryLock holds pg_advisory_lock(major, minor) on one pooled connection while fn
// runs with that connection. It blocks until the lock is free or ctx ends.
func WithSessionAdvisoryLock(ctx context.Context, db *sql.DB, major, minor int32, fn func(*pgx.Conn) error) error {
	return WithPgxConn(ctx, db, func(conn *pgx.Conn) (err error) {
		if _, err = conn.Exec(ctx, "SELECT pg_advisory_lock($1, $2)", major, minor); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		defer func() {
			if _, uerr := conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1, $2)", major, minor); uerr != nil {
				err = errors.Join(err, fmt.Errorf("release advisory lock: %w", uerr))
			}
		}()
		return fn(conn)
	})
}

// WithPgxConn acquires a *pgx.Conn via the stdlib bridge and executes fn with it.
// Used for driver features database/sql does not expose, such as LISTEN/NOTIFY.
func WithPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	return conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		return fn(std.Conn())
	})
}
