package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrSchemaMissing means client_state does not exist yet, open the store
	// with AutoMigrate to create it.
	ErrSchemaMissing = errors.New("client_state table missing")

	// ErrUnavailable covers connection loss and server shutdown, the session
	// layer treats it like any other storage failure.
	ErrUnavailable = errors.New("postgres unavailable")
)

// classify tags err with the operation that failed and, for server errors
// the store cares about, one of the sentinels above.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var connErr *pgconn.ConnectError
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		if errors.As(err, &connErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
			return fmt.Errorf("postgres %s: %w: %w", op, ErrUnavailable, err)
		}
		return fmt.Errorf("postgres %s: %w", op, err)
	}

	switch {
	case pgErr.Code == pgerrcode.UndefinedTable:
		return fmt.Errorf("postgres %s: %w", op, ErrSchemaMissing)
	case pgErr.Code == pgerrcode.QueryCanceled:
		return fmt.Errorf("postgres %s: statement canceled: %w", op, err)
	case pgerrcode.IsConnectionException(pgErr.Code),
		pgerrcode.IsOperatorIntervention(pgErr.Code),
		pgerrcode.IsInsufficientResources(pgErr.Code):
		return fmt.Errorf("postgres %s: %w: %s (%s)", op, ErrUnavailable, pgErr.Message, pgErr.Code)
	}

	return fmt.Errorf("postgres %s: %s (%s): %w", op, pgErr.Message, pgErr.Code, err)
}
