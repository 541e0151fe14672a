// Package sqlitestore implements journal.Backend on SQLite.
//
// Entries are stored in their encoded binary layout, sized exactly to their
// fields. Updates reallocate the stored bytes to the new size, zeroing any
// newly exposed region before the entry is re-encoded in place.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - a single connection, so transactions are serialized
//   - 5-second busy timeout for lock contention
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"github.com/jacentio/quill/journal"
)

//go:embed schema.sql
var schemaSQL string

// Store implements journal.Backend on a SQLite database.
type Store struct {
	db *sql.DB
}

var _ journal.Backend = (*Store)(nil)

// Open creates or opens a SQLite database at the given path.
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// PutCounter provisions owner's sequence counter and debits its rent.
func (s *Store) PutCounter(ctx context.Context, c *journal.SequenceCounter, rent int64) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO counters (pk, owner, count, data) VALUES (?, ?, ?, ?) ON CONFLICT(pk) DO NOTHING`,
			journal.CounterKey(c.Owner), c.Owner[:], int64(c.Count), data)
		if err != nil {
			return fmt.Errorf("insert counter: %w", err)
		}
		if err := expectOne(res, journal.ErrAlreadyExists); err != nil {
			return err
		}
		return debit(ctx, tx, c.Owner, rent)
	})
}

// GetCounter returns owner's sequence counter.
func (s *Store) GetCounter(ctx context.Context, owner journal.Owner) (*journal.SequenceCounter, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM counters WHERE pk = ?`, journal.CounterKey(owner),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, journal.ErrCounterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select counter: %w", err)
	}
	return journal.UnmarshalCounter(data)
}

// InsertEntry advances the owner's counter, stores e and debits rent in one
// transaction.
func (s *Store) InsertEntry(ctx context.Context, prevCount uint64, e *journal.Entry, rent int64) error {
	data, err := e.MarshalBinary()
	if err != nil {
		return err
	}
	counter, err := (&journal.SequenceCounter{Count: e.ID, Owner: e.Owner}).MarshalBinary()
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE counters SET count = ?, data = ? WHERE pk = ? AND owner = ? AND count = ?`,
			int64(e.ID), counter, journal.CounterKey(e.Owner), e.Owner[:], int64(prevCount))
		if err != nil {
			return fmt.Errorf("advance counter: %w", err)
		}
		if err := expectOne(res, journal.ErrConcurrentModification); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO entries (pk, id, owner, version, space, data) VALUES (?, ?, ?, 1, ?, ?)
			 ON CONFLICT(pk) DO NOTHING`,
			e.Key().String(), int64(e.ID), e.Owner[:], len(data), data)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		if err := expectOne(res, journal.ErrAlreadyExists); err != nil {
			return err
		}

		return debit(ctx, tx, e.Owner, rent)
	})
}

// GetEntry returns the entry stored at key.
func (s *Store) GetEntry(ctx context.Context, key journal.Key) (*journal.Entry, error) {
	var (
		data    []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, version FROM entries WHERE pk = ?`, key.String(),
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, journal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select entry: %w", err)
	}

	e, err := journal.UnmarshalEntry(data)
	if err != nil {
		return nil, err
	}
	e.Version = uint64(version)
	return e, nil
}

// UpdateEntry resizes the stored entry to e.Space(), re-encodes it in place
// and settles the rent delta.
func (s *Store) UpdateEntry(ctx context.Context, e *journal.Entry, expectedVersion uint64, delta int64) error {
	pk := e.Key().String()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			data    []byte
			owner   []byte
			version int64
		)
		err := tx.QueryRowContext(ctx,
			`SELECT data, owner, version FROM entries WHERE pk = ?`, pk,
		).Scan(&data, &owner, &version)
		if errors.Is(err, sql.ErrNoRows) {
			return journal.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("select entry: %w", err)
		}
		if string(owner) != string(e.Owner[:]) || uint64(version) != expectedVersion {
			return journal.ErrConcurrentModification
		}

		data = journal.Realloc(data, e.Space())
		if err := journal.EncodeInto(data, e); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE entries SET data = ?, space = ?, version = version + 1 WHERE pk = ? AND version = ?`,
			data, len(data), pk, version)
		if err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		if err := expectOne(res, journal.ErrConcurrentModification); err != nil {
			return err
		}

		switch {
		case delta > 0:
			return debit(ctx, tx, e.Owner, delta)
		case delta < 0:
			return credit(ctx, tx, e.Owner, -delta)
		}
		return nil
	})
}

// DeleteEntry removes the entry at key and credits refund to its owner.
func (s *Store) DeleteEntry(ctx context.Context, key journal.Key, expectedVersion uint64, refund int64) error {
	pk := key.String()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM entries WHERE pk = ? AND owner = ? AND version = ?`,
			pk, key.Owner[:], int64(expectedVersion))
		if err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE pk = ?`, pk).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return journal.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("select entry: %w", err)
			}
			return journal.ErrConcurrentModification
		}

		if refund > 0 {
			return credit(ctx, tx, key.Owner, refund)
		}
		return nil
	})
}

// Balance returns owner's balance, zero if the owner was never funded.
func (s *Store) Balance(ctx context.Context, owner journal.Owner) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE pk = ?`, owner.String(),
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}

// Deposit credits amount to owner and returns the new balance.
func (s *Store) Deposit(ctx context.Context, owner journal.Owner, amount int64) (int64, error) {
	var balance int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := credit(ctx, tx, owner, amount); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx,
			`SELECT balance FROM balances WHERE pk = ?`, owner.String(),
		).Scan(&balance)
	})
	return balance, err
}

// debit subtracts amount from owner's balance, failing if it does not cover it.
func debit(ctx context.Context, tx *sql.Tx, owner journal.Owner, amount int64) error {
	if amount <= 0 {
		return nil
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE balances SET balance = balance - ? WHERE pk = ? AND balance >= ?`,
		amount, owner.String(), amount)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	return expectOne(res, journal.ErrAllocationFailed)
}

// credit adds amount to owner's balance, creating the row if needed. It
// fails with ErrInvalidAmount if the balance would exceed math.MaxInt64.
func credit(ctx context.Context, tx *sql.Tx, owner journal.Owner, amount int64) error {
	if amount < 0 {
		return journal.ErrInvalidAmount
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO balances (pk, owner, balance) VALUES (?, ?, ?)
		 ON CONFLICT(pk) DO UPDATE SET balance = balance + excluded.balance
		 WHERE balance <= ?`,
		owner.String(), owner[:], amount, math.MaxInt64-amount)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return expectOne(res, journal.ErrInvalidAmount)
}

// expectOne returns failure unless res affected exactly one row.
func expectOne(res sql.Result, failure error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return failure
	}
	return nil
}
