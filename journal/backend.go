package journal

import "context"

// Backend is the keyed transactional storage substrate entries live in.
//
// Every method runs as exactly one transaction: either all of its effects
// commit or none do. Conflicting transactions on the same keys are
// serialized by the backend; the journal core performs no locking of its own.
//
// Rent amounts are computed by the Service and passed in so that balance
// changes commit in the same transaction as the account they pay for.
type Backend interface {
	// PutCounter provisions owner's sequence counter and debits rent.
	// Returns ErrAlreadyExists or ErrAllocationFailed.
	PutCounter(ctx context.Context, c *SequenceCounter, rent int64) error

	// GetCounter returns owner's sequence counter or ErrCounterNotFound.
	GetCounter(ctx context.Context, owner Owner) (*SequenceCounter, error)

	// InsertEntry advances e.Owner's counter from prevCount to e.ID, stores e
	// with Version 1 and debits rent.
	// Returns ErrConcurrentModification if the counter is no longer at
	// prevCount, ErrAlreadyExists if the entry key is occupied and
	// ErrAllocationFailed if the owner cannot pay.
	InsertEntry(ctx context.Context, prevCount uint64, e *Entry, rent int64) error

	// GetEntry returns the entry at key or ErrNotFound.
	GetEntry(ctx context.Context, key Key) (*Entry, error)

	// UpdateEntry rewrites the mutable fields of e, resizing its storage to
	// e.Space(). The write is conditioned on the stored owner being e.Owner
	// and the stored version being expectedVersion. A positive delta is
	// debited from the owner, a negative one credited.
	// Returns ErrNotFound, ErrConcurrentModification or ErrAllocationFailed.
	UpdateEntry(ctx context.Context, e *Entry, expectedVersion uint64, delta int64) error

	// DeleteEntry removes the entry at key, conditioned on owner and
	// expectedVersion, and credits refund to owner.
	// Returns ErrNotFound or ErrConcurrentModification.
	DeleteEntry(ctx context.Context, key Key, expectedVersion uint64, refund int64) error

	// Balance returns owner's funding balance. Unknown owners have zero.
	Balance(ctx context.Context, owner Owner) (int64, error)

	// Deposit credits amount to owner and returns the new balance.
	Deposit(ctx context.Context, owner Owner, amount int64) (int64, error)
}
