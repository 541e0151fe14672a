package journal

import "errors"

var (
	// ErrTitleTooLong is returned when a title exceeds MaxTitleLen bytes.
	ErrTitleTooLong = errors.New("journal: title length exceeded the maximum limit of 50 characters")

	// ErrContentTooLong is returned when content exceeds MaxContentLen bytes.
	ErrContentTooLong = errors.New("journal: content length exceeded the maximum limit of 500 characters")

	// ErrInvalidID is returned when the sequence counter would overflow or
	// when the requested id does not match the stored entry.
	ErrInvalidID = errors.New("journal: invalid journal entry id")

	// ErrNotFound is returned when no entry exists at the requested key.
	ErrNotFound = errors.New("journal: entry not found")

	// ErrCounterNotFound is returned when the owner has no sequence counter.
	ErrCounterNotFound = errors.New("journal: sequence counter not found")

	// ErrUnauthorized is returned when the caller does not own the target.
	ErrUnauthorized = errors.New("journal: caller is not the owner")

	// ErrAllocationFailed is returned when the owner cannot fund an allocation.
	ErrAllocationFailed = errors.New("journal: insufficient balance for allocation")

	// ErrAlreadyExists is returned when the target key is already occupied.
	ErrAlreadyExists = errors.New("journal: account already exists")

	// ErrConcurrentModification is returned when a conflicting transaction
	// committed first. The caller may retry with a new transaction.
	ErrConcurrentModification = errors.New("journal: account was modified concurrently")

	// ErrInvalidAmount is returned for non-positive deposits.
	ErrInvalidAmount = errors.New("journal: amount must be positive")
)

// Error codes reported to callers. The first three keep the numbering of the
// on-chain program so existing clients can branch on them.
const (
	CodeOK                     uint32 = 0
	CodeInvalidID              uint32 = 6000
	CodeTitleTooLong           uint32 = 6001
	CodeContentTooLong         uint32 = 6002
	CodeNotFound               uint32 = 6100
	CodeCounterNotFound        uint32 = 6101
	CodeUnauthorized           uint32 = 6102
	CodeAllocationFailed       uint32 = 6103
	CodeAlreadyExists          uint32 = 6104
	CodeConcurrentModification uint32 = 6105
	CodeInvalidAmount          uint32 = 6106
	CodeInternal               uint32 = 6999
)

var codes = []struct {
	err  error
	code uint32
	msg  string
}{
	{ErrInvalidID, CodeInvalidID, "Invalid journal entry ID"},
	{ErrTitleTooLong, CodeTitleTooLong, "Title length exceeded the maximum limit of 50 characters"},
	{ErrContentTooLong, CodeContentTooLong, "Content length exceeded the maximum limit of 500 characters"},
	{ErrNotFound, CodeNotFound, "Journal entry not found"},
	{ErrCounterNotFound, CodeCounterNotFound, "Journal count account not initialized"},
	{ErrUnauthorized, CodeUnauthorized, "Signer is not the owner"},
	{ErrAllocationFailed, CodeAllocationFailed, "Insufficient funds for allocation"},
	{ErrAlreadyExists, CodeAlreadyExists, "Account already in use"},
	{ErrConcurrentModification, CodeConcurrentModification, "Account was modified by a concurrent transaction"},
	{ErrInvalidAmount, CodeInvalidAmount, "Amount must be positive"},
}

// Code maps err to its numeric code. nil maps to CodeOK and errors outside
// the taxonomy map to CodeInternal.
func Code(err error) uint32 {
	if err == nil {
		return CodeOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Message returns the human-readable text for code.
func Message(code uint32) string {
	switch code {
	case CodeOK:
		return "OK"
	case CodeInternal:
		return "Internal error"
	}
	for _, c := range codes {
		if c.code == code {
			return c.msg
		}
	}
	return "Unknown error"
}
