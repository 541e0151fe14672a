// Package journal implements owner-scoped journal entries on top of a keyed,
// transactional storage substrate.
//
// Each owner has one [SequenceCounter] that hands out entry ids starting at 1.
// An [Entry] lives at a storage key derived from (id, owner), so an owner can
// only ever address its own entries.
//
// # Lifecycle
//
//	NonExistent --Create--> Active --Update--> Active --Delete--> NonExistent
//
// Every [Service] operation is a single all-or-nothing [Backend] transaction.
// Validation failures abort before anything is written.
//
// # Limits
//
// Titles are limited to [MaxTitleLen] bytes and contents to [MaxContentLen]
// bytes. Longer input is rejected, never truncated.
//
// # Storage
//
// Entries are sized exactly to their encoded layout (see [EntrySpace]). Owners
// pay rent for the bytes they occupy: creating or growing an entry debits the
// owner's balance, shrinking or deleting one credits it back.
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrTitleTooLong] - title exceeds 50 bytes
//   - [ErrContentTooLong] - content exceeds 500 bytes
//   - [ErrInvalidID] - counter overflow or id mismatch
//   - [ErrNotFound] - no entry at (id, owner)
//   - [ErrCounterNotFound] - owner has no sequence counter
//   - [ErrUnauthorized] - caller does not own the entry or counter
//   - [ErrAllocationFailed] - owner cannot fund the allocation
//   - [ErrConcurrentModification] - a conflicting transaction won
//
// Use [Code] to turn any of them into a stable numeric code.
package journal
