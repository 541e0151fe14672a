// Package dynamostore implements journal.Backend on DynamoDB.
//
// Every backend call is a single DynamoDB request; multi-item changes use
// TransactWriteItems so that counter, entry and balance writes commit
// together or not at all.
//
// # Tables
//
// Three tables, each with a string partition key named "pk":
//
//   - entries: one item per journal entry, pk = journal.Key.String()
//   - counters: one item per owner, pk = journal.CounterKey(owner)
//   - balances: one item per owner, pk = owner in base58
//
// # Conflict detection
//
// Creates are conditioned on the counter still holding the value read before
// the transaction, so two concurrent creates for one owner cannot both
// succeed with the same id. Updates and deletes are conditioned on the
// entry's version attribute.
//
// Enable a stream (NEW_AND_OLD_IMAGES) on the entries table to feed the
// stream package's activity log.
package dynamostore
