package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/quill/journal"
)

// Client is the subset of the DynamoDB API the store uses.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store implements journal.Backend on DynamoDB.
type Store struct {
	client Client
	config Config
}

var _ journal.Backend = (*Store)(nil)

// New creates a new Store instance.
func New(client Client, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// Config returns the store configuration.
func (s *Store) Config() Config {
	return s.config
}

// PutCounter provisions owner's sequence counter and debits its rent.
func (s *Store) PutCounter(ctx context.Context, c *journal.SequenceCounter, rent int64) error {
	item, err := attributevalue.MarshalMap(counterItem{
		PK:    journal.CounterKey(c.Owner),
		Owner: c.Owner[:],
		Count: c.Count,
	})
	if err != nil {
		return fmt.Errorf("marshal counter: %w", err)
	}

	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(s.config.CounterTable),
			Item:                item,
			ConditionExpression: aws.String(notExistsCondition),
		},
	}}
	handlers := []cancelHandler{alreadyExists}

	if rent > 0 {
		items = append(items, s.debit(c.Owner, rent))
		handlers = append(handlers, allocationFailed)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err, handlers)
}

// GetCounter returns owner's sequence counter.
func (s *Store) GetCounter(ctx context.Context, owner journal.Owner) (*journal.SequenceCounter, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.CounterTable),
		Key:            stringKey(journal.CounterKey(owner)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, journal.ErrCounterNotFound
	}
	return unmarshalCounter(result.Item)
}

// InsertEntry advances the owner's counter, stores e and debits rent in one
// transaction.
func (s *Store) InsertEntry(ctx context.Context, prevCount uint64, e *journal.Entry, rent int64) error {
	stored := *e
	stored.Version = 1
	item, err := attributevalue.MarshalMap(newEntryItem(&stored))
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	// Track item order for error mapping
	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName:           aws.String(s.config.CounterTable),
				Key:                 stringKey(journal.CounterKey(e.Owner)),
				UpdateExpression:    aws.String("SET #count = :next"),
				ConditionExpression: aws.String(counterAtCondition),
				ExpressionAttributeNames: map[string]string{
					"#count": "count",
					"#owner": "owner",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":next":  numberU(e.ID),
					":prev":  numberU(prevCount),
					":owner": ownerValue(e.Owner),
				},
			},
		},
		{
			Put: &types.Put{
				TableName:           aws.String(s.config.EntryTable),
				Item:                item,
				ConditionExpression: aws.String(notExistsCondition),
			},
		},
	}
	handlers := []cancelHandler{concurrentModification, alreadyExists}

	if rent > 0 {
		items = append(items, s.debit(e.Owner, rent))
		handlers = append(handlers, allocationFailed)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err, handlers)
}

// GetEntry returns the entry stored at key.
func (s *Store) GetEntry(ctx context.Context, key journal.Key) (*journal.Entry, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.EntryTable),
		Key:            stringKey(key.String()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, journal.ErrNotFound
	}
	return unmarshalEntry(result.Item)
}

// UpdateEntry rewrites the title, content and updated_at of e with
// optimistic locking and settles the rent delta.
func (s *Store) UpdateEntry(ctx context.Context, e *journal.Entry, expectedVersion uint64, delta int64) error {
	items := []types.TransactWriteItem{{
		Update: &types.Update{
			TableName: aws.String(s.config.EntryTable),
			Key:       stringKey(e.Key().String()),
			UpdateExpression: aws.String("SET #title = :title, #content = :content, #updated_at = :updated_at, " +
				"#space = :space, #version = #version + :one"),
			ConditionExpression: aws.String(ownedVersionCondition),
			ExpressionAttributeNames: mergeExprNames(ownedVersionNames(), map[string]string{
				"#title":      "title",
				"#content":    "content",
				"#updated_at": "updated_at",
				"#space":      "space",
			}),
			ExpressionAttributeValues: mergeExprValues(ownedVersionValues(e.Owner, expectedVersion), map[string]types.AttributeValue{
				":title":      &types.AttributeValueMemberS{Value: e.Title},
				":content":    &types.AttributeValueMemberS{Value: e.Content},
				":updated_at": numberI(e.UpdatedAt),
				":space":      numberI(int64(e.Space())),
				":one":        numberU(1),
			}),
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		},
	}}
	handlers := []cancelHandler{missingOrModified}

	switch {
	case delta > 0:
		items = append(items, s.debit(e.Owner, delta))
		handlers = append(handlers, allocationFailed)
	case delta < 0:
		items = append(items, s.credit(e.Owner, -delta))
		handlers = append(handlers, overflowed)
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err, handlers)
}

// DeleteEntry removes the entry at key and credits refund to its owner.
func (s *Store) DeleteEntry(ctx context.Context, key journal.Key, expectedVersion uint64, refund int64) error {
	items := []types.TransactWriteItem{{
		Delete: &types.Delete{
			TableName:                           aws.String(s.config.EntryTable),
			Key:                                 stringKey(key.String()),
			ConditionExpression:                 aws.String(ownedVersionCondition),
			ExpressionAttributeNames:            ownedVersionNames(),
			ExpressionAttributeValues:           ownedVersionValues(key.Owner, expectedVersion),
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		},
	}}
	handlers := []cancelHandler{missingOrModified}

	if refund > 0 {
		items = append(items, s.credit(key.Owner, refund))
		handlers = append(handlers, overflowed)
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err, handlers)
}

// Balance returns owner's balance, zero if the owner was never funded.
func (s *Store) Balance(ctx context.Context, owner journal.Owner) (int64, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.BalanceTable),
		Key:            balanceKey(owner),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, err
	}
	if result.Item == nil {
		return 0, nil
	}
	return balanceOf(result.Item)
}

// Deposit credits amount to owner and returns the new balance. A deposit
// that would carry the balance past math.MaxInt64 fails with
// journal.ErrInvalidAmount.
func (s *Store) Deposit(ctx context.Context, owner journal.Owner, amount int64) (int64, error) {
	if amount < 0 {
		return 0, journal.ErrInvalidAmount
	}
	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.config.BalanceTable),
		Key:                       balanceKey(owner),
		UpdateExpression:          aws.String("SET #owner = :owner ADD #balance :amount"),
		ConditionExpression:       aws.String(boundedCondition),
		ExpressionAttributeNames:  creditNames(),
		ExpressionAttributeValues: creditValues(owner, amount),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, fmt.Errorf("%w: deposit of %d overflows balance", journal.ErrInvalidAmount, amount)
		}
		return 0, err
	}
	return balanceOf(result.Attributes)
}

// debit builds a conditional balance decrement.
func (s *Store) debit(owner journal.Owner, amount int64) types.TransactWriteItem {
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(s.config.BalanceTable),
			Key:                 balanceKey(owner),
			UpdateExpression:    aws.String("SET #balance = #balance - :amount"),
			ConditionExpression: aws.String(fundedCondition),
			ExpressionAttributeNames: map[string]string{
				"#balance": "balance",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":amount": numberI(amount),
			},
		},
	}
}

// credit builds a balance increment bounded by math.MaxInt64.
func (s *Store) credit(owner journal.Owner, amount int64) types.TransactWriteItem {
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(s.config.BalanceTable),
			Key:                       balanceKey(owner),
			UpdateExpression:          aws.String("SET #owner = :owner ADD #balance :amount"),
			ConditionExpression:       aws.String(boundedCondition),
			ExpressionAttributeNames:  creditNames(),
			ExpressionAttributeValues: creditValues(owner, amount),
		},
	}
}

func creditNames() map[string]string {
	return map[string]string{
		"#owner":   "owner",
		"#balance": "balance",
	}
}

// creditValues carries :max, the largest balance that can still absorb amount.
func creditValues(owner journal.Owner, amount int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":owner":  ownerValue(owner),
		":amount": numberI(amount),
		":max":    numberI(math.MaxInt64 - amount),
	}
}

func ownedVersionNames() map[string]string {
	return map[string]string{
		"#owner":   "owner",
		"#version": "version",
	}
}

func ownedVersionValues(owner journal.Owner, version uint64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":owner":            ownerValue(owner),
		":expected_version": numberU(version),
	}
}

// cancelHandler maps the cancellation reason of one transaction item to a
// journal error. A nil handler means the item has no condition.
type cancelHandler func(reason types.CancellationReason) error

func alreadyExists(types.CancellationReason) error          { return journal.ErrAlreadyExists }
func allocationFailed(types.CancellationReason) error       { return journal.ErrAllocationFailed }
func concurrentModification(types.CancellationReason) error { return journal.ErrConcurrentModification }
func overflowed(types.CancellationReason) error             { return journal.ErrInvalidAmount }

// missingOrModified tells a deleted entry apart from a stale version using
// the old image returned on condition failure.
func missingOrModified(reason types.CancellationReason) error {
	if len(reason.Item) == 0 {
		return journal.ErrNotFound
	}
	return journal.ErrConcurrentModification
}

// mapTransactionError maps DynamoDB transaction errors to journal errors.
// handlers[i] interprets a failed condition on transaction item i.
func mapTransactionError(err error, handlers []cancelHandler) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed":
				if i < len(handlers) && handlers[i] != nil {
					return handlers[i](reason)
				}
			case "TransactionConflict":
				return journal.ErrConcurrentModification
			}
		}
	}

	return err
}
