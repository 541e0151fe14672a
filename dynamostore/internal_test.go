package dynamostore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/quill/journal"
)

// fakeClient records requests and returns canned responses.
type fakeClient struct {
	getItems   []*dynamodb.GetItemInput
	updates    []*dynamodb.UpdateItemInput
	transacts  []*dynamodb.TransactWriteItemsInput
	getResult  map[string]types.AttributeValue
	updateOut  map[string]types.AttributeValue
	transactFn func(*dynamodb.TransactWriteItemsInput) error
	err        error
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.getItems = append(f.getItems, in)
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.getResult}, nil
}

func (f *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.UpdateItemOutput{Attributes: f.updateOut}, nil
}

func (f *fakeClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transacts = append(f.transacts, in)
	if f.transactFn != nil {
		if err := f.transactFn(in); err != nil {
			return nil, err
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func testOwner(b byte) journal.Owner {
	var o journal.Owner
	for i := range o {
		o[i] = b
	}
	return o
}

func canceled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, c := range codes {
		if c != "" {
			reasons[i].Code = aws.String(c)
		}
	}
	return &types.TransactionCanceledException{
		Message:             aws.String("Transaction cancelled"),
		CancellationReasons: reasons,
	}
}

// --- Config Tests ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.EntryTable != "journal_entries" {
		t.Errorf("expected EntryTable 'journal_entries', got %q", cfg.EntryTable)
	}
	if cfg.CounterTable != "journal_counters" {
		t.Errorf("expected CounterTable 'journal_counters', got %q", cfg.CounterTable)
	}
	if cfg.BalanceTable != "journal_balances" {
		t.Errorf("expected BalanceTable 'journal_balances', got %q", cfg.BalanceTable)
	}
}

func TestConfigValidate_FillsDefaults(t *testing.T) {
	cfg := Config{EntryTable: "custom"}
	cfg.validate()
	if cfg.EntryTable != "custom" {
		t.Errorf("expected custom EntryTable preserved, got %q", cfg.EntryTable)
	}
	if cfg.CounterTable != "journal_counters" || cfg.BalanceTable != "journal_balances" {
		t.Errorf("expected defaults filled, got %+v", cfg)
	}
}

// --- mapTransactionError Tests ---

func TestMapTransactionError_Nil(t *testing.T) {
	if err := mapTransactionError(nil, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestMapTransactionError_ByIndex(t *testing.T) {
	handlers := []cancelHandler{concurrentModification, alreadyExists, allocationFailed}

	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"counter moved", canceled("ConditionalCheckFailed", "None", "None"), journal.ErrConcurrentModification},
		{"entry exists", canceled("None", "ConditionalCheckFailed", "None"), journal.ErrAlreadyExists},
		{"underfunded", canceled("None", "None", "ConditionalCheckFailed"), journal.ErrAllocationFailed},
		{"transaction conflict", canceled("TransactionConflict", "None", "None"), journal.ErrConcurrentModification},
		{"nil codes skipped", canceled("", "", "ConditionalCheckFailed"), journal.ErrAllocationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := mapTransactionError(tt.err, handlers); !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestMapTransactionError_PassThrough(t *testing.T) {
	other := errors.New("throttled")
	if err := mapTransactionError(other, nil); err != other {
		t.Errorf("expected original error, got %v", err)
	}

	// Condition failure on an item without a handler is not remapped.
	err := canceled("ConditionalCheckFailed")
	if got := mapTransactionError(err, []cancelHandler{nil}); got != err {
		t.Errorf("expected original error, got %v", got)
	}
}

func TestMissingOrModified(t *testing.T) {
	if err := missingOrModified(types.CancellationReason{}); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("expected ErrNotFound without old image, got %v", err)
	}
	reason := types.CancellationReason{Item: map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: "x"},
	}}
	if err := missingOrModified(reason); !errors.Is(err, journal.ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification with old image, got %v", err)
	}
}

// --- Item Tests ---

func TestEntryItem_RoundTrip(t *testing.T) {
	e := &journal.Entry{
		ID: 3, Owner: testOwner(4), CreatedAt: 100, UpdatedAt: 200,
		Title: "Hi", Content: "World", Version: 2,
	}
	raw, err := attributevalue.MarshalMap(newEntryItem(e))
	if err != nil {
		t.Fatalf("MarshalMap failed: %v", err)
	}

	if pk, ok := raw["pk"].(*types.AttributeValueMemberS); !ok || pk.Value != e.Key().String() {
		t.Errorf("expected pk %q, got %v", e.Key().String(), raw["pk"])
	}
	if space, ok := raw["space"].(*types.AttributeValueMemberN); !ok || space.Value != "79" {
		t.Errorf("expected space 79, got %v", raw["space"])
	}
	if _, ok := raw["owner"].(*types.AttributeValueMemberB); !ok {
		t.Errorf("expected binary owner, got %T", raw["owner"])
	}

	got, err := unmarshalEntry(raw)
	if err != nil {
		t.Fatalf("unmarshalEntry failed: %v", err)
	}
	if *got != *e {
		t.Errorf("expected %+v, got %+v", e, got)
	}
}

func TestUnmarshalEntry_BadOwner(t *testing.T) {
	raw := map[string]types.AttributeValue{
		"owner": &types.AttributeValueMemberB{Value: []byte{1, 2}},
	}
	if _, err := unmarshalEntry(raw); err == nil {
		t.Error("expected error for short owner")
	}
}

func TestUnmarshalCounter_MaxCount(t *testing.T) {
	o := testOwner(1)
	raw := map[string]types.AttributeValue{
		"pk":    &types.AttributeValueMemberS{Value: journal.CounterKey(o)},
		"owner": ownerValue(o),
		"count": &types.AttributeValueMemberN{Value: "18446744073709551615"},
	}
	c, err := unmarshalCounter(raw)
	if err != nil {
		t.Fatalf("unmarshalCounter failed: %v", err)
	}
	if c.Count != ^uint64(0) || c.Owner != o {
		t.Errorf("unexpected counter %+v", c)
	}
}

func TestBalanceOf(t *testing.T) {
	if b, err := balanceOf(nil); err != nil || b != 0 {
		t.Errorf("expected 0 for missing item, got %d, %v", b, err)
	}
	b, err := balanceOf(map[string]types.AttributeValue{"balance": numberI(-5)})
	if err != nil || b != -5 {
		t.Errorf("expected -5, got %d, %v", b, err)
	}
}

// --- Request Shape Tests ---

func TestInsertEntry_TransactionShape(t *testing.T) {
	fc := &fakeClient{}
	s := New(fc, Config{})
	e := &journal.Entry{ID: 5, Owner: testOwner(1), Title: "t", Content: "c"}

	if err := s.InsertEntry(context.Background(), 4, e, 100); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	if len(fc.transacts) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(fc.transacts))
	}
	items := fc.transacts[0].TransactItems
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	counter := items[0].Update
	if counter == nil || aws.ToString(counter.TableName) != "journal_counters" {
		t.Fatalf("expected counter update first, got %+v", items[0])
	}
	if aws.ToString(counter.ConditionExpression) != counterAtCondition {
		t.Errorf("unexpected counter condition %q", aws.ToString(counter.ConditionExpression))
	}
	if v := counter.ExpressionAttributeValues[":prev"].(*types.AttributeValueMemberN).Value; v != "4" {
		t.Errorf("expected :prev 4, got %s", v)
	}
	if v := counter.ExpressionAttributeValues[":next"].(*types.AttributeValueMemberN).Value; v != "5" {
		t.Errorf("expected :next 5, got %s", v)
	}

	put := items[1].Put
	if put == nil || aws.ToString(put.TableName) != "journal_entries" {
		t.Fatalf("expected entry put second, got %+v", items[1])
	}
	if v := put.Item["version"].(*types.AttributeValueMemberN).Value; v != "1" {
		t.Errorf("expected stored version 1, got %s", v)
	}

	debit := items[2].Update
	if debit == nil || aws.ToString(debit.ConditionExpression) != fundedCondition {
		t.Fatalf("expected funded debit third, got %+v", items[2])
	}
}

func TestInsertEntry_NoRentSkipsDebit(t *testing.T) {
	fc := &fakeClient{}
	s := New(fc, Config{})
	e := &journal.Entry{ID: 1, Owner: testOwner(1)}

	if err := s.InsertEntry(context.Background(), 0, e, 0); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	if n := len(fc.transacts[0].TransactItems); n != 2 {
		t.Errorf("expected 2 items without rent, got %d", n)
	}
}

func TestInsertEntry_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"counter", canceled("ConditionalCheckFailed", "None", "None"), journal.ErrConcurrentModification},
		{"entry", canceled("None", "ConditionalCheckFailed", "None"), journal.ErrAlreadyExists},
		{"balance", canceled("None", "None", "ConditionalCheckFailed"), journal.ErrAllocationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{transactFn: func(*dynamodb.TransactWriteItemsInput) error { return tt.err }}
			s := New(fc, Config{})
			err := s.InsertEntry(context.Background(), 0, &journal.Entry{ID: 1, Owner: testOwner(1)}, 10)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestUpdateEntry_DeltaDirection(t *testing.T) {
	tests := []struct {
		name      string
		delta     int64
		wantItems int
		wantExpr  string
	}{
		{"grow debits", 50, 2, "SET #balance = #balance - :amount"},
		{"shrink credits", -50, 2, "SET #owner = :owner ADD #balance :amount"},
		{"same size", 0, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{}
			s := New(fc, Config{})
			e := &journal.Entry{ID: 1, Owner: testOwner(1), Title: "t", Content: "c"}

			if err := s.UpdateEntry(context.Background(), e, 3, tt.delta); err != nil {
				t.Fatalf("UpdateEntry failed: %v", err)
			}
			items := fc.transacts[0].TransactItems
			if len(items) != tt.wantItems {
				t.Fatalf("expected %d items, got %d", tt.wantItems, len(items))
			}
			entry := items[0].Update
			if aws.ToString(entry.ConditionExpression) != ownedVersionCondition {
				t.Errorf("unexpected condition %q", aws.ToString(entry.ConditionExpression))
			}
			if v := entry.ExpressionAttributeValues[":expected_version"].(*types.AttributeValueMemberN).Value; v != "3" {
				t.Errorf("expected version 3, got %s", v)
			}
			if !strings.Contains(aws.ToString(entry.UpdateExpression), "#version = #version + :one") {
				t.Errorf("expected version bump in %q", aws.ToString(entry.UpdateExpression))
			}
			if tt.wantItems == 2 {
				if got := aws.ToString(items[1].Update.UpdateExpression); got != tt.wantExpr {
					t.Errorf("expected balance expression %q, got %q", tt.wantExpr, got)
				}
				amount := items[1].Update.ExpressionAttributeValues[":amount"].(*types.AttributeValueMemberN).Value
				if amount != "50" {
					t.Errorf("expected amount 50, got %s", amount)
				}
			}
		})
	}
}

func TestUpdateEntry_NotFoundVsConflict(t *testing.T) {
	gone := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}},
	}
	stale := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{
			Code: aws.String("ConditionalCheckFailed"),
			Item: map[string]types.AttributeValue{"version": numberU(9)},
		}},
	}

	for _, tc := range []struct {
		err      error
		expected error
	}{{gone, journal.ErrNotFound}, {stale, journal.ErrConcurrentModification}} {
		fc := &fakeClient{transactFn: func(*dynamodb.TransactWriteItemsInput) error { return tc.err }}
		s := New(fc, Config{})
		err := s.UpdateEntry(context.Background(), &journal.Entry{ID: 1, Owner: testOwner(1)}, 1, 0)
		if !errors.Is(err, tc.expected) {
			t.Errorf("expected %v, got %v", tc.expected, err)
		}
	}
}

func TestDeleteEntry_RefundsOwner(t *testing.T) {
	fc := &fakeClient{}
	s := New(fc, Config{})
	key := journal.Key{ID: 2, Owner: testOwner(7)}

	if err := s.DeleteEntry(context.Background(), key, 4, 1000); err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}
	items := fc.transacts[0].TransactItems
	if len(items) != 2 || items[0].Delete == nil || items[1].Update == nil {
		t.Fatalf("expected delete then credit, got %+v", items)
	}
	pk := items[0].Delete.Key["pk"].(*types.AttributeValueMemberS).Value
	if pk != key.String() {
		t.Errorf("expected pk %q, got %q", key.String(), pk)
	}
	balancePK := items[1].Update.Key["pk"].(*types.AttributeValueMemberS).Value
	if balancePK != testOwner(7).String() {
		t.Errorf("expected balance pk %q, got %q", testOwner(7).String(), balancePK)
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	fc := &fakeClient{}
	s := New(fc, Config{})
	_, err := s.GetEntry(context.Background(), journal.Key{ID: 1, Owner: testOwner(1)})
	if !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if !aws.ToBool(fc.getItems[0].ConsistentRead) {
		t.Error("expected consistent read")
	}
}

func TestGetCounter_NotFound(t *testing.T) {
	s := New(&fakeClient{}, Config{})
	_, err := s.GetCounter(context.Background(), testOwner(1))
	if !errors.Is(err, journal.ErrCounterNotFound) {
		t.Errorf("expected ErrCounterNotFound, got %v", err)
	}
}

func TestGetEntry_ClientError(t *testing.T) {
	boom := errors.New("boom")
	s := New(&fakeClient{err: boom}, Config{})
	if _, err := s.GetEntry(context.Background(), journal.Key{}); !errors.Is(err, boom) {
		t.Errorf("expected client error, got %v", err)
	}
}

func TestDeposit_ReturnsNewBalance(t *testing.T) {
	fc := &fakeClient{updateOut: map[string]types.AttributeValue{"balance": numberI(1500)}}
	s := New(fc, Config{})

	got, err := s.Deposit(context.Background(), testOwner(1), 500)
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if got != 1500 {
		t.Errorf("expected 1500, got %d", got)
	}
	if fc.updates[0].ReturnValues != types.ReturnValueUpdatedNew {
		t.Errorf("expected UPDATED_NEW, got %v", fc.updates[0].ReturnValues)
	}
}

func TestDeposit_BoundedByMaxBalance(t *testing.T) {
	fc := &fakeClient{updateOut: map[string]types.AttributeValue{"balance": numberI(500)}}
	s := New(fc, Config{})

	if _, err := s.Deposit(context.Background(), testOwner(1), 500); err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	in := fc.updates[0]
	if aws.ToString(in.ConditionExpression) != boundedCondition {
		t.Errorf("unexpected condition %q", aws.ToString(in.ConditionExpression))
	}
	if v := in.ExpressionAttributeValues[":max"].(*types.AttributeValueMemberN).Value; v != "9223372036854775307" {
		t.Errorf("expected max 9223372036854775307, got %s", v)
	}
}

func TestDeposit_OverflowIsInvalidAmount(t *testing.T) {
	fc := &fakeClient{err: &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}}
	s := New(fc, Config{})

	_, err := s.Deposit(context.Background(), testOwner(1), 10)
	if !errors.Is(err, journal.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if journal.Code(err) != journal.CodeInvalidAmount {
		t.Errorf("expected code %d, got %d", journal.CodeInvalidAmount, journal.Code(err))
	}
}

func TestCredit_OverflowIsInvalidAmount(t *testing.T) {
	fc := &fakeClient{transactFn: func(*dynamodb.TransactWriteItemsInput) error {
		return canceled("None", "ConditionalCheckFailed")
	}}
	s := New(fc, Config{})

	err := s.DeleteEntry(context.Background(), journal.Key{ID: 1, Owner: testOwner(1)}, 1, 100)
	if !errors.Is(err, journal.ErrInvalidAmount) {
		t.Errorf("delete: expected ErrInvalidAmount, got %v", err)
	}
	credit := fc.transacts[0].TransactItems[1].Update
	if aws.ToString(credit.ConditionExpression) != boundedCondition {
		t.Errorf("unexpected credit condition %q", aws.ToString(credit.ConditionExpression))
	}

	err = s.UpdateEntry(context.Background(), &journal.Entry{ID: 1, Owner: testOwner(1)}, 1, -100)
	if !errors.Is(err, journal.ErrInvalidAmount) {
		t.Errorf("update: expected ErrInvalidAmount, got %v", err)
	}
}

func TestBalance_Missing(t *testing.T) {
	s := New(&fakeClient{}, Config{})
	b, err := s.Balance(context.Background(), testOwner(1))
	if err != nil || b != 0 {
		t.Errorf("expected 0, got %d, %v", b, err)
	}
}

func TestPutCounter_ErrorMapping(t *testing.T) {
	fc := &fakeClient{transactFn: func(*dynamodb.TransactWriteItemsInput) error {
		return canceled("ConditionalCheckFailed", "None")
	}}
	s := New(fc, Config{})
	err := s.PutCounter(context.Background(), &journal.SequenceCounter{Owner: testOwner(1)}, 10)
	if !errors.Is(err, journal.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

// --- Expression Helper Tests ---

func TestMergeExprNames(t *testing.T) {
	result := mergeExprNames(
		map[string]string{"#a": "a"},
		map[string]string{"#b": "b", "#a": "override"},
	)
	if len(result) != 2 || result["#a"] != "override" || result["#b"] != "b" {
		t.Errorf("unexpected merge result %v", result)
	}
}

func TestMergeExprValues_Empty(t *testing.T) {
	if result := mergeExprValues(); len(result) != 0 {
		t.Errorf("expected empty map, got %v", result)
	}
}
