package dynamostore

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/quill/journal"
)

// entryItem is the stored shape of a journal entry.
type entryItem struct {
	PK        string `dynamodbav:"pk"`
	ID        uint64 `dynamodbav:"id"`
	Owner     []byte `dynamodbav:"owner"`
	CreatedAt int64  `dynamodbav:"created_at"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
	Title     string `dynamodbav:"title"`
	Content   string `dynamodbav:"content"`
	Version   uint64 `dynamodbav:"version"`
	Space     int    `dynamodbav:"space"`
}

// counterItem is the stored shape of a sequence counter.
type counterItem struct {
	PK    string `dynamodbav:"pk"`
	Owner []byte `dynamodbav:"owner"`
	Count uint64 `dynamodbav:"count"`
}

func newEntryItem(e *journal.Entry) entryItem {
	return entryItem{
		PK:        e.Key().String(),
		ID:        e.ID,
		Owner:     e.Owner[:],
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		Title:     e.Title,
		Content:   e.Content,
		Version:   e.Version,
		Space:     e.Space(),
	}
}

func (it entryItem) entry() (*journal.Entry, error) {
	owner, err := journal.OwnerFromBytes(it.Owner)
	if err != nil {
		return nil, err
	}
	return &journal.Entry{
		ID:        it.ID,
		Owner:     owner,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
		Title:     it.Title,
		Content:   it.Content,
		Version:   it.Version,
	}, nil
}

func unmarshalEntry(raw map[string]types.AttributeValue) (*journal.Entry, error) {
	var it entryItem
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return it.entry()
}

func unmarshalCounter(raw map[string]types.AttributeValue) (*journal.SequenceCounter, error) {
	var it counterItem
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return nil, fmt.Errorf("unmarshal counter: %w", err)
	}
	owner, err := journal.OwnerFromBytes(it.Owner)
	if err != nil {
		return nil, err
	}
	return &journal.SequenceCounter{Count: it.Count, Owner: owner}, nil
}

// stringKey builds a primary key for a table keyed by "pk".
func stringKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
	}
}

func balanceKey(owner journal.Owner) map[string]types.AttributeValue {
	return stringKey(owner.String())
}

func numberU(v uint64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatUint(v, 10)}
}

func numberI(v int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

func ownerValue(owner journal.Owner) *types.AttributeValueMemberB {
	return &types.AttributeValueMemberB{Value: owner[:]}
}

// balanceOf reads the balance attribute of a balances item.
func balanceOf(raw map[string]types.AttributeValue) (int64, error) {
	v, ok := raw["balance"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, nil
	}
	return strconv.ParseInt(v.Value, 10, 64)
}
