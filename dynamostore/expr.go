package dynamostore

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Condition expressions shared by the store's writes.
const (
	// notExistsCondition guards puts against overwriting a live item.
	notExistsCondition = "attribute_not_exists(pk)"

	// counterAtCondition requires the counter to still be owned by :owner
	// and to hold :prev.
	counterAtCondition = "#owner = :owner AND #count = :prev"

	// ownedVersionCondition requires the entry to exist, belong to :owner
	// and carry :expected_version.
	ownedVersionCondition = "attribute_exists(pk) AND #owner = :owner AND #version = :expected_version"

	// fundedCondition requires the balance to cover :amount.
	fundedCondition = "#balance >= :amount"

	// boundedCondition keeps a credit of :amount from overflowing the balance.
	boundedCondition = "attribute_not_exists(#balance) OR #balance <= :max"
)

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
