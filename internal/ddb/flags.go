package ddb

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// FlagSortKey is the sort key every flag record is stored under.
const FlagSortKey = "flag"

// FlagRecord is a feature flag as stored in DynamoDB. The partition key is
// the flag key.
type FlagRecord struct {
	Key        string      `dynamodbav:"pk"`
	Kind       string      `dynamodbav:"sk"`
	Enabled    bool        `dynamodbav:"enabled"`
	Variations []Variation `dynamodbav:"variations"`
	Revision   string      `dynamodbav:"revision,omitempty"`
}

// Variation is one arm of a flag. Weight is its share of traffic relative
// to the other variations.
type Variation struct {
	Key       string         `dynamodbav:"key"`
	Weight    int            `dynamodbav:"weight"`
	Variables map[string]any `dynamodbav:"variables,omitempty"`
}

// FlagItemKey returns the primary key of the record for flagKey.
func FlagItemKey(flagKey string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: flagKey},
		"sk": &types.AttributeValueMemberS{Value: FlagSortKey},
	}
}

// UnmarshalFlag converts a DynamoDB item into a FlagRecord.
func UnmarshalFlag(item map[string]types.AttributeValue) (FlagRecord, error) {
	var record FlagRecord
	err := attributevalue.UnmarshalMap(item, &record)
	if err != nil {
		return FlagRecord{}, err
	}
	return record, nil
}

// MarshalFlag converts a FlagRecord into a DynamoDB item.
func MarshalFlag(record FlagRecord) (map[string]types.AttributeValue, error) {
	if record.Kind == "" {
		record.Kind = FlagSortKey
	}
	return attributevalue.MarshalMap(record)
}
