package ranking

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/contentx"
	"github.com/letmevibethatforyou/contentx/internal/ddb"
	"github.com/segmentio/ksuid"
)

// DynamoDBClient defines the DynamoDB operations the flag store uses.
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDB is a Decider backed by flag records in a DynamoDB table. A
// visitor is assigned a variation by hashing the flag key and visitor id,
// so the same visitor always sees the same variation.
type DynamoDB struct {
	client    DynamoDBClient
	tableName string
}

// NewDynamoDB creates a flag store over tableName.
func NewDynamoDB(client DynamoDBClient, tableName string) *DynamoDB {
	return &DynamoDB{client: client, tableName: tableName}
}

// Decide implements Decider. A missing flag decides as disabled.
func (d *DynamoDB) Decide(ctx context.Context, flagKey, visitorID string) (Decision, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       ddb.FlagItemKey(flagKey),
	})
	if err != nil {
		return Decision{}, errors.WithSecondaryError(
			contentx.ErrBackendUnavailable,
			errors.Wrapf(err, "failed to get flag %s from table %s", flagKey, d.tableName),
		)
	}
	if len(out.Item) == 0 {
		return Decision{FlagKey: flagKey}, nil
	}

	record, err := ddb.UnmarshalFlag(out.Item)
	if err != nil {
		return Decision{}, errors.Wrapf(err, "failed to unmarshal flag %s", flagKey)
	}

	decision := Decision{FlagKey: flagKey, Enabled: record.Enabled}
	if !record.Enabled {
		return decision, nil
	}

	v, ok := pickVariation(record.Variations, flagKey, visitorID)
	if !ok {
		decision.Enabled = false
		return decision, nil
	}
	decision.VariationKey = v.Key
	decision.Variables = v.Variables
	return decision, nil
}

// PutOrderBy stores a flag with a single variation carrying o. It returns
// the new record's revision.
func (d *DynamoDB) PutOrderBy(ctx context.Context, o contentx.OrderBy) (string, error) {
	v := map[string]any{"_ranking": string(o.Ranking)}
	if o.SemanticWeight != nil {
		v["_semanticWeight"] = *o.SemanticWeight
	}

	return d.Put(ctx, ddb.FlagRecord{
		Key:     FlagKey,
		Enabled: true,
		Variations: []ddb.Variation{
			{Key: string(o.Ranking), Weight: 100, Variables: map[string]any{VariableKey: v}},
		},
	})
}

// Put writes record, replacing any earlier version, and returns its revision.
func (d *DynamoDB) Put(ctx context.Context, record ddb.FlagRecord) (string, error) {
	record.Revision = ksuid.New().String()

	item, err := ddb.MarshalFlag(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal flag record: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put flag %s in DynamoDB: %w", record.Key, err)
	}
	return record.Revision, nil
}

// bucketRange is the number of traffic buckets a visitor is hashed into.
const bucketRange = 10000

func pickVariation(variations []ddb.Variation, flagKey, visitorID string) (ddb.Variation, bool) {
	total := 0
	for _, v := range variations {
		if v.Weight > 0 {
			total += v.Weight
		}
	}
	if total == 0 {
		return ddb.Variation{}, false
	}

	h := fnv.New32a()
	h.Write([]byte(flagKey))
	h.Write([]byte{0})
	h.Write([]byte(visitorID))
	bucket := int(h.Sum32() % bucketRange)

	acc := 0
	for _, v := range variations {
		if v.Weight <= 0 {
			continue
		}
		acc += v.Weight
		if bucket < acc*bucketRange/total {
			return v, true
		}
	}
	return variations[len(variations)-1], true
}
