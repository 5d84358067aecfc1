package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/solarekm/reaper/providers"
)

// DynamoDB attribute names for the watermark table
const (
	attrResourceID = "resource_id"
	attrStartedAt  = "started_at"
	attrLastCheck  = "last_check"
)

// DynamoDBAPI is the narrow DynamoDB surface the watermark store needs
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoWatermarkStore keeps idle watermarks in a DynamoDB table instead
// of instance tags. One item per resource, keyed by resource_id. The
// latch behaves exactly like the tag-backed store, so the tracker cannot
// tell the two apart.
type DynamoWatermarkStore struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoWatermarkStore creates a watermark store over the given table
func NewDynamoWatermarkStore(client DynamoDBAPI, table string) *DynamoWatermarkStore {
	return &DynamoWatermarkStore{client: client, table: table}
}

var _ providers.WatermarkStore = (*DynamoWatermarkStore)(nil)

// Get reads the idle watermark for a resource
func (s *DynamoWatermarkStore) Get(ctx context.Context, resourceID string) (string, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            itemKey(resourceID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("get watermark for %s: %w", resourceID, err)
	}

	attr, ok := out.Item[attrStartedAt]
	if !ok {
		return "", false, nil
	}
	value, ok := attr.(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return "", false, nil
	}

	return value.Value, true, nil
}

// Set writes the idle watermark, leaving the last-check mark alone
func (s *DynamoWatermarkStore) Set(ctx context.Context, resourceID, mark string) error {
	if err := s.updateAttribute(ctx, resourceID, attrStartedAt, mark); err != nil {
		return fmt.Errorf("set watermark for %s: %w", resourceID, err)
	}
	return nil
}

// Clear removes the idle watermark, leaving the last-check mark alone
func (s *DynamoWatermarkStore) Clear(ctx context.Context, resourceID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              itemKey(resourceID),
		UpdateExpression: aws.String("REMOVE " + attrStartedAt),
	})
	if err != nil {
		return fmt.Errorf("clear watermark for %s: %w", resourceID, err)
	}
	return nil
}

// Touch refreshes the advisory last-check mark
func (s *DynamoWatermarkStore) Touch(ctx context.Context, resourceID, mark string) error {
	if err := s.updateAttribute(ctx, resourceID, attrLastCheck, mark); err != nil {
		return fmt.Errorf("touch last check for %s: %w", resourceID, err)
	}
	return nil
}

func (s *DynamoWatermarkStore) updateAttribute(ctx context.Context, resourceID, attr, value string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              itemKey(resourceID),
		UpdateExpression: aws.String("SET " + attr + " = :v"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":v": &ddbtypes.AttributeValueMemberS{Value: value},
		},
	})
	return err
}

func itemKey(resourceID string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		attrResourceID: &ddbtypes.AttributeValueMemberS{Value: resourceID},
	}
}
