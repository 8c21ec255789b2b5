package repositories

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/models"
)

// DynamoAPI is the subset of the DynamoDB client the record store needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type dynamoRecordRepository struct {
	client DynamoAPI
	table  string
}

// NewDynamoRecordRepository stores records in a DynamoDB table keyed on "id".
func NewDynamoRecordRepository(client DynamoAPI, table string) RecordRepository {
	return &dynamoRecordRepository{client: client, table: table}
}

func (r *dynamoRecordRepository) GetRecord(ctx context.Context, id string) (*models.IssuanceRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	var rec models.IssuanceRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", id, err)
	}
	return &rec, nil
}

func (r *dynamoRecordRepository) PutRecord(ctx context.Context, record *models.IssuanceRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("encode item %s: %w", record.Id, err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put item %s: %w", record.Id, err)
	}
	return nil
}
