package database

import (
	"context"
	"fmt"
	"time"

	"question-bot-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CreateTable provisions the single table with both secondary indexes and
// waits until it is active. Intended for one-off setup, not runtime use.
func (c *DynamoDBClient) CreateTable(ctx context.Context, tableName string) error {
	throughput := &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(1),
		WriteCapacityUnits: aws.Int64(1),
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(model.KeyPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(model.KeySK), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(model.KeyPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(model.KeySK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(model.KeyGSI1PK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(model.KeyGSI1SK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(model.KeyGSI2PK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(model.KeyGSI2SK), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode:           types.BillingModeProvisioned,
		ProvisionedThroughput: throughput,
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(model.IndexByStatus),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(model.KeyGSI1PK), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String(model.KeyGSI1SK), KeyType: types.KeyTypeRange},
				},
				Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: throughput,
			},
			{
				IndexName: aws.String(model.IndexByDestination),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(model.KeyGSI2PK), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String(model.KeyGSI2SK), KeyType: types.KeyTypeRange},
				},
				Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: throughput,
			},
		},
	}

	if _, err := c.svc.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("create table %s: %w", tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(c.svc)
	describe := &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}
	if err := waiter.Wait(ctx, describe, 5*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", tableName, err)
	}
	return nil
}
