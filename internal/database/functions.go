package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func (c *DynamoDBClient) PutItem(
	ctx context.Context,
	tableName string,
	item map[string]types.AttributeValue,
) error {
	input := &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      item,
	}

	_, err := c.svc.PutItem(ctx, input)
	if err != nil {
		return fmt.Errorf("put item %s: %w", tableName, err)
	}
	return nil
}

func (c *DynamoDBClient) PutStruct(
	ctx context.Context,
	tableName string,
	item interface{},
) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	return c.PutItem(ctx, tableName, av)
}

func (c *DynamoDBClient) GetItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	out interface{},
) error {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key:       key,
	}

	res, err := c.svc.GetItem(ctx, input)
	if err != nil {
		return fmt.Errorf("get item %s: %w", tableName, err)
	}
	if res.Item == nil {
		return fmt.Errorf("item not found in %s", tableName)
	}

	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

func (c *DynamoDBClient) UpdateItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	updateExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
) error {
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       key,
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeValues: exprAttrValues,
		ExpressionAttributeNames:  exprAttrNames,
		ReturnValues:              types.ReturnValueNone,
	}

	_, err := c.svc.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("update item %s: %w", tableName, err)
	}
	return nil
}

// UpdateAttributes sets the given attributes on one item, building a single
// SET expression so index keys and payload land in the same write.
func (c *DynamoDBClient) UpdateAttributes(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	attributes map[string]types.AttributeValue,
) error {
	if len(attributes) == 0 {
		return nil
	}

	expr, values, names := buildSetExpression(attributes)
	return c.UpdateItem(ctx, tableName, key, expr, values, names)
}

// DeleteAttributes removes the named attributes from one item, leaving the
// item itself in place.
func (c *DynamoDBClient) DeleteAttributes(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	attributes []string,
) error {
	if len(attributes) == 0 {
		return nil
	}

	expr := "REMOVE "
	names := make(map[string]string, len(attributes))
	for i, attr := range attributes {
		placeholder := fmt.Sprintf("#a%d", i)
		if i > 0 {
			expr += ", "
		}
		expr += placeholder
		names[placeholder] = attr
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(tableName),
		Key:                      key,
		UpdateExpression:         aws.String(expr),
		ExpressionAttributeNames: names,
		ReturnValues:             types.ReturnValueNone,
	}

	_, err := c.svc.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("delete attributes %s: %w", tableName, err)
	}
	return nil
}

func (c *DynamoDBClient) DeleteItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(tableName),
		Key:       key,
	}

	_, err := c.svc.DeleteItem(ctx, input)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", tableName, err)
	}
	return nil
}

func (c *DynamoDBClient) QueryItems(
	ctx context.Context,
	tableName string,
	indexName *string,
	keyCondExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    aws.String(keyCondExpr),
		ExpressionAttributeValues: exprAttrValues,
	}
	if indexName != nil {
		input.IndexName = indexName
	}
	if exprAttrNames != nil {
		input.ExpressionAttributeNames = exprAttrNames
	}

	out, err := c.svc.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query %s[%s]: %w", tableName, aws.ToString(indexName), err)
	}

	return out.Items, nil
}

// buildSetExpression turns an attribute map into a SET expression with
// name/value placeholders. Attribute order is sorted so the expression is
// deterministic.
func buildSetExpression(attributes map[string]types.AttributeValue) (string, map[string]types.AttributeValue, map[string]string) {
	attrs := make([]string, 0, len(attributes))
	for attr := range attributes {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	expr := "SET "
	values := make(map[string]types.AttributeValue, len(attributes))
	names := make(map[string]string, len(attributes))
	for i, attr := range attrs {
		namePlaceholder := fmt.Sprintf("#a%d", i)
		valuePlaceholder := fmt.Sprintf(":v%d", i)
		if i > 0 {
			expr += ", "
		}
		expr += namePlaceholder + " = " + valuePlaceholder
		names[namePlaceholder] = attr
		values[valuePlaceholder] = attributes[attr]
	}
	return expr, values, names
}
