package apl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoBackend stores one item per record, keyed by the prepared key.
// The table needs a single string partition key named "pk".
type DynamoBackend struct {
	client  *dynamodb.Client
	table   string
	timeout time.Duration
}

type dynamoItem struct {
	PK      string `dynamodbav:"pk"`
	Payload []byte `dynamodbav:"payload"`
}

func NewDynamoBackend(client *dynamodb.Client, table string) *DynamoBackend {
	return &DynamoBackend{client: client, table: table, timeout: 5 * time.Second}
}

func (d *DynamoBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.timeout)
}

func (d *DynamoBackend) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: key},
	}
}

func (d *DynamoBackend) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       d.keyAttr(key),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return item.Payload, nil
}

func (d *DynamoBackend) Set(ctx context.Context, key string, value []byte) error {
	item, err := attributevalue.MarshalMap(dynamoItem{PK: key, Payload: value})
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put: %w", err)
	}
	return nil
}

func (d *DynamoBackend) Delete(ctx context.Context, key string) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       d.keyAttr(key),
	})
	if err != nil {
		return fmt.Errorf("dynamodb delete: %w", err)
	}
	return nil
}

func (d *DynamoBackend) List(ctx context.Context, keyPrefix string) (map[string][]byte, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	input := &dynamodb.ScanInput{TableName: aws.String(d.table)}
	if keyPrefix != "" {
		input.FilterExpression = aws.String("begins_with(pk, :prefix)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: keyPrefix},
		}
	}

	out := make(map[string][]byte)
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan: %w", err)
		}
		for _, raw := range page.Items {
			var item dynamoItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("decode item: %w", err)
			}
			out[item.PK] = item.Payload
		}
	}
	return out, nil
}

func (d *DynamoBackend) Ready(ctx context.Context) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	desc, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.table),
	})
	if err != nil {
		return fmt.Errorf("dynamodb describe table: %w", err)
	}
	if desc.Table.TableStatus != types.TableStatusActive {
		return fmt.Errorf("dynamodb table %s not active: %s", d.table, desc.Table.TableStatus)
	}
	return nil
}

func (d *DynamoBackend) Configured() bool {
	return d.client != nil && strings.TrimSpace(d.table) != ""
}
