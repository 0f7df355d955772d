package storage

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/cyderes/olist-finalizer/internal/config"
	"github.com/cyderes/olist-finalizer/internal/models"
	"github.com/cyderes/olist-finalizer/internal/table"
)

const (
	// DynamoDB caps BatchWriteItem at 25 requests
	dynamoBatchSize = 25

	dynamoMaxAttempts  = 8
	dynamoRetryBackoff = 100 * time.Millisecond
)

// DynamoDBStorage implements Storage interface using AWS DynamoDB
type DynamoDBStorage struct {
	client      dynamodbiface.DynamoDBAPI
	prefix      string
	statusTable string
	timeout     time.Duration
	backoff     time.Duration
}

// NewDynamoDBStorage creates a new DynamoDB storage instance
func NewDynamoDBStorage(ctx context.Context, cfg config.StorageConfig) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.Timeout > 0 {
		awsConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	storage := newDynamoDBStorage(dynamodb.New(sess), cfg.TablePrefix, cfg.Timeout)
	if err := storage.ensureTable(ctx, storage.statusTable, "id", dynamodb.ScalarAttributeTypeS); err != nil {
		return nil, fmt.Errorf("failed to ensure status table exists: %w", err)
	}
	return storage, nil
}

func newDynamoDBStorage(client dynamodbiface.DynamoDBAPI, prefix string, timeout time.Duration) *DynamoDBStorage {
	return &DynamoDBStorage{
		client:      client,
		prefix:      prefix,
		statusTable: prefix + "run_status",
		timeout:     timeout,
		backoff:     dynamoRetryBackoff,
	}
}

// ensureTable creates the DynamoDB table if it doesn't exist
func (d *DynamoDBStorage) ensureTable(ctx context.Context, name, key, keyType string) error {
	callCtx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	_, err := d.client.DescribeTableWithContext(callCtx, &dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	})
	if err == nil {
		return nil // Table already exists
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String(key),
				KeyType:       aws.String(dynamodb.KeyTypeHash),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String(key),
				AttributeType: aws.String(keyType),
			},
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	}
	if _, err := d.client.CreateTableWithContext(callCtx, input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	return d.client.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	})
}

// StoreTable writes one item per row keyed by row_index. Rows from an
// earlier, longer run past the new row count are not removed.
func (d *DynamoDBStorage) StoreTable(ctx context.Context, ds models.Dataset, t *table.Table) error {
	name := d.prefix + ds.Name
	if err := d.ensureTable(ctx, name, "row_index", dynamodb.ScalarAttributeTypeN); err != nil {
		return err
	}

	for start := 0; start < len(t.Rows); start += dynamoBatchSize {
		end := start + dynamoBatchSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		requests := make([]*dynamodb.WriteRequest, 0, end-start)
		for r := start; r < end; r++ {
			requests = append(requests, &dynamodb.WriteRequest{
				PutRequest: &dynamodb.PutRequest{Item: rowItem(r, t.Headers, t.Rows[r])},
			})
		}
		if err := d.batchWrite(ctx, name, requests); err != nil {
			return fmt.Errorf("failed to store rows %d-%d in %s: %w", start, end-1, name, err)
		}
	}
	return nil
}

// batchWrite resends unprocessed items with exponential backoff
func (d *DynamoDBStorage) batchWrite(ctx context.Context, name string, requests []*dynamodb.WriteRequest) error {
	pending := map[string][]*dynamodb.WriteRequest{name: requests}
	for attempt := 0; attempt < dynamoMaxAttempts; attempt++ {
		var err error
		if pending, err = d.writeOnce(ctx, pending); err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		if attempt < dynamoMaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.backoff << attempt):
			}
		}
	}
	return fmt.Errorf("%d items still unprocessed after %d attempts", len(pending[name]), dynamoMaxAttempts)
}

// writeOnce sends one BatchWriteItem call and returns the unprocessed items
func (d *DynamoDBStorage) writeOnce(ctx context.Context, items map[string][]*dynamodb.WriteRequest) (map[string][]*dynamodb.WriteRequest, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.client.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: items,
	})
	if err != nil {
		return nil, err
	}
	return out.UnprocessedItems, nil
}

func rowItem(index int, headers, row []string) map[string]*dynamodb.AttributeValue {
	item := make(map[string]*dynamodb.AttributeValue, len(headers)+1)
	item["row_index"] = &dynamodb.AttributeValue{N: aws.String(strconv.Itoa(index))}
	for i, h := range headers {
		item[h] = &dynamodb.AttributeValue{S: aws.String(row[i])}
	}
	return item
}

// UpdateRunStatus stores the latest run status under a fixed key
func (d *DynamoDBStorage) UpdateRunStatus(ctx context.Context, status models.RunStatus) error {
	item, err := dynamodbattribute.MarshalMap(status)
	if err != nil {
		return fmt.Errorf("failed to marshal run status: %w", err)
	}

	// Add a fixed key for the status record
	item["id"] = &dynamodb.AttributeValue{S: aws.String("run_status")}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.statusTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

// GetRunStatus retrieves the latest run status
func (d *DynamoDBStorage) GetRunStatus(ctx context.Context) (*models.RunStatus, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.statusTable),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {
				S: aws.String("run_status"),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get run status: %w", err)
	}

	if result.Item == nil {
		return &models.RunStatus{Status: models.RunStatusNever}, nil
	}

	var status models.RunStatus
	if err := dynamodbattribute.UnmarshalMap(result.Item, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run status: %w", err)
	}
	return &status, nil
}

// Close closes the DynamoDB connection
func (d *DynamoDBStorage) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}
