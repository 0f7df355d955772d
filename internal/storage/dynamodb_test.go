package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cyderes/olist-finalizer/internal/models"
	"github.com/cyderes/olist-finalizer/internal/table"
)

// MockDynamoDB mocks the subset of the DynamoDB API used by DynamoDBStorage
type MockDynamoDB struct {
	dynamodbiface.DynamoDBAPI
	mock.Mock
}

func (m *MockDynamoDB) DescribeTableWithContext(ctx aws.Context, in *dynamodb.DescribeTableInput, _ ...request.Option) (*dynamodb.DescribeTableOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*dynamodb.DescribeTableOutput), args.Error(1)
}

func (m *MockDynamoDB) BatchWriteItemWithContext(ctx aws.Context, in *dynamodb.BatchWriteItemInput, _ ...request.Option) (*dynamodb.BatchWriteItemOutput, error) {
	args := m.Called(ctx, in)
	if fn, ok := args.Get(0).(func(aws.Context, *dynamodb.BatchWriteItemInput) *dynamodb.BatchWriteItemOutput); ok {
		return fn(ctx, in), args.Error(1)
	}
	return args.Get(0).(*dynamodb.BatchWriteItemOutput), args.Error(1)
}

func (m *MockDynamoDB) PutItemWithContext(ctx aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (m *MockDynamoDB) GetItemWithContext(ctx aws.Context, in *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func largeTable(n int) *table.Table {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("r%d", i), "5", "Positive"}
	}
	return table.New([]string{"review_id", "review_score", "review_category"}, rows)
}

func TestDynamoDBStorage_StoreTable_Batches(t *testing.T) {
	client := new(MockDynamoDB)
	client.On("DescribeTableWithContext", mock.Anything, mock.Anything).Return(&dynamodb.DescribeTableOutput{}, nil)

	var batchSizes []int
	client.On("BatchWriteItemWithContext", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			in := args.Get(1).(*dynamodb.BatchWriteItemInput)
			batchSizes = append(batchSizes, len(in.RequestItems["olist_reviews"]))
		}).
		Return(&dynamodb.BatchWriteItemOutput{}, nil)

	s := newDynamoDBStorage(client, "olist_", 0)
	require.NoError(t, s.StoreTable(context.Background(), models.ReviewsDataset, largeTable(60)))

	assert.Equal(t, []int{25, 25, 10}, batchSizes)
	client.AssertExpectations(t)
}

func TestDynamoDBStorage_StoreTable_RetriesUnprocessed(t *testing.T) {
	client := new(MockDynamoDB)
	client.On("DescribeTableWithContext", mock.Anything, mock.Anything).Return(&dynamodb.DescribeTableOutput{}, nil)

	leftover := map[string][]*dynamodb.WriteRequest{
		"olist_reviews": {{PutRequest: &dynamodb.PutRequest{Item: rowItem(1, []string{"review_id"}, []string{"r1"})}}},
	}
	client.On("BatchWriteItemWithContext", mock.Anything, mock.Anything).
		Return(&dynamodb.BatchWriteItemOutput{UnprocessedItems: leftover}, nil).Once()
	client.On("BatchWriteItemWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.BatchWriteItemInput) bool {
		return len(in.RequestItems["olist_reviews"]) == 1
	})).Return(&dynamodb.BatchWriteItemOutput{}, nil).Once()

	s := newDynamoDBStorage(client, "olist_", 0)
	s.backoff = time.Millisecond
	require.NoError(t, s.StoreTable(context.Background(), models.ReviewsDataset, largeTable(2)))
	client.AssertNumberOfCalls(t, "BatchWriteItemWithContext", 2)
}

// throttledClient returns every request as unprocessed
func throttledClient() *MockDynamoDB {
	client := new(MockDynamoDB)
	client.On("DescribeTableWithContext", mock.Anything, mock.Anything).Return(&dynamodb.DescribeTableOutput{}, nil)
	client.On("BatchWriteItemWithContext", mock.Anything, mock.Anything).
		Return(func(_ aws.Context, in *dynamodb.BatchWriteItemInput) *dynamodb.BatchWriteItemOutput {
			return &dynamodb.BatchWriteItemOutput{UnprocessedItems: in.RequestItems}
		}, nil)
	return client
}

func TestDynamoDBStorage_StoreTable_GivesUpAfterMaxAttempts(t *testing.T) {
	client := throttledClient()

	s := newDynamoDBStorage(client, "olist_", 0)
	s.backoff = time.Microsecond
	err := s.StoreTable(context.Background(), models.ReviewsDataset, largeTable(3))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 items still unprocessed after 8 attempts")
	client.AssertNumberOfCalls(t, "BatchWriteItemWithContext", dynamoMaxAttempts)
}

func TestDynamoDBStorage_StoreTable_StopsOnContextDeadline(t *testing.T) {
	client := throttledClient()

	s := newDynamoDBStorage(client, "olist_", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.StoreTable(ctx, models.ReviewsDataset, largeTable(3))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Less(t, len(client.Calls), dynamoMaxAttempts+1)
}

func TestDynamoDBStorage_AppliesCallTimeout(t *testing.T) {
	client := new(MockDynamoDB)
	client.On("GetItemWithContext", mock.MatchedBy(func(ctx aws.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	s := newDynamoDBStorage(client, "olist_", time.Second)
	_, err := s.GetRunStatus(context.Background())
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestDynamoDBStorage_StoreTable_Error(t *testing.T) {
	client := new(MockDynamoDB)
	client.On("DescribeTableWithContext", mock.Anything, mock.Anything).Return(&dynamodb.DescribeTableOutput{}, nil)
	client.On("BatchWriteItemWithContext", mock.Anything, mock.Anything).
		Return((*dynamodb.BatchWriteItemOutput)(nil), assert.AnError)

	s := newDynamoDBStorage(client, "olist_", 0)
	err := s.StoreTable(context.Background(), models.ReviewsDataset, largeTable(3))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to store rows 0-2 in olist_reviews")
}

func TestRowItem(t *testing.T) {
	item := rowItem(7, []string{"review_id", "review_comment_title"}, []string{"r7", ""})

	assert.Equal(t, "7", aws.StringValue(item["row_index"].N))
	assert.Equal(t, "r7", aws.StringValue(item["review_id"].S))
	assert.Equal(t, "", aws.StringValue(item["review_comment_title"].S))
}

func TestDynamoDBStorage_RunStatus(t *testing.T) {
	client := new(MockDynamoDB)
	ctx := context.Background()

	var stored map[string]*dynamodb.AttributeValue
	client.On("PutItemWithContext", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return aws.StringValue(in.TableName) == "olist_run_status"
	})).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*dynamodb.PutItemInput).Item
	}).Return(&dynamodb.PutItemOutput{}, nil)

	s := newDynamoDBStorage(client, "olist_", 0)
	status := models.RunStatus{
		RunID:       "run-9",
		StartedAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Status:      models.RunStatusSuccess,
		RowsWritten: map[string]int{"products": 3},
	}
	require.NoError(t, s.UpdateRunStatus(ctx, status))
	require.NotNil(t, stored)
	assert.Equal(t, "run_status", aws.StringValue(stored["id"].S))
	assert.Equal(t, "run-9", aws.StringValue(stored["run_id"].S))

	client.On("GetItemWithContext", mock.Anything, mock.Anything).
		Return(&dynamodb.GetItemOutput{Item: stored}, nil).Once()
	got, err := s.GetRunStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-9", got.RunID)
	assert.Equal(t, models.RunStatusSuccess, got.Status)
	assert.Equal(t, map[string]int{"products": 3}, got.RowsWritten)
	assert.True(t, status.StartedAt.Equal(got.StartedAt))

	client.On("GetItemWithContext", mock.Anything, mock.Anything).
		Return(&dynamodb.GetItemOutput{}, nil).Once()
	got, err = s.GetRunStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusNever, got.Status)
}
