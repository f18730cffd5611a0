// Package dynamodb implements the repository Store on a single DynamoDB
// table. Units of work are committed with TransactWriteItems and guarded by
// per-item revision conditions.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/repository"
)

// DynamoDB allows at most 100 actions per transaction.
const maxTransactItems = 100

const (
	metadataSK    = "METADATA"
	versionPrefix = "VERSION#"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store is a repository.Store backed by DynamoDB.
type Store struct {
	client    DynamoDBAPI
	tableName string
	logger    *zap.Logger
}

var _ repository.Store = (*Store)(nil)

// NewStore creates a Store on tableName.
func NewStore(client DynamoDBAPI, tableName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, tableName: tableName, logger: logger}
}

type resourceItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	domain.Resource
}

type contentItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	domain.Content
}

type versionItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	domain.Version
}

func resourcePK(id string) string { return "RESOURCE#" + id }
func contentPK(id string) string  { return "CONTENT#" + id }
func versionSK(number int) string { return fmt.Sprintf("%s%010d", versionPrefix, number) }

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func (s *Store) getItem(ctx context.Context, pk, sk string) (map[string]types.AttributeValue, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s/%s: %w: %w", pk, sk, repository.ErrUnavailable, err)
	}
	return result.Item, nil
}

func (s *Store) FindResource(ctx context.Context, id string) (*domain.Resource, error) {
	item, err := s.getItem(ctx, resourcePK(id), metadataSK)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, repository.NewNotFound(repository.ResourceRecord, id)
	}
	var out resourceItem
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resource: %w", err)
	}
	return &out.Resource, nil
}

func (s *Store) FindContent(ctx context.Context, id string) (*domain.Content, error) {
	item, err := s.getItem(ctx, contentPK(id), metadataSK)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, repository.NewNotFound(repository.ContentRecord, id)
	}
	var out contentItem
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content: %w", err)
	}
	return &out.Content, nil
}

func (s *Store) FindVersion(ctx context.Context, contentID string, number int) (*domain.Version, error) {
	item, err := s.getItem(ctx, contentPK(contentID), versionSK(number))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, repository.NewNotFound(repository.VersionRecord, fmt.Sprintf("%s#%d", contentID, number))
	}
	var out versionItem
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal version: %w", err)
	}
	return &out.Version, nil
}

// ListVersions queries the ledger partition in sort-key order, which is
// version order because numbers are zero padded.
func (s *Store) ListVersions(ctx context.Context, contentID string) ([]*domain.Version, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(contentPK(contentID))).
		And(expression.Key("SK").BeginsWith(versionPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var versions []*domain.Version
	var startKey map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ConsistentRead:            aws.Bool(true),
			ScanIndexForward:          aws.Bool(true),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query versions: %w: %w", repository.ErrUnavailable, err)
		}

		var page []versionItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal versions: %w", err)
		}
		for i := range page {
			v := page[i].Version
			versions = append(versions, &v)
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	return versions, nil
}

// Begin starts a unit of work. Nothing is sent until Commit.
func (s *Store) Begin(ctx context.Context) repository.UnitOfWork {
	return &unitOfWork{store: s}
}

type stagedWrite struct {
	record   string
	id       string
	item     types.TransactWriteItem
	onCommit func()
}

type unitOfWork struct {
	store  *Store
	writes []stagedWrite
	closed bool
}

func (u *unitOfWork) PutResource(r *domain.Resource, expectedRevision int64) error {
	if u.closed {
		return repository.ErrUnitOfWorkClosed
	}
	staged := *r
	staged.Revision = expectedRevision + 1
	item := resourceItem{PK: resourcePK(r.ID), SK: metadataSK, EntityType: "Resource", Resource: staged}
	return u.stage(repository.ResourceRecord, r.ID, item, revisionCondition(expectedRevision), func() {
		r.Revision = staged.Revision
	})
}

func (u *unitOfWork) PutContent(c *domain.Content, expectedRevision int64) error {
	if u.closed {
		return repository.ErrUnitOfWorkClosed
	}
	staged := *c.Clone()
	staged.Revision = expectedRevision + 1
	if staged.ResourceIDs == nil {
		staged.ResourceIDs = []string{}
	}
	item := contentItem{PK: contentPK(c.ID), SK: metadataSK, EntityType: "Content", Content: staged}
	return u.stage(repository.ContentRecord, c.ID, item, revisionCondition(expectedRevision), func() {
		c.Revision = staged.Revision
	})
}

func (u *unitOfWork) PutVersion(v *domain.Version) error {
	if u.closed {
		return repository.ErrUnitOfWorkClosed
	}
	staged := *v.Clone()
	if staged.Changes == nil {
		staged.Changes = []string{}
	}
	if staged.Snapshot.ResourceIDs == nil {
		staged.Snapshot.ResourceIDs = []string{}
	}
	item := versionItem{PK: contentPK(v.ContentID), SK: versionSK(v.Number), EntityType: "Version", Version: staged}
	id := fmt.Sprintf("%s#%d", v.ContentID, v.Number)
	return u.stage(repository.VersionRecord, id, item, expression.Name("PK").AttributeNotExists(), nil)
}

// revisionCondition requires the stored item to still be at expected, or
// to be absent when expected is zero.
func revisionCondition(expected int64) expression.ConditionBuilder {
	if expected == 0 {
		return expression.Name("PK").AttributeNotExists()
	}
	return expression.Name("Revision").Equal(expression.Value(expected))
}

func (u *unitOfWork) stage(record, id string, item interface{}, cond expression.ConditionBuilder, onCommit func()) error {
	if len(u.writes) >= maxTransactItems {
		return fmt.Errorf("unit of work exceeds %d items", maxTransactItems)
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", record, err)
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	u.writes = append(u.writes, stagedWrite{
		record: record,
		id:     id,
		item: types.TransactWriteItem{Put: &types.Put{
			TableName:                 aws.String(u.store.tableName),
			Item:                      av,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}},
		onCommit: onCommit,
	})
	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.closed {
		return repository.ErrUnitOfWorkClosed
	}
	u.closed = true
	if len(u.writes) == 0 {
		return nil
	}

	items := make([]types.TransactWriteItem, len(u.writes))
	for i, w := range u.writes {
		items[i] = w.item
	}
	_, err := u.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return u.translateError(err)
	}

	for _, w := range u.writes {
		if w.onCommit != nil {
			w.onCommit()
		}
	}
	u.store.logger.Debug("transaction committed", zap.Int("items", len(u.writes)))
	return nil
}

func (u *unitOfWork) Rollback() {
	u.closed = true
	u.writes = nil
}

// translateError maps a cancelled transaction to ErrConflict naming the
// first item whose condition failed.
func (u *unitOfWork) translateError(err error) error {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for i, reason := range canceled.CancellationReasons {
			code := aws.ToString(reason.Code)
			if i < len(u.writes) && (code == "ConditionalCheckFailed" || code == "TransactionConflict") {
				w := u.writes[i]
				return repository.NewConflict(w.record, w.id, strings.ToLower(code))
			}
		}
		return repository.NewConflict("transaction", "", aws.ToString(canceled.Message))
	}

	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		return repository.NewConflict("transaction", "", "concurrent transaction in progress")
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return repository.NewConflict("transaction", "", "condition check failed")
	}
	// Throttled writes are retried with the same backoff as conflicts.
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
			return repository.NewConflict("transaction", "", "throttled: "+ae.ErrorMessage())
		}
	}
	return fmt.Errorf("failed to commit transaction: %w: %w", repository.ErrUnavailable, err)
}
