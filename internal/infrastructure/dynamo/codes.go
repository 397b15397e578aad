package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hd-notes/notes-api/internal/domain"
)

// DynamoDB per-request item limits.
const (
	maxTransactItems = 100
	maxBatchWrite    = 25
)

type codeItem struct {
	CodeID    string  `dynamodbav:"code_id"`
	Email     string  `dynamodbav:"email"`
	CodeHash  string  `dynamodbav:"code_hash"`
	Purpose   string  `dynamodbav:"purpose"`
	ExpiresAt int64   `dynamodbav:"expires_at"`
	Used      bool    `dynamodbav:"used"`
	UserID    *string `dynamodbav:"user_id,omitempty"`
	CreatedAt int64   `dynamodbav:"created_at"`
	// TTL is epoch seconds, read by DynamoDB's expiry sweeper.
	TTL int64 `dynamodbav:"ttl"`
}

func toCodeItem(c *domain.OneTimeCode) codeItem {
	return codeItem{
		CodeID:    c.ID,
		Email:     c.Email,
		CodeHash:  c.CodeHash,
		Purpose:   string(c.Purpose),
		ExpiresAt: toNanos(c.ExpiresAt),
		Used:      c.Used,
		UserID:    c.UserID,
		CreatedAt: toNanos(c.CreatedAt),
		TTL:       c.ExpiresAt.Add(24 * time.Hour).Unix(),
	}
}

func (it codeItem) toDomain() *domain.OneTimeCode {
	return &domain.OneTimeCode{
		ID:        it.CodeID,
		Email:     it.Email,
		CodeHash:  it.CodeHash,
		Purpose:   domain.Purpose(it.Purpose),
		ExpiresAt: fromNanos(it.ExpiresAt),
		Used:      it.Used,
		UserID:    it.UserID,
		CreatedAt: fromNanos(it.CreatedAt),
	}
}

// CodeRepo stores hashed one-time codes, keyed by code id with an (email, created_at) GSI.
type CodeRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewCodeRepo(client API, tableName string) *CodeRepo {
	return &CodeRepo{client: client, tableName: tableName, now: time.Now}
}

// Replace retires the unused codes for c.Email and puts c in one transaction.
func (r *CodeRepo) Replace(ctx context.Context, c *domain.OneTimeCode) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now().UTC()
	}
	live, err := r.unused(ctx, c.Email, 0)
	if err != nil {
		return err
	}
	if len(live) >= maxTransactItems {
		live = live[:maxTransactItems-1]
	}

	item, err := attributevalue.MarshalMap(toCodeItem(c))
	if err != nil {
		return fmt.Errorf("marshal code: %w", err)
	}
	writes := make([]types.TransactWriteItem, 0, len(live)+1)
	writes = append(writes, r.retireWrites(live, "")...)
	writes = append(writes, types.TransactWriteItem{Put: &types.Put{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attrCodeID},
	}})

	if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes}); err != nil {
		return fmt.Errorf("replace code: %w", err)
	}
	return nil
}

// Consume marks c used with a conditional write and retires the other unused codes
// for c.Email in the same transaction. It reports false when c was already used.
// The sibling list comes from an eventually consistent index, so a sibling deleted
// between the query and the write cancels the transaction; that case is retried once.
func (r *CodeRepo) Consume(ctx context.Context, c *domain.OneTimeCode) (bool, error) {
	for attempt := 0; ; attempt++ {
		live, err := r.unused(ctx, c.Email, 0)
		if err != nil {
			return false, err
		}
		if len(live) >= maxTransactItems {
			live = live[:maxTransactItems-1]
		}

		writes := make([]types.TransactWriteItem, 0, len(live)+1)
		writes = append(writes, types.TransactWriteItem{Update: &types.Update{
			TableName:           aws.String(r.tableName),
			Key:                 strKey(attrCodeID, c.ID),
			UpdateExpression:    aws.String("SET #u = :true"),
			ConditionExpression: aws.String("attribute_exists(#id) AND #u = :false"),
			ExpressionAttributeNames: map[string]string{
				"#u":  attrUsed,
				"#id": attrCodeID,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":true":  &types.AttributeValueMemberBOOL{Value: true},
				":false": &types.AttributeValueMemberBOOL{Value: false},
			},
		}})
		writes = append(writes, r.retireWrites(live, c.ID)...)

		_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
		if err == nil {
			return true, nil
		}
		failed := cancelledByCondition(err)
		switch {
		case len(failed) == 0:
			return false, fmt.Errorf("consume code: %w", err)
		case failed[0]:
			return false, nil
		case attempt == 0:
			continue
		default:
			return false, fmt.Errorf("consume code: %w", err)
		}
	}
}

// retireWrites marks each live code used, skipping skipID. The existence check keeps
// an update from recreating a code the sweeper already deleted.
func (r *CodeRepo) retireWrites(live []codeItem, skipID string) []types.TransactWriteItem {
	writes := make([]types.TransactWriteItem, 0, len(live))
	for _, old := range live {
		if old.CodeID == skipID {
			continue
		}
		writes = append(writes, types.TransactWriteItem{Update: &types.Update{
			TableName:           aws.String(r.tableName),
			Key:                 strKey(attrCodeID, old.CodeID),
			UpdateExpression:    aws.String("SET #u = :true"),
			ConditionExpression: aws.String("attribute_exists(#id)"),
			ExpressionAttributeNames: map[string]string{
				"#u":  attrUsed,
				"#id": attrCodeID,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":true": &types.AttributeValueMemberBOOL{Value: true},
			},
		}})
	}
	return writes
}

// LatestUnused returns the newest unused code for email, or a NotFound error.
func (r *CodeRepo) LatestUnused(ctx context.Context, email string) (*domain.OneTimeCode, error) {
	items, err := r.unused(ctx, email, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no unused code for %s: %w", email, domain.ErrNotFound)
	}
	return items[0].toDomain(), nil
}

// unused pages through the email's codes newest first. limit 0 means all.
func (r *CodeRepo) unused(ctx context.Context, email string, limit int) ([]codeItem, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexEmailCreatedAt),
		KeyConditionExpression: aws.String("#e = :e"),
		FilterExpression:       aws.String("#u = :false"),
		ExpressionAttributeNames: map[string]string{
			"#e": attrEmail,
			"#u": attrUsed,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e":     &types.AttributeValueMemberS{Value: email},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
		ScanIndexForward: aws.Bool(false),
	})

	var out []codeItem
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query codes: %w", err)
		}
		var items []codeItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal codes: %w", err)
		}
		out = append(out, items...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
	}
	return out, nil
}

// MarkUsed consumes the code with a conditional update on used = false. It reports
// false when another caller consumed it first.
func (r *CodeRepo) MarkUsed(ctx context.Context, codeID string) (bool, error) {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(attrCodeID, codeID),
		UpdateExpression:    aws.String("SET #u = :true"),
		ConditionExpression: aws.String("attribute_exists(#id) AND #u = :false"),
		ExpressionAttributeNames: map[string]string{
			"#u":  attrUsed,
			"#id": attrCodeID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("mark code used: %w", err)
	}
	return true, nil
}

// PurgeStale deletes codes that are used or expired before the cutoff. TTL removes
// them eventually anyway; this keeps the GSI small between TTL runs.
func (r *CodeRepo) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:            aws.String(r.tableName),
		FilterExpression:     aws.String("#u = :true OR #x < :before"),
		ProjectionExpression: aws.String("#id"),
		ExpressionAttributeNames: map[string]string{
			"#u":  attrUsed,
			"#x":  attrExpiresAt,
			"#id": attrCodeID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":   &types.AttributeValueMemberBOOL{Value: true},
			":before": &types.AttributeValueMemberN{Value: fmt.Sprint(toNanos(before))},
		},
	})

	var deleted int64
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("scan codes: %w", err)
		}
		for start := 0; start < len(page.Items); start += maxBatchWrite {
			end := min(start+maxBatchWrite, len(page.Items))
			reqs := make([]types.WriteRequest, 0, end-start)
			for _, it := range page.Items[start:end] {
				reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{attrCodeID: it[attrCodeID]},
				}})
			}
			n, err := r.batchDelete(ctx, reqs)
			deleted += n
			if err != nil {
				return deleted, err
			}
		}
	}
	return deleted, nil
}

// batchDelete writes one batch, resubmitting unprocessed items once.
func (r *CodeRepo) batchDelete(ctx context.Context, reqs []types.WriteRequest) (int64, error) {
	out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{r.tableName: reqs},
	})
	if err != nil {
		return 0, fmt.Errorf("delete codes: %w", err)
	}
	left := out.UnprocessedItems[r.tableName]
	if len(left) == 0 {
		return int64(len(reqs)), nil
	}
	out, err = r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{r.tableName: left},
	})
	if err != nil {
		return int64(len(reqs) - len(left)), fmt.Errorf("delete codes: %w", err)
	}
	return int64(len(reqs) - len(out.UnprocessedItems[r.tableName])), nil
}
