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

type noteItem struct {
	NoteID    string `dynamodbav:"note_id"`
	UserID    string `dynamodbav:"user_id"`
	Title     string `dynamodbav:"title"`
	Content   string `dynamodbav:"content"`
	CreatedAt int64  `dynamodbav:"created_at"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
}

func (it noteItem) toDomain() domain.Note {
	return domain.Note{
		ID:        it.NoteID,
		UserID:    it.UserID,
		Title:     it.Title,
		Content:   it.Content,
		CreatedAt: fromNanos(it.CreatedAt),
		UpdatedAt: fromNanos(it.UpdatedAt),
	}
}

// NoteRepo stores notes keyed by note id, listed through the (user_id, updated_at) GSI.
type NoteRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewNoteRepo(client API, tableName string) *NoteRepo {
	return &NoteRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *NoteRepo) ListByUser(ctx context.Context, userID string) ([]domain.Note, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexUserUpdatedAt),
		KeyConditionExpression:    aws.String("#u = :u"),
		ExpressionAttributeNames:  map[string]string{"#u": attrUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":u": &types.AttributeValueMemberS{Value: userID}},
		ScanIndexForward:          aws.Bool(false),
	})

	notes := []domain.Note{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list notes: %w", err)
		}
		var items []noteItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal notes: %w", err)
		}
		for _, it := range items {
			notes = append(notes, it.toDomain())
		}
	}
	return notes, nil
}

func (r *NoteRepo) Create(ctx context.Context, n *domain.Note) error {
	now := r.now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	item, err := attributevalue.MarshalMap(noteItem{
		NoteID:    n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: toNanos(now),
		UpdatedAt: toNanos(now),
	})
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// UpdateOwned rewrites title and content, conditioned on the note belonging to userID.
func (r *NoteRepo) UpdateOwned(ctx context.Context, userID, noteID, title, content string) (*domain.Note, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		"title":       title,
		"content":     content,
		attrUpdatedAt: toNanos(r.now()),
	})
	if err != nil {
		return nil, err
	}
	ue.withCondition(
		map[string]string{"#owner": attrUserID},
		map[string]types.AttributeValue{":owner": &types.AttributeValueMemberS{Value: userID}},
	)
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrNoteID, noteID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#owner = :owner"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, domain.ErrNoteNotFound
		}
		return nil, fmt.Errorf("update note: %w", err)
	}
	var it noteItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, fmt.Errorf("unmarshal note: %w", err)
	}
	n := it.toDomain()
	return &n, nil
}

func (r *NoteRepo) DeleteOwned(ctx context.Context, userID, noteID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrNoteID, noteID),
		ConditionExpression:       aws.String("#owner = :owner"),
		ExpressionAttributeNames:  map[string]string{"#owner": attrUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":owner": &types.AttributeValueMemberS{Value: userID}},
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.ErrNoteNotFound
		}
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// Ping checks that the notes table is reachable.
func (r *NoteRepo) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)})
	return err
}
