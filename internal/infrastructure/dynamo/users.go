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

const dateLayout = "2006-01-02"

// userItem is the users table row. The normalized email is the partition key,
// which makes email uniqueness a property of the table itself.
type userItem struct {
	Email       string `dynamodbav:"email"`
	UserID      string `dynamodbav:"user_id"`
	Name        string `dynamodbav:"name"`
	DateOfBirth string `dynamodbav:"date_of_birth,omitempty"`
	Verified    bool   `dynamodbav:"verified"`
	CreatedAt   int64  `dynamodbav:"created_at"`
	UpdatedAt   int64  `dynamodbav:"updated_at"`
}

func toUserItem(u *domain.User) userItem {
	it := userItem{
		Email:     u.Email,
		UserID:    u.ID,
		Name:      u.Name,
		Verified:  u.Verified,
		CreatedAt: toNanos(u.CreatedAt),
		UpdatedAt: toNanos(u.UpdatedAt),
	}
	if u.DateOfBirth != nil {
		it.DateOfBirth = u.DateOfBirth.Format(dateLayout)
	}
	return it
}

func (it userItem) toDomain() *domain.User {
	u := &domain.User{
		ID:        it.UserID,
		Email:     it.Email,
		Name:      it.Name,
		Verified:  it.Verified,
		CreatedAt: fromNanos(it.CreatedAt),
		UpdatedAt: fromNanos(it.UpdatedAt),
	}
	if it.DateOfBirth != "" {
		if dob, err := time.Parse(dateLayout, it.DateOfBirth); err == nil {
			u.DateOfBirth = &dob
		}
	}
	return u
}

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexUserID),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attrUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: userID}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, domain.ErrUserNotFound
	}
	var it userItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &it); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return it.toDomain(), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if out.Item == nil {
		return nil, domain.ErrUserNotFound
	}
	var it userItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return it.toDomain(), nil
}

// Create inserts a new user. A duplicate email yields a Conflict error.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	now := r.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	item, err := attributevalue.MarshalMap(toUserItem(u))
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#e)"),
		ExpressionAttributeNames: map[string]string{"#e": attrEmail},
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.NewError(domain.KindConflict, "user_exists", "User already exists")
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Upsert writes name and date of birth for u.Email in a single UpdateItem. Identity
// fields (id, verified, created_at) are only set when the row is new.
func (r *UserRepo) Upsert(ctx context.Context, u *domain.User) (*domain.User, error) {
	now := toNanos(r.now())
	values := map[string]types.AttributeValue{
		":name":  &types.AttributeValueMemberS{Value: u.Name},
		":id":    &types.AttributeValueMemberS{Value: u.ID},
		":false": &types.AttributeValueMemberBOOL{Value: false},
		":now":   &types.AttributeValueMemberN{Value: fmt.Sprint(now)},
	}
	expr := "SET #name = :name, #uid = if_not_exists(#uid, :id), #ver = if_not_exists(#ver, :false), " +
		"#cat = if_not_exists(#cat, :now), #uat = :now"
	if u.DateOfBirth != nil {
		values[":dob"] = &types.AttributeValueMemberS{Value: u.DateOfBirth.Format(dateLayout)}
		expr += ", #dob = :dob"
	} else {
		expr += " REMOVE #dob"
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey(attrEmail, u.Email),
		UpdateExpression: aws.String(expr),
		ExpressionAttributeNames: map[string]string{
			"#name": "name",
			"#uid":  attrUserID,
			"#ver":  "verified",
			"#cat":  attrCreatedAt,
			"#uat":  attrUpdatedAt,
			"#dob":  "date_of_birth",
		},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	var it userItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return it.toDomain(), nil
}

// MarkVerified flips verified to true for the user with userID.
func (r *UserRepo) MarkVerified(ctx context.Context, userID string) error {
	u, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	ue, err := buildUpdateExpr(map[string]interface{}{
		"verified":    true,
		attrUpdatedAt: toNanos(r.now()),
	})
	if err != nil {
		return err
	}
	ue.withCondition(
		map[string]string{"#cuid": attrUserID},
		map[string]types.AttributeValue{":cuid": &types.AttributeValueMemberS{Value: userID}},
	)
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrEmail, u.Email),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#cuid = :cuid"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("mark user verified: %w", err)
	}
	return nil
}
