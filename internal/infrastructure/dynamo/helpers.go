package dynamo

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute and index names shared by the tables.
const (
	attrEmail     = "email"
	attrUserID    = "user_id"
	attrCodeID    = "code_id"
	attrNoteID    = "note_id"
	attrCreatedAt = "created_at"
	attrUpdatedAt = "updated_at"
	attrUsed      = "used"
	attrExpiresAt = "expires_at"
	attrTTL       = "ttl"

	indexUserID         = "user_id-index"
	indexEmailCreatedAt = "email-created_at-index"
	indexUserUpdatedAt  = "user_id-updated_at-index"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// updateExpr is a SET expression with its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET expression.
// Fields are emitted in sorted order so the expression is deterministic.
func buildUpdateExpr(updates map[string]interface{}) (*updateExpr, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ue := &updateExpr{
		Expr:   "SET ",
		Names:  make(map[string]string, len(keys)),
		Values: make(map[string]types.AttributeValue, len(keys)),
	}
	for i, k := range keys {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(updates[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		ue.Names[nameKey] = k
		ue.Values[valueKey] = av
		if i > 0 {
			ue.Expr += ", "
		}
		ue.Expr += fmt.Sprintf("%s = %s", nameKey, valueKey)
	}
	return ue, nil
}

// withCondition adds placeholders used only by a ConditionExpression.
func (ue *updateExpr) withCondition(names map[string]string, values map[string]types.AttributeValue) *updateExpr {
	for k, v := range names {
		ue.Names[k] = v
	}
	for k, v := range values {
		ue.Values[k] = v
	}
	return ue
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// cancelledByCondition reports, per transaction item, whether a cancelled
// TransactWriteItems call failed that item's condition. It returns nil for any
// other error or when DynamoDB gave no reasons.
func cancelledByCondition(err error) []bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || len(tce.CancellationReasons) == 0 {
		return nil
	}
	out := make([]bool, len(tce.CancellationReasons))
	for i, reason := range tce.CancellationReasons {
		out[i] = aws.ToString(reason.Code) == "ConditionalCheckFailed"
	}
	return out
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }
