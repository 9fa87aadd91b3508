package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hunt-tickets/verify-api/internal/domain"
)

// PaymentAccountRepo provides typed DynamoDB operations for the
// payment_accounts table. GSI: user_id-index.
type PaymentAccountRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPaymentAccountRepo(client *dynamodb.Client, tableName string) *PaymentAccountRepo {
	return &PaymentAccountRepo{client: client, tableName: tableName}
}

func (r *PaymentAccountRepo) Put(ctx context.Context, a *domain.PaymentAccount) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal payment account: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListByUser returns every connected processor account for userID.
func (r *PaymentAccountRepo) ListByUser(ctx context.Context, userID string) ([]domain.PaymentAccount, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, err
	}
	var accounts []domain.PaymentAccount
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Revoke marks a connected account as revoked without deleting its row.
func (r *PaymentAccountRepo) Revoke(ctx context.Context, accountID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldStatus: "revoked"})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("account_id", accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
