package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/infectwatch/apiserver/types"
)

// DynamoUserRepository stores users in a table whose partition key is email.
type DynamoUserRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoUserRepository(client DynamoAPI, table string) *DynamoUserRepository {
	return &DynamoUserRepository{client: client, table: table}
}

func (r *DynamoUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]dbtypes.AttributeValue{
			"email": &dbtypes.AttributeValueMemberS{Value: email},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return types.User{}, err
	}
	if len(out.Item) == 0 {
		return types.User{}, ErrNotFound
	}

	var user types.User
	if err := attributevalue.UnmarshalMap(out.Item, &user); err != nil {
		return types.User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}

// Create writes a new user and refuses to overwrite an existing email.
func (r *DynamoUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if err := r.put(ctx, user, "attribute_not_exists(email)"); err != nil {
		if isConditionFailed(err) {
			return types.User{}, ErrAlreadyExists
		}
		return types.User{}, err
	}
	return user, nil
}

// Update overwrites the full record of an existing user.
func (r *DynamoUserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	if err := r.put(ctx, user, "attribute_exists(email)"); err != nil {
		if isConditionFailed(err) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *DynamoUserRepository) put(ctx context.Context, user types.User, condition string) error {
	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String(condition),
	})
	return err
}

func isConditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}
