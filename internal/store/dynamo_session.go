package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/infectwatch/apiserver/types"
)

// DynamoSessionRepository stores login sessions keyed by session id and
// reads them back through a secondary index on email.
type DynamoSessionRepository struct {
	client     DynamoAPI
	table      string
	emailIndex string
}

func NewDynamoSessionRepository(client DynamoAPI, table, emailIndex string) *DynamoSessionRepository {
	return &DynamoSessionRepository{client: client, table: table, emailIndex: emailIndex}
}

func (r *DynamoSessionRepository) Create(ctx context.Context, session types.LoginSession) (types.LoginSession, error) {
	item, err := attributevalue.MarshalMap(session)
	if err != nil {
		return types.LoginSession{}, fmt.Errorf("encode session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(sessionId)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return types.LoginSession{}, ErrAlreadyExists
		}
		return types.LoginSession{}, err
	}
	return session, nil
}

// ListByEmail returns every session of the user, newest first. The index has
// no sort key, so ordering happens after all pages are read.
func (r *DynamoSessionRepository) ListByEmail(ctx context.Context, email string) ([]types.LoginSession, error) {
	sessions := make([]types.LoginSession, 0)

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(r.emailIndex),
		KeyConditionExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":email": &dbtypes.AttributeValueMemberS{Value: email},
		},
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		page := make([]types.LoginSession, 0, len(out.Items))
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("decode sessions: %w", err)
		}
		sessions = append(sessions, page...)
	}

	slices.SortStableFunc(sessions, func(a, b types.LoginSession) int {
		return b.LoginTime.Compare(a.LoginTime)
	})
	return sessions, nil
}
