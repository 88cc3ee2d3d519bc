package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/infectwatch/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items per table in insertion order and understands just
// enough of the expression language for the repositories.
type fakeDynamo struct {
	keys     map[string]string
	items    map[string][]map[string]dbtypes.AttributeValue
	pageSize int
	queries  int
	failWith error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		keys: map[string]string{
			"users":          "email",
			"login-sessions": "sessionId",
		},
		items: map[string][]map[string]dbtypes.AttributeValue{},
	}
}

func stringAttr(item map[string]dbtypes.AttributeValue, name string) string {
	if v, ok := item[name].(*dbtypes.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) find(table, key string) int {
	attr := f.keys[table]
	for i, item := range f.items[table] {
		if stringAttr(item, attr) == key {
			return i
		}
	}
	return -1
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	table := aws.ToString(in.TableName)
	idx := f.find(table, stringAttr(in.Key, f.keys[table]))
	if idx < 0 {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: f.items[table][idx]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	table := aws.ToString(in.TableName)
	idx := f.find(table, stringAttr(in.Item, f.keys[table]))
	cond := aws.ToString(in.ConditionExpression)
	switch {
	case strings.HasPrefix(cond, "attribute_not_exists") && idx >= 0,
		strings.HasPrefix(cond, "attribute_exists") && idx < 0:
		return nil, &dbtypes.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}
	if idx >= 0 {
		f.items[table][idx] = in.Item
	} else {
		f.items[table] = append(f.items[table], in.Item)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.queries++
	table := aws.ToString(in.TableName)
	email := stringAttr(in.ExpressionAttributeValues, ":email")

	var matched []map[string]dbtypes.AttributeValue
	for _, item := range f.items[table] {
		if stringAttr(item, "email") == email {
			matched = append(matched, item)
		}
	}

	start := 0
	if in.ExclusiveStartKey != nil {
		after := stringAttr(in.ExclusiveStartKey, f.keys[table])
		for i, item := range matched {
			if stringAttr(item, f.keys[table]) == after {
				start = i + 1
			}
		}
	}
	end := len(matched)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &dynamodb.QueryOutput{Items: matched[start:end]}
	if end < len(matched) {
		last := matched[end-1]
		out.LastEvaluatedKey = map[string]dbtypes.AttributeValue{
			f.keys[table]: last[f.keys[table]],
		}
	}
	return out, nil
}

func TestDynamoUserRepositoryCreateAndGet(t *testing.T) {
	client := newFakeDynamo()
	repo := NewDynamoUserRepository(client, "users")
	ctx := context.Background()

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err := repo.Create(ctx, types.User{
		Email:        "alice@example.com",
		Name:         "Alice",
		PasswordHash: "hash",
		CreatedAt:    created,
	})
	require.NoError(t, err)

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Zero(t, got.LoginCount)
	assert.Nil(t, got.LastLogin)
}

func TestDynamoUserRepositoryCreateDuplicate(t *testing.T) {
	client := newFakeDynamo()
	repo := NewDynamoUserRepository(client, "users")
	ctx := context.Background()

	_, err := repo.Create(ctx, types.User{Email: "bob@example.com", Name: "Bob"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, types.User{Email: "bob@example.com", Name: "Impostor"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := repo.GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)
}

func TestDynamoUserRepositoryGetMissing(t *testing.T) {
	repo := NewDynamoUserRepository(newFakeDynamo(), "users")

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoUserRepositoryUpdate(t *testing.T) {
	client := newFakeDynamo()
	repo := NewDynamoUserRepository(client, "users")
	ctx := context.Background()

	_, err := repo.Update(ctx, types.User{Email: "ghost@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Create(ctx, types.User{Email: "carol@example.com", Name: "Carol"})
	require.NoError(t, err)

	now := time.Date(2025, 3, 2, 8, 30, 0, 0, time.UTC)
	_, err = repo.Update(ctx, types.User{Email: "carol@example.com", Name: "Carol", LoginCount: 1, LastLogin: &now})
	require.NoError(t, err)

	got, err := repo.GetByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, got.LoginCount)
	require.NotNil(t, got.LastLogin)
	assert.True(t, now.Equal(*got.LastLogin))
}

func TestDynamoUserRepositoryPropagatesClientErrors(t *testing.T) {
	client := newFakeDynamo()
	client.failWith = errors.New("throttled")
	repo := NewDynamoUserRepository(client, "users")

	_, err := repo.GetByEmail(context.Background(), "a@example.com")
	assert.EqualError(t, err, "throttled")
}

func TestDynamoSessionRepositoryListByEmailNewestFirst(t *testing.T) {
	client := newFakeDynamo()
	client.pageSize = 2
	repo := NewDynamoSessionRepository(client, "login-sessions", "email-index")
	ctx := context.Background()

	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	inserts := []types.LoginSession{
		{SessionID: "s2", Email: "dan@example.com", LoginTime: base.Add(2 * time.Hour)},
		{SessionID: "s1", Email: "dan@example.com", LoginTime: base.Add(1 * time.Hour)},
		{SessionID: "other", Email: "eve@example.com", LoginTime: base},
		{SessionID: "s3", Email: "dan@example.com", LoginTime: base.Add(3 * time.Hour),
			DeviceInfo: types.DeviceInfo{Browser: "Firefox", OS: "Linux"}},
	}
	for _, s := range inserts {
		_, err := repo.Create(ctx, s)
		require.NoError(t, err)
	}

	sessions, err := repo.ListByEmail(ctx, "dan@example.com")
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "s3", sessions[0].SessionID)
	assert.Equal(t, "s2", sessions[1].SessionID)
	assert.Equal(t, "s1", sessions[2].SessionID)
	assert.Equal(t, "Firefox", sessions[0].DeviceInfo.Browser)
	assert.Equal(t, 2, client.queries)
}

func TestDynamoSessionRepositoryListByEmailEmpty(t *testing.T) {
	repo := NewDynamoSessionRepository(newFakeDynamo(), "login-sessions", "email-index")

	sessions, err := repo.ListByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestDynamoSessionRepositoryCreateIsAppendOnly(t *testing.T) {
	repo := NewDynamoSessionRepository(newFakeDynamo(), "login-sessions", "email-index")
	ctx := context.Background()

	_, err := repo.Create(ctx, types.LoginSession{SessionID: "dup", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, types.LoginSession{SessionID: "dup", Email: "b@example.com"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestDynamoSessionRepositoryListByEmailPropagatesClientErrors(t *testing.T) {
	client := newFakeDynamo()
	client.failWith = errors.New("throttled")
	repo := NewDynamoSessionRepository(client, "login-sessions", "email-index")

	_, err := repo.ListByEmail(context.Background(), "dan@example.com")
	assert.EqualError(t, err, "throttled")
}
