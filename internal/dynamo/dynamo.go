// Package dynamo builds the DynamoDB client and provisions the tables the
// account store relies on.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/infectwatch/apiserver/config"
)

const (
	defaultReadCapacity  = 5
	defaultWriteCapacity = 5
)

// TableAPI is the subset of the DynamoDB client used for provisioning.
type TableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// NewClient constructs a DynamoDB client from config. Static credentials are
// used when both keys are set, otherwise the default AWS chain applies.
func NewClient(ctx context.Context, cfg config.DynamoConfig) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if strings.TrimSpace(cfg.AccessKeyID) != "" && strings.TrimSpace(cfg.SecretAccessKey) != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// EnsureTables creates the users and login-sessions tables. A table that
// already exists is not an error; anything else stops provisioning.
func EnsureTables(ctx context.Context, client TableAPI, cfg config.DynamoConfig, logger *slog.Logger) error {
	for _, input := range []*dynamodb.CreateTableInput{
		usersTable(cfg.UsersTable),
		sessionsTable(cfg.SessionsTable, cfg.EmailIndex),
	} {
		name := aws.ToString(input.TableName)
		created, err := createTable(ctx, client, input)
		if err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
		if created {
			logger.InfoContext(ctx, "table created", "table", name)
		} else {
			logger.InfoContext(ctx, "table already exists", "table", name)
		}
	}
	return nil
}

func createTable(ctx context.Context, client TableAPI, input *dynamodb.CreateTableInput) (bool, error) {
	if _, err := client.CreateTable(ctx, input); err != nil {
		// DynamoDB Local reports the same code without the typed error.
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceInUseException" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func provisioned() *dbtypes.ProvisionedThroughput {
	return &dbtypes.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(defaultReadCapacity),
		WriteCapacityUnits: aws.Int64(defaultWriteCapacity),
	}
}

func usersTable(name string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		KeySchema: []dbtypes.KeySchemaElement{
			{AttributeName: aws.String("email"), KeyType: dbtypes.KeyTypeHash},
		},
		AttributeDefinitions: []dbtypes.AttributeDefinition{
			{AttributeName: aws.String("email"), AttributeType: dbtypes.ScalarAttributeTypeS},
		},
		ProvisionedThroughput: provisioned(),
	}
}

func sessionsTable(name, emailIndex string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		KeySchema: []dbtypes.KeySchemaElement{
			{AttributeName: aws.String("sessionId"), KeyType: dbtypes.KeyTypeHash},
		},
		AttributeDefinitions: []dbtypes.AttributeDefinition{
			{AttributeName: aws.String("sessionId"), AttributeType: dbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("email"), AttributeType: dbtypes.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []dbtypes.GlobalSecondaryIndex{
			{
				IndexName: aws.String(emailIndex),
				KeySchema: []dbtypes.KeySchemaElement{
					{AttributeName: aws.String("email"), KeyType: dbtypes.KeyTypeHash},
				},
				Projection:            &dbtypes.Projection{ProjectionType: dbtypes.ProjectionTypeAll},
				ProvisionedThroughput: provisioned(),
			},
		},
		ProvisionedThroughput: provisioned(),
	}
}
