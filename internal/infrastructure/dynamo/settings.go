package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/suufi/mit-lobby7-verification/internal/domain"
)

// SettingsRepo stores the single guild-settings document. Mutations go
// through Update, which reads the record, applies the mutator, and rewrites
// the whole document. Per-document atomicity is all the consistency callers
// get; administrative mutations are rare enough that lost updates are not a
// practical concern.
type SettingsRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewSettingsRepo(client *dynamodb.Client, tableName string) *SettingsRepo {
	return &SettingsRepo{client: client, tableName: tableName}
}

// Get returns the settings document, or an empty default when none has been
// written yet.
func (r *SettingsRepo) Get(ctx context.Context) (*domain.GuildSettings, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("settings_id", domain.DefaultSettingsID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return &domain.GuildSettings{SettingsID: domain.DefaultSettingsID}, nil
	}
	var s domain.GuildSettings
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Update applies mutate to the current settings and rewrites the document in
// full, returning the updated record.
func (r *SettingsRepo) Update(ctx context.Context, mutate func(*domain.GuildSettings)) (*domain.GuildSettings, error) {
	s, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}
	mutate(s)
	s.SettingsID = domain.DefaultSettingsID

	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		return nil, err
	}
	return s, nil
}
