package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"sedo/internal/domain"
)

// DefinitionStore reads and writes definition records. The execution engine
// never touches this store; it trusts the snapshot embedded in the
// execution record.
type DefinitionStore struct {
	api       dynamodbAPI
	tableName string
}

// NewDefinitionStore creates a DefinitionStore over the given table.
func NewDefinitionStore(api dynamodbAPI, tableName string) (*DefinitionStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DefinitionStore{api: api, tableName: tableName}, nil
}

// Get loads a single definition. Returns ErrNotFound when absent.
func (s *DefinitionStore) Get(ctx context.Context, tenantID, id string) (domain.Definition, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       key(tenantID, id),
	})
	if err != nil {
		return domain.Definition{}, fmt.Errorf("repository: Get definition: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Definition{}, ErrNotFound
	}
	var def domain.Definition
	if err := attributevalue.UnmarshalMap(out.Item, &def); err != nil {
		return domain.Definition{}, fmt.Errorf("repository: Get definition unmarshal: %w", err)
	}
	return def, nil
}

// Put writes or replaces a definition record.
func (s *DefinitionStore) Put(ctx context.Context, def domain.Definition) error {
	item, err := attributevalue.MarshalMap(def)
	if err != nil {
		return fmt.Errorf("repository: Put definition marshal: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: Put definition: %w", err)
	}
	return nil
}

// Delete removes a definition record. Deleting an absent record is not an
// error.
func (s *DefinitionStore) Delete(ctx context.Context, tenantID, id string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       key(tenantID, id),
	})
	if err != nil {
		return fmt.Errorf("repository: Delete definition: %w", err)
	}
	return nil
}

// List queries all definitions for a tenant, optionally projecting only the
// named attributes.
func (s *DefinitionStore) List(ctx context.Context, tenantID string, attributes ...string) ([]domain.Definition, error) {
	items, err := queryAll(ctx, s.api, s.tableName, tenantID, attributes)
	if err != nil {
		return nil, fmt.Errorf("repository: List definitions: %w", err)
	}
	defs := make([]domain.Definition, 0, len(items))
	for _, item := range items {
		var def domain.Definition
		if err := attributevalue.UnmarshalMap(item, &def); err != nil {
			return nil, fmt.Errorf("repository: List definitions unmarshal: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
