package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"sedo/internal/domain"
)

// ExecutionStore reads and writes execution records.
type ExecutionStore struct {
	api       dynamodbAPI
	tableName string
}

// NewExecutionStore creates an ExecutionStore over the given table.
func NewExecutionStore(api dynamodbAPI, tableName string) (*ExecutionStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &ExecutionStore{api: api, tableName: tableName}, nil
}

// Get loads a single execution record. Returns ErrNotFound when no record
// exists for the key.
func (s *ExecutionStore) Get(ctx context.Context, tenantID, id string) (domain.Execution, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            key(tenantID, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Execution{}, fmt.Errorf("repository: Get execution: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Execution{}, ErrNotFound
	}
	var exec domain.Execution
	if err := attributevalue.UnmarshalMap(out.Item, &exec); err != nil {
		return domain.Execution{}, fmt.Errorf("repository: Get execution unmarshal: %w", err)
	}
	return exec, nil
}

// Put writes a full execution record, used once at submission. The
// condition guards the invariant that a (tenantId, id) pair is never reused.
func (s *ExecutionStore) Put(ctx context.Context, exec domain.Execution) error {
	item, err := attributevalue.MarshalMap(exec)
	if err != nil {
		return fmt.Errorf("repository: Put execution marshal: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(tenantId) AND attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("repository: Put execution: %w", err)
	}
	return nil
}

// Update applies a merge-patch to an execution record: scalar fields are
// replaced, list-valued fields are appended to, and empty strings are
// normalized to NULL. When expectStates is non-empty the write is
// conditioned on the persisted state still being one of them; a failed
// precondition returns ErrStaleState.
func (s *ExecutionStore) Update(ctx context.Context, tenantID, id string, fields map[string]any, expectStates ...domain.State) (domain.Execution, error) {
	if len(fields) == 0 {
		return s.Get(ctx, tenantID, id)
	}

	var (
		exprs  []string
		names  = map[string]string{}
		values = map[string]types.AttributeValue{}
	)
	for _, k := range sortedKeys(fields) {
		v := fields[k]
		alias, placeholder := "#"+k, ":"+k
		names[alias] = k
		av, err := patchValue(v)
		if err != nil {
			return domain.Execution{}, fmt.Errorf("repository: Update execution marshal %q: %w", k, err)
		}
		values[placeholder] = av
		if isList(v) {
			exprs = append(exprs, fmt.Sprintf("%s = list_append(%s, %s)", alias, alias, placeholder))
		} else {
			exprs = append(exprs, fmt.Sprintf("%s = %s", alias, placeholder))
		}
	}

	in := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       key(tenantID, id),
		UpdateExpression:          aws.String("SET " + strings.Join(exprs, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	}

	if len(expectStates) > 0 {
		names["#state"] = "state"
		placeholders := make([]string, 0, len(expectStates))
		for i, st := range expectStates {
			p := fmt.Sprintf(":expstate%d", i)
			values[p] = &types.AttributeValueMemberS{Value: string(st)}
			placeholders = append(placeholders, p)
		}
		in.ConditionExpression = aws.String(fmt.Sprintf("#state IN (%s)", strings.Join(placeholders, ", ")))
	}

	out, err := s.api.UpdateItem(ctx, in)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return domain.Execution{}, ErrStaleState
		}
		return domain.Execution{}, fmt.Errorf("repository: Update execution: %w", err)
	}
	var exec domain.Execution
	if err := attributevalue.UnmarshalMap(out.Attributes, &exec); err != nil {
		return domain.Execution{}, fmt.Errorf("repository: Update execution unmarshal: %w", err)
	}
	return exec, nil
}

// List queries all executions for a tenant, optionally projecting only the
// named attributes, following pagination to exhaustion.
func (s *ExecutionStore) List(ctx context.Context, tenantID string, attributes ...string) ([]domain.Execution, error) {
	items, err := queryAll(ctx, s.api, s.tableName, tenantID, attributes)
	if err != nil {
		return nil, fmt.Errorf("repository: List executions: %w", err)
	}
	execs := make([]domain.Execution, 0, len(items))
	for _, item := range items {
		var exec domain.Execution
		if err := attributevalue.UnmarshalMap(item, &exec); err != nil {
			return nil, fmt.Errorf("repository: List executions unmarshal: %w", err)
		}
		execs = append(execs, exec)
	}
	return execs, nil
}

// patchValue marshals one merge-patch value, normalizing empty strings to
// NULL so cleared fields read back as absent.
func patchValue(v any) (types.AttributeValue, error) {
	if s, ok := v.(string); ok && s == "" {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}
	return attributevalue.Marshal(v)
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// queryAll pages through a tenant partition, shared by both stores.
func queryAll(ctx context.Context, api dynamodbAPI, tableName, tenantID string, attributes []string) ([]map[string]types.AttributeValue, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(tableName),
		KeyConditionExpression: aws.String("#tenantId = :tenantId"),
		ExpressionAttributeNames: map[string]string{
			"#tenantId": "tenantId",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tenantId": &types.AttributeValueMemberS{Value: tenantID},
		},
	}
	if len(attributes) > 0 {
		aliases := make([]string, 0, len(attributes))
		for _, a := range attributes {
			alias := "#" + a
			in.ExpressionAttributeNames[alias] = a
			aliases = append(aliases, alias)
		}
		in.ProjectionExpression = aws.String(strings.Join(aliases, ", "))
		in.Select = types.SelectSpecificAttributes
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := api.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
