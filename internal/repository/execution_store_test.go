package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"sedo/internal/domain"
)

type fakeDynamo struct {
	getOut    *dynamodb.GetItemOutput
	getErr    error
	putErr    error
	updateOut *dynamodb.UpdateItemOutput
	updateErr error
	deleteErr error
	queryOuts []*dynamodb.QueryOutput
	queryErr  error

	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	lastUpdateIn *dynamodb.UpdateItemInput
	lastDeleteIn *dynamodb.DeleteItemInput
	queryInputs  []*dynamodb.QueryInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdateIn = in
	return f.updateOut, f.updateErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDeleteIn = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	copied := *in
	f.queryInputs = append(f.queryInputs, &copied)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := f.queryOuts[0]
	if len(f.queryOuts) > 1 {
		f.queryOuts = f.queryOuts[1:]
	}
	return out, nil
}

func sampleExecution() domain.Execution {
	return domain.Execution{
		TenantID: "acme",
		ID:       "acme:wait-then-echo:abc123",
		State:    domain.StepStarted,
		Step:     "wait-some-time",
		Input:    map[string]any{"foo": "bar"},
		Definition: domain.Definition{
			TenantID: "acme",
			ID:       "wait-then-echo",
			Steps: []domain.Step{
				{ID: "wait-some-time", Type: domain.StepTypeWait, Seconds: 10, Next: "last-echo"},
				{ID: "last-echo", Type: domain.StepTypeEcho, Message: "done", End: true},
			},
		},
	}
}

func mustItem(t *testing.T, exec domain.Execution) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(exec)
	require.NoError(t, err)
	return item
}

func mustExecutionStore(t *testing.T, db *fakeDynamo) *ExecutionStore {
	t.Helper()
	s, err := NewExecutionStore(db, "sedo_execution")
	require.NoError(t, err)
	return s
}

func TestNewExecutionStore_Validates(t *testing.T) {
	_, err := NewExecutionStore(nil, "t")
	require.Error(t, err)
	_, err = NewExecutionStore(&fakeDynamo{}, " ")
	require.Error(t, err)
}

func TestExecutionGet_HappyPath(t *testing.T) {
	want := sampleExecution()
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: mustItem(t, want)}}
	s := mustExecutionStore(t, db)

	got, err := s.Get(context.Background(), "acme", want.ID)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.NotNil(t, db.lastGetInput)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestExecutionGet_NotFound(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	s := mustExecutionStore(t, db)

	_, err := s.Get(context.Background(), "acme", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExecutionGet_APIError(t *testing.T) {
	db := &fakeDynamo{getErr: errors.New("throttled")}
	s := mustExecutionStore(t, db)

	_, err := s.Get(context.Background(), "acme", "x")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestExecutionPut_GuardsKeyReuse(t *testing.T) {
	db := &fakeDynamo{}
	s := mustExecutionStore(t, db)

	require.NoError(t, s.Put(context.Background(), sampleExecution()))
	require.NotNil(t, db.lastPutInput)
	require.Equal(t, "attribute_not_exists(tenantId) AND attribute_not_exists(id)",
		*db.lastPutInput.ConditionExpression)
}

func TestExecutionUpdate_MergePatchExpression(t *testing.T) {
	db := &fakeDynamo{updateOut: &dynamodb.UpdateItemOutput{Attributes: mustItem(t, sampleExecution())}}
	s := mustExecutionStore(t, db)

	_, err := s.Update(context.Background(), "acme", "x", map[string]any{
		"state": "StepStarted",
		"step":  "wait-some-time",
	})
	require.NoError(t, err)

	in := db.lastUpdateIn
	require.NotNil(t, in)
	require.Equal(t, "SET #state = :state, #step = :step", *in.UpdateExpression)
	require.Equal(t, "state", in.ExpressionAttributeNames["#state"])
	require.Equal(t, &types.AttributeValueMemberS{Value: "StepStarted"}, in.ExpressionAttributeValues[":state"])
	require.Nil(t, in.ConditionExpression)
	require.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
}

func TestExecutionUpdate_EmptyStringBecomesNull(t *testing.T) {
	db := &fakeDynamo{updateOut: &dynamodb.UpdateItemOutput{Attributes: mustItem(t, sampleExecution())}}
	s := mustExecutionStore(t, db)

	_, err := s.Update(context.Background(), "acme", "x", map[string]any{"wait_timestamp": ""})
	require.NoError(t, err)

	av := db.lastUpdateIn.ExpressionAttributeValues[":wait_timestamp"]
	require.IsType(t, &types.AttributeValueMemberNULL{}, av)
}

func TestExecutionUpdate_ListValuesAppend(t *testing.T) {
	db := &fakeDynamo{updateOut: &dynamodb.UpdateItemOutput{Attributes: mustItem(t, sampleExecution())}}
	s := mustExecutionStore(t, db)

	_, err := s.Update(context.Background(), "acme", "x", map[string]any{
		"history": []any{"StepStarted"},
	})
	require.NoError(t, err)
	require.Equal(t, "SET #history = list_append(#history, :history)", *db.lastUpdateIn.UpdateExpression)
}

func TestExecutionUpdate_ExpectedStatePrecondition(t *testing.T) {
	db := &fakeDynamo{updateOut: &dynamodb.UpdateItemOutput{Attributes: mustItem(t, sampleExecution())}}
	s := mustExecutionStore(t, db)

	_, err := s.Update(context.Background(), "acme", "x",
		map[string]any{"state": "StepStarted"},
		domain.ExecutionStarted, domain.StepStarted)
	require.NoError(t, err)

	in := db.lastUpdateIn
	require.NotNil(t, in.ConditionExpression)
	require.Equal(t, "#state IN (:expstate0, :expstate1)", *in.ConditionExpression)
	require.Equal(t, &types.AttributeValueMemberS{Value: "ExecutionStarted"}, in.ExpressionAttributeValues[":expstate0"])
}

func TestExecutionUpdate_ConditionFailureIsStaleState(t *testing.T) {
	db := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{Message: aws.String("no match")}}
	s := mustExecutionStore(t, db)

	_, err := s.Update(context.Background(), "acme", "x",
		map[string]any{"state": "StepStarted"}, domain.StepStarted)
	require.ErrorIs(t, err, ErrStaleState)
}

func TestExecutionList_PaginatesAndProjects(t *testing.T) {
	first := mustItem(t, sampleExecution())
	second := mustItem(t, domain.Execution{TenantID: "acme", ID: "other", State: domain.ExecutionSucceeded})
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{first}, LastEvaluatedKey: key("acme", "x")},
		{Items: []map[string]types.AttributeValue{second}},
	}}
	s := mustExecutionStore(t, db)

	execs, err := s.List(context.Background(), "acme", "tenantId", "id", "state", "step")
	require.NoError(t, err)
	require.Len(t, execs, 2)

	require.Len(t, db.queryInputs, 2)
	require.Equal(t, "#tenantId, #id, #state, #step", *db.queryInputs[0].ProjectionExpression)
	require.Nil(t, db.queryInputs[0].ExclusiveStartKey)
	require.NotNil(t, db.queryInputs[1].ExclusiveStartKey)
}
