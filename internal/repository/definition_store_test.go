package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"sedo/internal/domain"
)

func sampleDefinition() domain.Definition {
	return domain.Definition{
		TenantID:    "acme",
		ID:          "wait-then-echo",
		InputSchema: map[string]any{"type": "object"},
		Steps: []domain.Step{
			{ID: "wait-some-time", Type: domain.StepTypeWait, Seconds: 10, Next: "last-echo"},
			{ID: "last-echo", Type: domain.StepTypeEcho, Message: "done", End: true},
		},
	}
}

func mustDefinitionStore(t *testing.T, db *fakeDynamo) *DefinitionStore {
	t.Helper()
	s, err := NewDefinitionStore(db, "sedo_definition")
	require.NoError(t, err)
	return s
}

func TestNewDefinitionStore_Validates(t *testing.T) {
	_, err := NewDefinitionStore(nil, "t")
	require.Error(t, err)
	_, err = NewDefinitionStore(&fakeDynamo{}, "")
	require.Error(t, err)
}

func TestDefinitionGet_HappyPath(t *testing.T) {
	want := sampleDefinition()
	item, err := attributevalue.MarshalMap(want)
	require.NoError(t, err)
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: item}}
	s := mustDefinitionStore(t, db)

	got, err := s.Get(context.Background(), "acme", "wait-then-echo")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDefinitionGet_NotFound(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	s := mustDefinitionStore(t, db)

	_, err := s.Get(context.Background(), "acme", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDefinitionPut_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	s := mustDefinitionStore(t, db)

	require.NoError(t, s.Put(context.Background(), sampleDefinition()))
	require.NotNil(t, db.lastPutInput)
	require.Equal(t, "sedo_definition", *db.lastPutInput.TableName)
}

func TestDefinitionDelete_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	s := mustDefinitionStore(t, db)

	require.NoError(t, s.Delete(context.Background(), "acme", "wait-then-echo"))
	require.NotNil(t, db.lastDeleteIn)
	require.Equal(t, key("acme", "wait-then-echo"), db.lastDeleteIn.Key)
}

func TestDefinitionDelete_APIError(t *testing.T) {
	db := &fakeDynamo{deleteErr: errors.New("denied")}
	s := mustDefinitionStore(t, db)
	require.Error(t, s.Delete(context.Background(), "acme", "wait-then-echo"))
}

func TestDefinitionList_ProjectsKeys(t *testing.T) {
	item, err := attributevalue.MarshalMap(domain.Definition{TenantID: "acme", ID: "wait-then-echo"})
	require.NoError(t, err)
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{item}},
	}}
	s := mustDefinitionStore(t, db)

	defs, err := s.List(context.Background(), "acme", "tenantId", "id")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, "#tenantId, #id", *db.queryInputs[0].ProjectionExpression)
}
