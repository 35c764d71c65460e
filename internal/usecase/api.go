package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"sedo/internal/domain"
	"sedo/internal/repository"
)

// DefinitionValidator checks definition documents and execution inputs.
type DefinitionValidator interface {
	ValidateDefinition(raw []byte) error
	ValidateInput(inputSchema map[string]any, input map[string]any) error
}

// DefinitionReadWriter is the definition store surface the API consumes.
type DefinitionReadWriter interface {
	Get(ctx context.Context, tenantID, id string) (domain.Definition, error)
	Put(ctx context.Context, def domain.Definition) error
	Delete(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID string, attributes ...string) ([]domain.Definition, error)
}

// ExecutionReadWriter is the execution store surface the API consumes. The
// API creates records and reads them back; only the engine patches them.
type ExecutionReadWriter interface {
	Get(ctx context.Context, tenantID, id string) (domain.Execution, error)
	Put(ctx context.Context, exec domain.Execution) error
	List(ctx context.Context, tenantID string, attributes ...string) ([]domain.Execution, error)
}

// SubmitReceipt is returned to the caller after an execution is accepted.
type SubmitReceipt struct {
	TenantID string       `json:"tenantId"`
	ID       string       `json:"id"`
	State    domain.State `json:"state"`
}

// Service implements the CRUD and submission operations behind the HTTP
// front door.
type Service struct {
	definitions DefinitionReadWriter
	executions  ExecutionReadWriter
	validator   DefinitionValidator
	dispatcher  EventDispatcher
	logger      *slog.Logger
}

// NewService creates a Service.
func NewService(defs DefinitionReadWriter, execs ExecutionReadWriter, v DefinitionValidator, d EventDispatcher, logger *slog.Logger) (*Service, error) {
	if defs == nil {
		return nil, errors.New("usecase: definition store must not be nil")
	}
	if execs == nil {
		return nil, errors.New("usecase: execution store must not be nil")
	}
	if v == nil {
		return nil, errors.New("usecase: definition validator must not be nil")
	}
	if d == nil {
		return nil, errors.New("usecase: dispatcher must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		definitions: defs,
		executions:  execs,
		validator:   v,
		dispatcher:  d,
		logger:      logger,
	}, nil
}

// ListDefinitions returns the tenant's definitions, projected to their keys.
func (s *Service) ListDefinitions(ctx context.Context, tenantID string) ([]domain.Definition, error) {
	defs, err := s.definitions.List(ctx, tenantID, "tenantId", "id")
	if err != nil {
		return nil, newError(ErrorStorage, "definition_list", err)
	}
	return defs, nil
}

// CreateDefinition validates and stores a definition document.
func (s *Service) CreateDefinition(ctx context.Context, tenantID string, doc []byte) (domain.Definition, error) {
	if err := s.validator.ValidateDefinition(doc); err != nil {
		return domain.Definition{}, newError(ErrorInvalidInput, "definition_contract", err)
	}
	var def domain.Definition
	if err := json.Unmarshal(doc, &def); err != nil {
		return domain.Definition{}, newError(ErrorInvalidInput, "definition_decode", err)
	}
	def.TenantID = tenantID
	if err := s.definitions.Put(ctx, def); err != nil {
		return domain.Definition{}, newError(ErrorStorage, "definition_put", err)
	}
	s.logger.Info("created definition", "tenantId", tenantID, "id", def.ID)
	return domain.Definition{TenantID: def.TenantID, ID: def.ID}, nil
}

// GetDefinition returns a single definition.
func (s *Service) GetDefinition(ctx context.Context, tenantID, id string) (domain.Definition, error) {
	def, err := s.definitions.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Definition{}, newError(ErrorNotFound, "definition_not_found", err)
		}
		return domain.Definition{}, newError(ErrorStorage, "definition_get", err)
	}
	return def, nil
}

// DeleteDefinition removes a definition. In-flight executions keep their
// embedded snapshot and are unaffected.
func (s *Service) DeleteDefinition(ctx context.Context, tenantID, id string) error {
	if err := s.definitions.Delete(ctx, tenantID, id); err != nil {
		return newError(ErrorStorage, "definition_delete", err)
	}
	return nil
}

// SubmitExecution creates an execution of a definition against an input and
// dispatches its first event.
func (s *Service) SubmitExecution(ctx context.Context, tenantID, definitionID string, input map[string]any) (SubmitReceipt, error) {
	def, err := s.GetDefinition(ctx, tenantID, definitionID)
	if err != nil {
		return SubmitReceipt{}, err
	}

	if def.InputSchema != nil {
		if err := s.validator.ValidateInput(def.InputSchema, input); err != nil {
			return SubmitReceipt{}, newError(ErrorInvalidInput, "input_schema", err)
		}
	}

	exec := domain.Execution{
		TenantID:   tenantID,
		ID:         fmt.Sprintf("%s:%s:%s", tenantID, definitionID, newShortID()),
		State:      domain.ExecutionSubmitted,
		Input:      input,
		Definition: def,
	}
	if err := s.executions.Put(ctx, exec); err != nil {
		return SubmitReceipt{}, newError(ErrorStorage, "execution_put", err)
	}

	event := domain.Event{
		TenantID: exec.TenantID,
		ID:       exec.ID,
		State:    exec.State,
		Input:    input,
	}
	if err := s.dispatcher.Dispatch(ctx, event, nil); err != nil {
		return SubmitReceipt{}, newError(ErrorDispatch, "submit_dispatch", err)
	}

	s.logger.Info("submitted execution", "tenantId", tenantID, "id", exec.ID)
	return SubmitReceipt{TenantID: exec.TenantID, ID: exec.ID, State: exec.State}, nil
}

// ListExecutions returns the tenant's executions projected to their key and
// progress attributes.
func (s *Service) ListExecutions(ctx context.Context, tenantID string) ([]domain.Execution, error) {
	execs, err := s.executions.List(ctx, tenantID, "tenantId", "id", "state", "step")
	if err != nil {
		return nil, newError(ErrorStorage, "execution_list", err)
	}
	return execs, nil
}

// GetExecution returns a single execution record, the caller's only view of
// an execution's progress.
func (s *Service) GetExecution(ctx context.Context, tenantID, id string) (domain.Execution, error) {
	exec, err := s.executions.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Execution{}, newError(ErrorNotFound, "execution_not_found", err)
		}
		return domain.Execution{}, newError(ErrorStorage, "execution_get", err)
	}
	return exec, nil
}

// newShortID is injectable for deterministic tests.
var newShortID = func() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}
