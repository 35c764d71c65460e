package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"sedo/internal/domain"
	"sedo/internal/repository"
)

// EventValidator checks a raw inbound event against the event contract.
type EventValidator interface {
	ValidateEvent(raw []byte) error
}

// ExecutionReader loads and patches execution records. Update applies
// merge-patch semantics and, when expectStates is given, a compare-and-swap
// precondition surfacing repository.ErrStaleState on mismatch.
type ExecutionReader interface {
	Get(ctx context.Context, tenantID, id string) (domain.Execution, error)
	Update(ctx context.Context, tenantID, id string, fields map[string]any, expectStates ...domain.State) (domain.Execution, error)
}

// EventDispatcher enqueues a follow-up event, optionally delayed.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event domain.Event, delaySeconds *int) error
}

// Engine drives one execution state transition per invocation. Each
// non-terminal invocation ends by dispatching the resulting event, so an
// execution progresses as a chain of independent invocations correlated
// only through the persisted record and the event payload.
type Engine struct {
	validator  EventValidator
	store      ExecutionReader
	dispatcher EventDispatcher
	logger     *slog.Logger

	// now is injectable so wait-deadline tests control the clock.
	now func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(v EventValidator, store ExecutionReader, d EventDispatcher, logger *slog.Logger) (*Engine, error) {
	if v == nil {
		return nil, errors.New("usecase: event validator must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: execution store must not be nil")
	}
	if d == nil {
		return nil, errors.New("usecase: dispatcher must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		validator:  v,
		store:      store,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// ProcessRaw validates and decodes one inbound event body, then processes
// it. This is the single entry point for both the batch runner and the
// synthetic invocation path.
func (e *Engine) ProcessRaw(ctx context.Context, body []byte) (domain.Event, error) {
	if err := e.validator.ValidateEvent(body); err != nil {
		return domain.Event{}, newError(ErrorValidation, "event_contract", err)
	}
	var ev domain.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return domain.Event{}, newError(ErrorValidation, "event_decode", err)
	}
	return e.Process(ctx, ev)
}

// Process runs one engine invocation: load the record, apply the state
// machine, persist the result, and re-dispatch unless terminal.
func (e *Engine) Process(ctx context.Context, ev domain.Event) (domain.Event, error) {
	exec, err := e.store.Get(ctx, ev.TenantID, ev.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Event{}, newError(ErrorNotFound, "execution_not_found", err)
		}
		return domain.Event{}, newError(ErrorStorage, "execution_get", err)
	}

	fields := map[string]any{}
	var delaySeconds *int

	switch ev.State {
	case domain.ExecutionSubmitted:
		ev.State = domain.ExecutionStarted

	case domain.ExecutionStarted, domain.StepStarted, domain.StepSucceeded:
		outcome, err := e.runStep(ctx, &ev, exec)
		if err != nil {
			return domain.Event{}, err
		}
		if outcome.stale {
			e.logger.Info("execution already advanced, dropping event",
				"tenantId", ev.TenantID, "id", ev.ID, "state", ev.State)
			return ev, nil
		}
		delaySeconds = outcome.delaySeconds
		if outcome.waitEntered {
			fields["wait_timestamp"] = ev.WaitTimestamp
		}
		if outcome.waitCleared {
			fields["wait_timestamp"] = ""
		}
	}

	fields["state"] = string(ev.State)
	if ev.Step != "" {
		fields["step"] = ev.Step
	}

	if _, err := e.store.Update(ctx, ev.TenantID, ev.ID, fields, domain.NonTerminalStates()...); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			e.logger.Info("execution already terminal, dropping event",
				"tenantId", ev.TenantID, "id", ev.ID, "state", ev.State)
			return ev, nil
		}
		return domain.Event{}, newError(ErrorStorage, "execution_update", err)
	}

	if !ev.State.Terminal() {
		if err := e.dispatcher.Dispatch(ctx, ev, delaySeconds); err != nil {
			return domain.Event{}, newError(ErrorDispatch, "event_dispatch", err)
		}
	}

	e.logger.Info("processed event",
		"tenantId", ev.TenantID, "id", ev.ID, "state", ev.State, "step", ev.Step)
	return ev, nil
}
