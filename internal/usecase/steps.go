package usecase

import (
	"context"
	"errors"
	"time"

	"sedo/internal/domain"
	"sedo/internal/repository"
)

const (
	// waitTimestampLayout is the wire format of wait deadlines, UTC.
	waitTimestampLayout = "2006-01-02T15:04:05Z"
	defaultWaitSeconds  = 10
	defaultEchoMessage  = "some message"
)

// stepOutcome reports what one step execution asked of the invocation.
type stepOutcome struct {
	delaySeconds *int
	waitEntered  bool
	waitCleared  bool
	stale        bool
}

// runStep marks the execution in progress, resolves the current step from
// the embedded definition snapshot, and executes its type-specific logic,
// mutating the event in place.
func (e *Engine) runStep(ctx context.Context, ev *domain.Event, exec domain.Execution) (stepOutcome, error) {
	ev.State = domain.StepStarted

	// Persist the in-progress marker so a concurrent observer sees it.
	// A stale precondition means another invocation already moved the
	// record past us.
	if exec.State != domain.StepStarted {
		_, err := e.store.Update(ctx, ev.TenantID, ev.ID,
			map[string]any{"state": string(domain.StepStarted)},
			domain.NonTerminalStates()...)
		if errors.Is(err, repository.ErrStaleState) {
			return stepOutcome{stale: true}, nil
		}
		if err != nil {
			return stepOutcome{}, newError(ErrorStorage, "step_started_update", err)
		}
	}

	step, ok := exec.Definition.FindStep(ev.Step)
	if !ok {
		return stepOutcome{}, newError(ErrorStepResolution, "unknown_step", nil)
	}
	ev.Step = step.ID

	var outcome stepOutcome
	switch step.Type {
	case domain.StepTypeEcho:
		e.runEcho(ev, step)
	case domain.StepTypeWait:
		var err error
		outcome, err = e.runWait(ev, step)
		if err != nil {
			return stepOutcome{}, err
		}
	default:
		return stepOutcome{}, newError(ErrorStepResolution, "unknown_step_type", nil)
	}

	if ev.State == domain.StepSucceeded {
		if step.End {
			ev.State = domain.ExecutionSucceeded
		} else if step.Next != "" {
			ev.Step = step.Next
		}
		// A step with neither end nor next leaves the execution parked
		// in StepSucceeded. The definition contract rejects such steps
		// at creation time; legacy rows keep the original behavior.
	}
	return outcome, nil
}

// runEcho emits the step's message as a structured log line, the step's
// observable side effect.
func (e *Engine) runEcho(ev *domain.Event, step domain.Step) {
	message := step.Message
	if message == "" {
		message = defaultEchoMessage
	}
	e.logger.Info("step echo", "tenantId", ev.TenantID, "id", ev.ID,
		"step", step.ID, "message", message)
	ev.State = domain.StepSucceeded
}

// runWait advances a deadline-based pause. The first pass stamps an
// absolute deadline onto the event; later passes recompute the remaining
// seconds so duplicate or delayed redelivery converges instead of
// compounding.
func (e *Engine) runWait(ev *domain.Event, step domain.Step) (stepOutcome, error) {
	if ev.WaitTimestamp == "" {
		seconds := step.Seconds
		if seconds <= 0 {
			seconds = defaultWaitSeconds
		}
		deadline := e.now().UTC().Add(time.Duration(seconds) * time.Second)
		ev.WaitTimestamp = deadline.Format(waitTimestampLayout)
		e.logger.Info("step wait", "tenantId", ev.TenantID, "id", ev.ID,
			"step", step.ID, "seconds", seconds, "until", ev.WaitTimestamp)
		return stepOutcome{delaySeconds: &seconds, waitEntered: true}, nil
	}

	deadline, err := time.Parse(waitTimestampLayout, ev.WaitTimestamp)
	if err != nil {
		return stepOutcome{}, newError(ErrorValidation, "wait_timestamp_parse", err)
	}
	remaining := int(deadline.Sub(e.now().UTC()).Seconds())
	if remaining <= 0 {
		ev.WaitTimestamp = ""
		ev.State = domain.StepSucceeded
		return stepOutcome{waitCleared: true}, nil
	}
	e.logger.Info("step wait", "tenantId", ev.TenantID, "id", ev.ID,
		"step", step.ID, "seconds", remaining, "until", ev.WaitTimestamp)
	return stepOutcome{delaySeconds: &remaining}, nil
}
