package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sedo/internal/domain"
)

// EventProcessor is the single-event invocation contract the runner fans
// out over.
type EventProcessor interface {
	ProcessRaw(ctx context.Context, body []byte) (domain.Event, error)
}

// Result is the per-message outcome of one batch entry: the resulting
// event, or the stringified error.
type Result struct {
	Event *domain.Event `json:"event,omitempty"`
	Error string        `json:"error,omitempty"`
}

// Runner processes a batch of raw message bodies through the engine,
// isolating per-message failures. Retry is the transport's responsibility;
// the runner never retries.
type Runner struct {
	processor EventProcessor
	logger    *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(p EventProcessor, logger *slog.Logger) (*Runner, error) {
	if p == nil {
		return nil, errors.New("usecase: event processor must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{processor: p, logger: logger}, nil
}

// Run processes each body independently and returns one Result per body,
// in input order. A failing message never aborts its siblings.
func (r *Runner) Run(ctx context.Context, bodies [][]byte) []Result {
	results := make([]Result, 0, len(bodies))
	for _, body := range bodies {
		ev, err := r.processor.ProcessRaw(ctx, body)
		if err != nil {
			r.logger.Error("event processing failed", "err", err, "body", string(body))
			results = append(results, Result{
				Error: fmt.Sprintf("exception processing event %s: %v", string(body), err),
			})
			continue
		}
		results = append(results, Result{Event: &ev})
	}
	return results
}
