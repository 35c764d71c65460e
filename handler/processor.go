// Package handler adapts Lambda invocation events to the usecase layer.
package handler

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"

	"sedo/internal/usecase"
)

// batchRunner is the batch-processing contract consumed by the processor
// handler.
type batchRunner interface {
	Run(ctx context.Context, bodies [][]byte) []usecase.Result
}

// Processor handles SQS-triggered invocations of the execution processor.
type Processor struct {
	runner batchRunner
}

// NewProcessor creates a Processor handler.
func NewProcessor(r batchRunner) (*Processor, error) {
	if r == nil {
		return nil, errors.New("handler: runner must not be nil")
	}
	return &Processor{runner: r}, nil
}

// Handle fans an SQS batch out to the runner and returns the per-message
// results in record order. Errors are carried inside the results; the
// invocation itself never fails, leaving redelivery to the queue's own
// dead-letter policy.
func (p *Processor) Handle(ctx context.Context, event events.SQSEvent) ([]usecase.Result, error) {
	bodies := make([][]byte, 0, len(event.Records))
	for _, record := range event.Records {
		bodies = append(bodies, []byte(record.Body))
	}
	return p.runner.Run(ctx, bodies), nil
}
