// Package queue dispatches follow-up events onto the processing queue.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"sedo/internal/domain"
)

const (
	// Delay bounds imposed by the transport. Longer waits resolve through
	// repeated short re-dispatches driven by the absolute wait deadline.
	minDelaySeconds = 0
	maxDelaySeconds = 300
)

// sqsAPI is the minimal SQS interface required by Dispatcher.
// *sqs.Client from aws-sdk-go-v2 satisfies this interface.
type sqsAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Dispatcher sends events to the processing queue, optionally delayed. The
// queue URL is resolved from the queue name once and cached.
type Dispatcher struct {
	api       sqsAPI
	queueName string

	mu       sync.Mutex
	queueURL string
}

// New creates a Dispatcher for the named queue.
func New(api sqsAPI, queueName string) (*Dispatcher, error) {
	if api == nil {
		return nil, errors.New("queue: api must not be nil")
	}
	if strings.TrimSpace(queueName) == "" {
		return nil, errors.New("queue: queue name must not be empty")
	}
	return &Dispatcher{api: api, queueName: queueName}, nil
}

// Dispatch enqueues an event for a later engine invocation. A nil delay
// means immediate re-delivery; otherwise the delay is clamped to the
// transport's [0, 300] second window.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.Event, delaySeconds *int) error {
	url, err := d.resolveQueueURL(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: marshal event: %w", err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	}
	if delaySeconds != nil {
		in.DelaySeconds = clampDelay(*delaySeconds)
	}

	if _, err := d.api.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("queue: send message: %w", err)
	}
	return nil
}

func (d *Dispatcher) resolveQueueURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queueURL != "" {
		return d.queueURL, nil
	}

	out, err := d.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(d.queueName),
	})
	if err != nil {
		return "", fmt.Errorf("queue: resolve url for %q: %w", d.queueName, err)
	}
	if out == nil || out.QueueUrl == nil || *out.QueueUrl == "" {
		return "", fmt.Errorf("queue: empty url for %q", d.queueName)
	}
	d.queueURL = *out.QueueUrl
	return d.queueURL, nil
}

func clampDelay(seconds int) int32 {
	if seconds < minDelaySeconds {
		return minDelaySeconds
	}
	if seconds > maxDelaySeconds {
		return maxDelaySeconds
	}
	return int32(seconds)
}
