package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sedo/internal/domain"
)

type stubProcessor struct {
	bodies [][]byte
}

// ProcessRaw fails any body containing "bad" and echoes the body back as
// the event id otherwise.
func (s *stubProcessor) ProcessRaw(_ context.Context, body []byte) (domain.Event, error) {
	s.bodies = append(s.bodies, body)
	if strings.Contains(string(body), "bad") {
		return domain.Event{}, errors.New("boom")
	}
	return domain.Event{ID: string(body), State: domain.ExecutionStarted}, nil
}

func TestNewRunner_ValidatesDependency(t *testing.T) {
	_, err := NewRunner(nil, nil)
	require.Error(t, err)
}

func TestRun_ResultsInInputOrder(t *testing.T) {
	p := &stubProcessor{}
	r, err := NewRunner(p, testLogger())
	require.NoError(t, err)

	results := r.Run(context.Background(), [][]byte{[]byte("one"), []byte("two")})
	require.Len(t, results, 2)
	require.Equal(t, "one", results[0].Event.ID)
	require.Equal(t, "two", results[1].Event.ID)
}

func TestRun_FailureIsolatedToItsMessage(t *testing.T) {
	p := &stubProcessor{}
	r, err := NewRunner(p, testLogger())
	require.NoError(t, err)

	results := r.Run(context.Background(), [][]byte{[]byte("one"), []byte("bad"), []byte("three")})
	require.Len(t, results, 3)

	require.NotNil(t, results[0].Event)
	require.Empty(t, results[0].Error)

	require.Nil(t, results[1].Event)
	require.Contains(t, results[1].Error, "exception processing event")
	require.Contains(t, results[1].Error, "boom")

	// The failing message never aborted its sibling.
	require.NotNil(t, results[2].Event)
	require.Equal(t, "three", results[2].Event.ID)
	require.Len(t, p.bodies, 3)
}

func TestRun_EmptyBatch(t *testing.T) {
	r, err := NewRunner(&stubProcessor{}, testLogger())
	require.NoError(t, err)
	require.Empty(t, r.Run(context.Background(), nil))
}
