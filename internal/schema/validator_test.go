package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func TestValidateEvent(t *testing.T) {
	v := mustValidator(t)

	cases := []struct {
		name    string
		event   string
		wantErr bool
	}{
		{
			name:  "minimal valid",
			event: `{"tenantId":"acme","id":"acme:d:1","state":"ExecutionSubmitted"}`,
		},
		{
			name:  "full valid",
			event: `{"tenantId":"acme","id":"acme:d:1","state":"StepStarted","step":"wait-some-time","wait_timestamp":"2024-03-01T12:00:10Z","input":{"foo":"bar"},"stash":{}}`,
		},
		{
			name:    "missing state",
			event:   `{"tenantId":"acme","id":"acme:d:1"}`,
			wantErr: true,
		},
		{
			name:    "state outside enum",
			event:   `{"tenantId":"acme","id":"acme:d:1","state":"ExecutionPaused"}`,
			wantErr: true,
		},
		{
			name:    "tenant id pattern",
			event:   `{"tenantId":"ACME!","id":"acme:d:1","state":"ExecutionSubmitted"}`,
			wantErr: true,
		},
		{
			name:    "step id pattern",
			event:   `{"tenantId":"acme","id":"acme:d:1","state":"StepStarted","step":"Step1"}`,
			wantErr: true,
		},
		{
			name:    "unknown field",
			event:   `{"tenantId":"acme","id":"acme:d:1","state":"ExecutionSubmitted","definition":{}}`,
			wantErr: true,
		},
		{
			name:    "not JSON",
			event:   `not-json`,
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateEvent([]byte(tc.event))
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateDefinition(t *testing.T) {
	v := mustValidator(t)

	cases := []struct {
		name    string
		def     string
		wantErr bool
	}{
		{
			name: "valid wait then echo",
			def:  `{"id":"wait-then-echo","inputSchema":{"type":"object"},"steps":[{"id":"wait-some-time","type":"wait","seconds":10,"next":"last-echo"},{"id":"last-echo","type":"echo","message":"done","end":true}]}`,
		},
		{
			name:    "seconds below minimum",
			def:     `{"id":"d","steps":[{"id":"w","type":"wait","seconds":5,"end":true}]}`,
			wantErr: true,
		},
		{
			name:    "unknown step type",
			def:     `{"id":"d","steps":[{"id":"s","type":"shell","end":true}]}`,
			wantErr: true,
		},
		{
			name:    "dead-end step without next or end",
			def:     `{"id":"d","steps":[{"id":"s","type":"echo"}]}`,
			wantErr: true,
		},
		{
			name:    "no steps",
			def:     `{"id":"d","steps":[]}`,
			wantErr: true,
		},
		{
			name:    "missing id",
			def:     `{"steps":[{"id":"s","type":"echo","end":true}]}`,
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateDefinition([]byte(tc.def))
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateInput(t *testing.T) {
	v := mustValidator(t)
	inputSchema := map[string]any{
		"type":     "object",
		"required": []any{"foo"},
		"properties": map[string]any{
			"foo": map[string]any{"type": "string"},
		},
	}

	require.NoError(t, v.ValidateInput(inputSchema, map[string]any{"foo": "bar"}))
	require.Error(t, v.ValidateInput(inputSchema, map[string]any{}))
	require.Error(t, v.ValidateInput(inputSchema, map[string]any{"foo": 7}))
}

func TestValidateInput_BadSchema(t *testing.T) {
	v := mustValidator(t)
	err := v.ValidateInput(map[string]any{"type": 12}, map[string]any{})
	require.Error(t, err)
}
