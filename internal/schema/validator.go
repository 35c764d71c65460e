// Package schema validates documents against the orchestrator's wire
// contracts. Contracts are compiled once at construction; caller-supplied
// input schemas are compiled per call.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// eventContract is the structural contract every inbound event must satisfy
// before the engine will touch it. Business invariants (step reachability,
// record existence) are deliberately not expressed here.
const eventContract = `{
  "type": "object",
  "properties": {
    "tenantId": {"type": "string", "pattern": "^[a-z0-9-]+$"},
    "id": {"type": "string", "pattern": "^[a-z0-9:-]+$"},
    "state": {
      "type": "string",
      "enum": [
        "ExecutionSubmitted",
        "ExecutionStarted",
        "StepStarted",
        "StepFailed",
        "StepSucceeded",
        "ExecutionSucceeded",
        "ExecutionFailed"
      ]
    },
    "input": {"type": "object"},
    "step": {"type": "string", "pattern": "^[a-z-]+$"},
    "wait_timestamp": {"type": "string"},
    "stash": {"type": "object"}
  },
  "required": ["tenantId", "id", "state"],
  "additionalProperties": false
}`

// definitionContract governs definition documents at creation time. Every
// step must either name a successor or mark the end, so dead-end chains are
// rejected before an execution can park on one.
const definitionContract = `{
  "type": "object",
  "properties": {
    "id": {"type": "string", "pattern": "^[a-z0-9-]+$"},
    "inputSchema": {"type": "object"},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string", "pattern": "^[a-z-]+$"},
          "type": {"type": "string", "enum": ["echo", "wait"]},
          "next": {"type": "string", "pattern": "^[a-z-]+$"},
          "end": {"type": "boolean"},
          "seconds": {"type": "integer", "minimum": 10},
          "message": {"type": "string"}
        },
        "required": ["id", "type"],
        "anyOf": [
          {"required": ["next"]},
          {"required": ["end"]}
        ],
        "additionalProperties": false
      }
    }
  },
  "required": ["id", "steps"],
  "additionalProperties": false
}`

// Validator holds the compiled wire contracts.
type Validator struct {
	event      *jsonschema.Schema
	definition *jsonschema.Schema
}

// New compiles the event and definition contracts.
func New() (*Validator, error) {
	event, err := compile("event.json", []byte(eventContract))
	if err != nil {
		return nil, fmt.Errorf("schema: compile event contract: %w", err)
	}
	definition, err := compile("definition.json", []byte(definitionContract))
	if err != nil {
		return nil, fmt.Errorf("schema: compile definition contract: %w", err)
	}
	return &Validator{event: event, definition: definition}, nil
}

// ValidateEvent checks a raw inbound event against the event contract.
func (v *Validator) ValidateEvent(raw []byte) error {
	return validateRaw(v.event, raw)
}

// ValidateDefinition checks a raw definition document against the
// definition contract.
func (v *Validator) ValidateDefinition(raw []byte) error {
	return validateRaw(v.definition, raw)
}

// ValidateInput compiles the caller-supplied input schema and validates the
// submitted input document against it.
func (v *Validator) ValidateInput(inputSchema map[string]any, input map[string]any) error {
	raw, err := json.Marshal(inputSchema)
	if err != nil {
		return fmt.Errorf("schema: marshal input schema: %w", err)
	}
	compiled, err := compile("input.json", raw)
	if err != nil {
		return fmt.Errorf("schema: compile input schema: %w", err)
	}
	if err := compiled.Validate(toAny(input)); err != nil {
		return fmt.Errorf("schema: input: %w", err)
	}
	return nil
}

func compile(name string, raw []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

func validateRaw(s *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("schema: invalid JSON: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// toAny round-trips a typed map through JSON so jsonschema sees the plain
// decoded representation (float64 numbers, []any slices).
func toAny(m map[string]any) any {
	raw, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return m
	}
	return doc
}
