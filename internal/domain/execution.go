package domain

// Execution is one run of a definition, keyed by (tenantId, id). The
// definition is snapshotted at submission time so later edits cannot change
// in-flight behavior.
type Execution struct {
	TenantID      string         `json:"tenantId" dynamodbav:"tenantId"`
	ID            string         `json:"id" dynamodbav:"id"`
	State         State          `json:"state" dynamodbav:"state"`
	Step          string         `json:"step,omitempty" dynamodbav:"step,omitempty"`
	WaitTimestamp string         `json:"wait_timestamp,omitempty" dynamodbav:"wait_timestamp,omitempty"`
	Input         map[string]any `json:"input,omitempty" dynamodbav:"input,omitempty"`
	Definition    Definition     `json:"definition" dynamodbav:"definition"`
	Output        map[string]any `json:"output,omitempty" dynamodbav:"output,omitempty"`
}

// Event is the transient message that both instructs and results from one
// engine invocation. It is the mutable subset of the execution record plus
// the scratch stash, and is re-dispatched verbatim for the next invocation.
type Event struct {
	TenantID      string         `json:"tenantId"`
	ID            string         `json:"id"`
	State         State          `json:"state"`
	Step          string         `json:"step,omitempty"`
	WaitTimestamp string         `json:"wait_timestamp,omitempty"`
	Input         map[string]any `json:"input,omitempty"`
	Stash         map[string]any `json:"stash,omitempty"`
}
