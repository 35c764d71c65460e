package domain

// StepType identifies the behavior of a step.
type StepType string

const (
	StepTypeEcho StepType = "echo"
	StepTypeWait StepType = "wait"
)

// Step is a single unit of work within a definition. A step marks
// termination with End or names its successor with Next.
type Step struct {
	ID      string   `json:"id" yaml:"id" dynamodbav:"id"`
	Type    StepType `json:"type" yaml:"type" dynamodbav:"type"`
	Next    string   `json:"next,omitempty" yaml:"next,omitempty" dynamodbav:"next,omitempty"`
	End     bool     `json:"end,omitempty" yaml:"end,omitempty" dynamodbav:"end,omitempty"`
	Seconds int      `json:"seconds,omitempty" yaml:"seconds,omitempty" dynamodbav:"seconds,omitempty"`
	Message string   `json:"message,omitempty" yaml:"message,omitempty" dynamodbav:"message,omitempty"`
}

// Definition is a tenant-scoped template of ordered steps plus the JSON
// Schema submitted inputs must satisfy.
type Definition struct {
	TenantID    string         `json:"tenantId,omitempty" yaml:"tenantId,omitempty" dynamodbav:"tenantId"`
	ID          string         `json:"id" yaml:"id" dynamodbav:"id"`
	InputSchema map[string]any `json:"inputSchema,omitempty" yaml:"inputSchema,omitempty" dynamodbav:"inputSchema,omitempty"`
	Steps       []Step         `json:"steps" yaml:"steps" dynamodbav:"steps"`
}

// FindStep returns the step with the given id, or the first step when id is
// empty. ok is false when no step matches.
func (d Definition) FindStep(id string) (Step, bool) {
	if len(d.Steps) == 0 {
		return Step{}, false
	}
	if id == "" {
		return d.Steps[0], true
	}
	for _, s := range d.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}
