// Package types defines shared types used across the dagbuilder codebase.
package types

import (
	"time"
)

// SessionSchemaVersion is the schema version stamped on every session record.
const SessionSchemaVersion = 1

// WorkflowSpecVersion is the version of the spec sent to the workflow service.
const WorkflowSpecVersion = 1

// State represents the lifecycle state of a builder session.
type State string

const (
	StateIdle      State = "IDLE"
	StateDraft     State = "DRAFT"
	StateValidated State = "VALIDATED"
	StateCommitted State = "COMMITTED"
	StateAborted   State = "ABORTED"
)

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateAborted
}

// Node represents a unit of work in a workflow draft.
type Node struct {
	ID        string         `json:"id" yaml:"id" validate:"required"`
	Type      string         `json:"type" yaml:"type" validate:"required"`
	Input     map[string]any `json:"input" yaml:"input"`
	DependsOn []string       `json:"dependsOn" yaml:"dependsOn" validate:"unique,dive,required"`
}

// Clone returns a deep-enough copy of the node: the dependency slice and the
// top level of the input map are copied.
func (n Node) Clone() Node {
	c := Node{ID: n.ID, Type: n.Type}
	c.Input = make(map[string]any, len(n.Input))
	for k, v := range n.Input {
		c.Input[k] = v
	}
	c.DependsOn = append([]string{}, n.DependsOn...)
	return c
}

// DependsOnID reports whether the node lists id as a dependency.
func (n Node) DependsOnID(id string) bool {
	for _, dep := range n.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

// Metadata carries optional descriptive data for a draft.
type Metadata struct {
	Tags  []string `json:"tags,omitempty" yaml:"tags,omitempty" validate:"omitempty,dive,required"`
	Owner string   `json:"owner,omitempty" yaml:"owner,omitempty"`
}

// Draft is the in-progress workflow graph being assembled.
type Draft struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []Node    `json:"nodes" yaml:"nodes"`
	Metadata    *Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NodeIndex returns the position of the first node with the given id, or -1.
func (d *Draft) NodeIndex(id string) int {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// ValidationIssue is a single problem reported by the validator.
type ValidationIssue struct {
	Code    string         `json:"code" yaml:"code"`
	Message string         `json:"message" yaml:"message"`
	NodeID  string         `json:"nodeId,omitempty" yaml:"nodeId,omitempty"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// ValidationResult contains the outcome of a validation run.
type ValidationResult struct {
	OK     bool              `json:"ok" yaml:"ok"`
	Errors []ValidationIssue `json:"errors" yaml:"errors"`
}

// CommitInfo records the outcome of a successful commit.
type CommitInfo struct {
	WorkflowID  string    `json:"workflowId" yaml:"workflowId"`
	CommittedAt time.Time `json:"committedAt" yaml:"committedAt"`
}

// Session is the durable record wrapping one draft through its lifecycle.
//
// Version is the schema version of the record. Revision is bumped by the
// store on every successful save and is compared on the next save.
type Session struct {
	ID            string           `json:"id" yaml:"id"`
	Version       int              `json:"version" yaml:"version"`
	Revision      int64            `json:"revision" yaml:"revision"`
	State         State            `json:"state" yaml:"state"`
	CreatedAt     time.Time        `json:"createdAt" yaml:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt" yaml:"updatedAt"`
	WorkflowDraft Draft            `json:"workflowDraft" yaml:"workflowDraft"`
	Validation    ValidationResult `json:"validation" yaml:"validation"`
	Commit        *CommitInfo      `json:"commit,omitempty" yaml:"commit,omitempty"`
}

// WorkflowSpecNode is a node as sent to the workflow-creation service.
type WorkflowSpecNode struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Input     map[string]any `json:"input"`
	DependsOn []string       `json:"dependsOn"`
}

// WorkflowSpec is the graph portion of a workflow-creation request.
type WorkflowSpec struct {
	Version  int                `json:"version"`
	Nodes    []WorkflowSpecNode `json:"nodes"`
	Metadata *Metadata          `json:"metadata,omitempty"`
}

// CreateWorkflowRequest is the request sent to the workflow-creation service.
type CreateWorkflowRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Spec        WorkflowSpec `json:"spec"`
}

// CreateWorkflowResponse is returned by the workflow-creation service.
type CreateWorkflowResponse struct {
	WorkflowID string    `json:"workflowId"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
}
