package workflow

import (
	"fmt"
	"strings"

	"github.com/langdag/dagbuilder/pkg/types"
)

// Validation issue codes.
const (
	CodeMissingName       = "MISSING_NAME"
	CodeEmptyWorkflow     = "EMPTY_WORKFLOW"
	CodeDuplicateNodeID   = "DUPLICATE_NODE_ID"
	CodeMissingNodeID     = "MISSING_NODE_ID"
	CodeMissingNodeType   = "MISSING_NODE_TYPE"
	CodeMissingDependency = "MISSING_DEPENDENCY"
	CodeSelfReference     = "SELF_REFERENCE"
	CodeCycleDetected     = "CYCLE_DETECTED"
)

// ValidateDraft runs every structural check over the draft and reports all
// failures at once. It never fails; callers must inspect OK.
//
// Checks run in a fixed order: name, non-empty graph, id uniqueness,
// required fields, dependency existence, self-reference, cycles.
func ValidateDraft(draft types.Draft) types.ValidationResult {
	result := types.ValidationResult{OK: true, Errors: []types.ValidationIssue{}}

	if strings.TrimSpace(draft.Name) == "" {
		addIssue(&result, types.ValidationIssue{
			Code:    CodeMissingName,
			Message: "workflow name is required",
		})
	}

	if len(draft.Nodes) == 0 {
		addIssue(&result, types.ValidationIssue{
			Code:    CodeEmptyWorkflow,
			Message: "workflow must contain at least one node",
		})
	}

	ids := make(map[string]bool, len(draft.Nodes))
	for i, node := range draft.Nodes {
		if node.ID == "" {
			continue
		}
		if ids[node.ID] {
			addIssue(&result, types.ValidationIssue{
				Code:    CodeDuplicateNodeID,
				Message: fmt.Sprintf("duplicate node id: %s", node.ID),
				NodeID:  node.ID,
				Details: map[string]any{"index": i},
			})
		}
		ids[node.ID] = true
	}

	for i, node := range draft.Nodes {
		if node.ID == "" {
			addIssue(&result, types.ValidationIssue{
				Code:    CodeMissingNodeID,
				Message: fmt.Sprintf("node at index %d has no id", i),
				Details: map[string]any{"index": i},
			})
		}
		if node.Type == "" {
			msg := fmt.Sprintf("node at index %d has no type", i)
			if node.ID != "" {
				msg = fmt.Sprintf("node %s has no type", node.ID)
			}
			addIssue(&result, types.ValidationIssue{
				Code:    CodeMissingNodeType,
				Message: msg,
				NodeID:  node.ID,
				Details: map[string]any{"index": i},
			})
		}
	}

	for _, node := range draft.Nodes {
		for _, dep := range node.DependsOn {
			if ids[dep] {
				continue
			}
			addIssue(&result, types.ValidationIssue{
				Code:    CodeMissingDependency,
				Message: fmt.Sprintf("node %s depends on unknown node %q", node.ID, dep),
				NodeID:  node.ID,
				Details: map[string]any{"missingDep": dep},
			})
		}
	}

	for _, node := range draft.Nodes {
		if node.ID != "" && node.DependsOnID(node.ID) {
			addIssue(&result, types.ValidationIssue{
				Code:    CodeSelfReference,
				Message: fmt.Sprintf("node %s depends on itself", node.ID),
				NodeID:  node.ID,
			})
		}
	}

	if cycle := DetectCycle(draft.Nodes); cycle != nil {
		addIssue(&result, types.ValidationIssue{
			Code:    CodeCycleDetected,
			Message: fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> ")),
			NodeID:  cycle[0],
			Details: map[string]any{"cycle": cycle},
		})
	}

	return result
}

// addIssue records an issue and marks the result as failed.
func addIssue(r *types.ValidationResult, issue types.ValidationIssue) {
	r.OK = false
	r.Errors = append(r.Errors, issue)
}

// DetectCycle returns the first dependency cycle found, as a path that starts
// and ends with the same node id, or nil when the graph is acyclic.
//
// Roots are tried in declaration order. Self-references and dependencies on
// unknown ids are ignored here; ValidateDraft reports them separately. When
// ids are duplicated the first occurrence defines the dependencies.
func DetectCycle(nodes []types.Node) []string {
	deps := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		if node.ID == "" {
			continue
		}
		if _, seen := deps[node.ID]; !seen {
			deps[node.ID] = nil
		}
	}
	declared := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		if node.ID == "" || declared[node.ID] {
			continue
		}
		declared[node.ID] = true
		for _, dep := range node.DependsOn {
			if dep == node.ID {
				continue
			}
			if _, ok := deps[dep]; !ok {
				continue
			}
			deps[node.ID] = append(deps[node.ID], dep)
		}
	}

	f := cycleFinder{
		deps:    deps,
		visited: make(map[string]bool, len(deps)),
		onStack: make(map[string]bool),
	}
	for _, node := range nodes {
		if node.ID == "" {
			continue
		}
		if cycle := f.visit(node.ID); cycle != nil {
			return cycle
		}
	}
	return nil
}

// cycleFinder holds the traversal state of one DetectCycle call.
type cycleFinder struct {
	deps    map[string][]string
	visited map[string]bool
	onStack map[string]bool
	path    []string
}

func (f *cycleFinder) visit(id string) []string {
	if f.onStack[id] {
		start := 0
		for i, p := range f.path {
			if p == id {
				start = i
				break
			}
		}
		cycle := append([]string{}, f.path[start:]...)
		return append(cycle, id)
	}
	if f.visited[id] {
		// Fully explored from an earlier root; anything reachable from
		// here would already have produced a cycle.
		return nil
	}

	f.visited[id] = true
	f.onStack[id] = true
	f.path = append(f.path, id)

	for _, dep := range f.deps[id] {
		if cycle := f.visit(dep); cycle != nil {
			return cycle
		}
	}

	f.onStack[id] = false
	f.path = f.path[:len(f.path)-1]
	return nil
}

// FormatErrors formats validation issues as a string.
func FormatErrors(r types.ValidationResult) string {
	if r.OK {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Validation errors:\n")
	for _, issue := range r.Errors {
		if issue.NodeID != "" {
			sb.WriteString(fmt.Sprintf("  - %s [%s]: %s\n", issue.Code, issue.NodeID, issue.Message))
		} else {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Code, issue.Message))
		}
	}
	return sb.String()
}
