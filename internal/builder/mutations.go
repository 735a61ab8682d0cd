package builder

import (
	"context"

	"github.com/langdag/dagbuilder/internal/workflow"
	"github.com/langdag/dagbuilder/pkg/types"
)

// NodeResult is returned by add-node and update-node.
type NodeResult struct {
	Session *types.Session `json:"-" yaml:"-"`
	Node    types.Node     `json:"node" yaml:"node"`
	Diff    types.NodeDiff `json:"diff" yaml:"diff"`
}

// RemoveResult is returned by remove-node. CleanedDeps lists the nodes whose
// dependsOn lost the removed id.
type RemoveResult struct {
	Session     *types.Session `json:"-" yaml:"-"`
	Removed     types.Node     `json:"removed" yaml:"removed"`
	Diff        types.NodeDiff `json:"diff" yaml:"diff"`
	CleanedDeps []string       `json:"cleanedDeps" yaml:"cleanedDeps"`
}

// ConnectionResult is returned by connect and disconnect.
type ConnectionResult struct {
	Session *types.Session       `json:"-" yaml:"-"`
	Diff    types.ConnectionDiff `json:"diff" yaml:"diff"`
}

// mutate loads an open session, applies fn to it and saves the result.
// Any successful mutation drops the session back to DRAFT.
func (b *Builder) mutate(ctx context.Context, sessionID string, fn func(s *types.Session) (types.Diff, error)) (*types.Session, error) {
	session, err := b.resolveOpen(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	diff, err := fn(session)
	if err != nil {
		return nil, err
	}

	if session.State == types.StateValidated {
		b.logger.Debug("draft changed, validation reset", "session", session.ID)
	}
	session.State = types.StateDraft
	session.Validation = emptyValidation()
	session.UpdatedAt = b.now()

	if err := b.save(ctx, session); err != nil {
		return nil, err
	}

	b.logger.Debug("applied mutation", "session", session.ID, "change", types.DescribeDiff(diff))
	return session, nil
}

// AddNode appends node to the draft. The node must already be well-formed,
// see workflow.NodeFromMap.
func (b *Builder) AddNode(ctx context.Context, sessionID string, node types.Node) (*NodeResult, error) {
	if err := workflow.CheckStruct(node); err != nil {
		return nil, errInvalidInput(err)
	}
	node = node.Clone()

	result := &NodeResult{Node: node}
	session, err := b.mutate(ctx, sessionID, func(s *types.Session) (types.Diff, error) {
		if s.WorkflowDraft.NodeIndex(node.ID) >= 0 {
			return nil, newError(CodeDuplicateNodeID, "node %s already exists", node.ID).
				withDetails(map[string]any{"nodeId": node.ID}).
				withHint("use update-node to change an existing node")
		}
		if node.DependsOnID(node.ID) {
			return nil, errSelfReference(node.ID)
		}

		s.WorkflowDraft.Nodes = append(s.WorkflowDraft.Nodes, node)
		after := node.Clone()
		result.Diff = types.NodeDiff{Action: types.DiffAdd, NodeID: node.ID, After: &after}
		return result.Diff, nil
	})
	if err != nil {
		return nil, err
	}
	result.Session = session
	return result, nil
}

// UpdateNode replaces the fields set in patch on the node with the given id.
func (b *Builder) UpdateNode(ctx context.Context, sessionID, nodeID string, patch workflow.NodePatch) (*NodeResult, error) {
	result := &NodeResult{}
	session, err := b.mutate(ctx, sessionID, func(s *types.Session) (types.Diff, error) {
		i := s.WorkflowDraft.NodeIndex(nodeID)
		if i < 0 {
			return nil, errNodeNotFound(nodeID)
		}

		before := s.WorkflowDraft.Nodes[i].Clone()
		updated := patch.Apply(before)
		if err := workflow.CheckStruct(updated); err != nil {
			return nil, errInvalidInput(err)
		}
		if updated.DependsOnID(nodeID) {
			return nil, errSelfReference(nodeID)
		}

		s.WorkflowDraft.Nodes[i] = updated
		after := updated.Clone()
		result.Node = updated
		result.Diff = types.NodeDiff{Action: types.DiffUpdate, NodeID: nodeID, Before: &before, After: &after}
		return result.Diff, nil
	})
	if err != nil {
		return nil, err
	}
	result.Session = session
	return result, nil
}

// RemoveNode deletes the node and strips its id from every other node's
// dependencies.
func (b *Builder) RemoveNode(ctx context.Context, sessionID, nodeID string) (*RemoveResult, error) {
	result := &RemoveResult{CleanedDeps: []string{}}
	session, err := b.mutate(ctx, sessionID, func(s *types.Session) (types.Diff, error) {
		i := s.WorkflowDraft.NodeIndex(nodeID)
		if i < 0 {
			return nil, errNodeNotFound(nodeID)
		}

		removed := s.WorkflowDraft.Nodes[i]
		nodes := make([]types.Node, 0, len(s.WorkflowDraft.Nodes)-1)
		nodes = append(nodes, s.WorkflowDraft.Nodes[:i]...)
		nodes = append(nodes, s.WorkflowDraft.Nodes[i+1:]...)

		for j := range nodes {
			if !nodes[j].DependsOnID(nodeID) {
				continue
			}
			nodes[j].DependsOn = without(nodes[j].DependsOn, nodeID)
			result.CleanedDeps = append(result.CleanedDeps, nodes[j].ID)
		}
		s.WorkflowDraft.Nodes = nodes

		before := removed.Clone()
		result.Removed = removed
		result.Diff = types.NodeDiff{Action: types.DiffRemove, NodeID: nodeID, Before: &before}
		return result.Diff, nil
	})
	if err != nil {
		return nil, err
	}
	result.Session = session
	return result, nil
}

// Connect makes to depend on from. The prerequisite does not have to exist
// yet; dangling references are reported by validation.
func (b *Builder) Connect(ctx context.Context, sessionID, from, to string) (*ConnectionResult, error) {
	if err := checkEdge(from, to); err != nil {
		return nil, err
	}

	result := &ConnectionResult{}
	session, err := b.mutate(ctx, sessionID, func(s *types.Session) (types.Diff, error) {
		i := s.WorkflowDraft.NodeIndex(to)
		if i < 0 {
			return nil, errNodeNotFound(to)
		}
		if from == to {
			return nil, errSelfReference(to)
		}
		node := &s.WorkflowDraft.Nodes[i]
		if node.DependsOnID(from) {
			return nil, newError(CodeDuplicateEdge, "%s already depends on %s", to, from).
				withDetails(map[string]any{"from": from, "to": to})
		}

		node.DependsOn = append(node.DependsOn, from)
		result.Diff = types.ConnectionDiff{Action: types.DiffConnect, From: from, To: to}
		return result.Diff, nil
	})
	if err != nil {
		return nil, err
	}
	result.Session = session
	return result, nil
}

// Disconnect removes the dependency of to on from.
func (b *Builder) Disconnect(ctx context.Context, sessionID, from, to string) (*ConnectionResult, error) {
	if err := checkEdge(from, to); err != nil {
		return nil, err
	}

	result := &ConnectionResult{}
	session, err := b.mutate(ctx, sessionID, func(s *types.Session) (types.Diff, error) {
		i := s.WorkflowDraft.NodeIndex(to)
		if i < 0 {
			return nil, errNodeNotFound(to)
		}
		node := &s.WorkflowDraft.Nodes[i]
		if !node.DependsOnID(from) {
			return nil, newError(CodeEdgeNotFound, "%s does not depend on %s", to, from).
				withDetails(map[string]any{"from": from, "to": to})
		}

		node.DependsOn = without(node.DependsOn, from)
		result.Diff = types.ConnectionDiff{Action: types.DiffDisconnect, From: from, To: to}
		return result.Diff, nil
	})
	if err != nil {
		return nil, err
	}
	result.Session = session
	return result, nil
}

func checkEdge(from, to string) error {
	ie := &workflow.InputError{}
	if from == "" {
		ie.Problems = append(ie.Problems, workflow.Problem{Field: "from", Message: "is required"})
	}
	if to == "" {
		ie.Problems = append(ie.Problems, workflow.Problem{Field: "to", Message: "is required"})
	}
	if len(ie.Problems) > 0 {
		return errInvalidInput(ie)
	}
	return nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
