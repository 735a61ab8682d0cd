package types

import (
	"encoding/json"
	"fmt"
)

// DiffAction names the change a diff describes.
type DiffAction string

const (
	DiffAdd        DiffAction = "add"
	DiffUpdate     DiffAction = "update"
	DiffRemove     DiffAction = "remove"
	DiffConnect    DiffAction = "connect"
	DiffDisconnect DiffAction = "disconnect"
)

// Diff describes the single change produced by one mutation.
// The only implementations are NodeDiff and ConnectionDiff.
type Diff interface {
	diffAction() DiffAction
}

// NodeDiff describes an added, updated or removed node.
type NodeDiff struct {
	Action DiffAction `json:"action" yaml:"action"`
	NodeID string     `json:"nodeId" yaml:"nodeId"`
	Before *Node      `json:"before,omitempty" yaml:"before,omitempty"`
	After  *Node      `json:"after,omitempty" yaml:"after,omitempty"`
}

func (d NodeDiff) diffAction() DiffAction { return d.Action }

// MarshalJSON tags the diff with its kind.
func (d NodeDiff) MarshalJSON() ([]byte, error) {
	type plain NodeDiff
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{Kind: "node", plain: plain(d)})
}

// ConnectionDiff describes an added or removed dependency edge.
// From is the prerequisite, To is the dependent node.
type ConnectionDiff struct {
	Action DiffAction `json:"action" yaml:"action"`
	From   string     `json:"from" yaml:"from"`
	To     string     `json:"to" yaml:"to"`
}

func (d ConnectionDiff) diffAction() DiffAction { return d.Action }

// MarshalJSON tags the diff with its kind.
func (d ConnectionDiff) MarshalJSON() ([]byte, error) {
	type plain ConnectionDiff
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{Kind: "connection", plain: plain(d)})
}

// DescribeDiff returns a one-line human description of d.
func DescribeDiff(d Diff) string {
	switch d := d.(type) {
	case NodeDiff:
		return fmt.Sprintf("%s node %s", d.Action, d.NodeID)
	case ConnectionDiff:
		return fmt.Sprintf("%s %s -> %s", d.Action, d.From, d.To)
	default:
		panic(fmt.Sprintf("types: unknown diff %T", d))
	}
}
