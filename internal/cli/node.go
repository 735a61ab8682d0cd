package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/langdag/dagbuilder/internal/api"
	"github.com/langdag/dagbuilder/internal/workflow"
	"github.com/langdag/dagbuilder/pkg/types"
)

// nodeFlags are the ways a node payload can be given on the command line.
type nodeFlags struct {
	id        string
	nodeType  string
	input     string
	dependsOn []string
	data      string
	file      string
}

func (f *nodeFlags) register(cmd *cobra.Command, withID bool) {
	if withID {
		cmd.Flags().StringVar(&f.id, "id", "", "node id")
	}
	cmd.Flags().StringVarP(&f.nodeType, "type", "t", "", "node type")
	cmd.Flags().StringVar(&f.input, "input", "", "node input as a JSON or YAML object")
	cmd.Flags().StringSliceVar(&f.dependsOn, "depends-on", nil, "ids this node depends on (comma separated or repeated)")
	cmd.Flags().StringVar(&f.data, "data", "", "whole payload as JSON or YAML")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the payload from a JSON or YAML file (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("data", "file")
}

// raw builds the payload map. A --data or --file payload is the base and
// individual flags override it.
func (f *nodeFlags) raw(cmd *cobra.Command, stdin io.Reader) (map[string]any, error) {
	raw := map[string]any{}

	var payload []byte
	switch {
	case f.file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		payload = data
	case f.file != "":
		data, err := os.ReadFile(f.file)
		if err != nil {
			return nil, &workflow.InputError{Problems: []workflow.Problem{{Field: "file", Message: err.Error()}}}
		}
		payload = data
	case f.data != "":
		payload = []byte(f.data)
	}
	if payload != nil {
		obj, err := workflow.DecodeObject(payload)
		if err != nil {
			return nil, err
		}
		raw = obj
	}

	flags := cmd.Flags()
	if flags.Changed("id") {
		raw["id"] = f.id
	}
	if flags.Changed("type") {
		raw["type"] = f.nodeType
	}
	if flags.Changed("input") {
		input, err := workflow.DecodeObject([]byte(f.input))
		if err != nil {
			return nil, &workflow.InputError{Problems: []workflow.Problem{{Field: "input", Message: err.Error()}}}
		}
		raw["input"] = input
	}
	if flags.Changed("depends-on") {
		deps := make([]any, 0, len(f.dependsOn))
		for _, dep := range f.dependsOn {
			deps = append(deps, dep)
		}
		raw["dependsOn"] = deps
	}
	return raw, nil
}

func mutationOutcome(typ string, session *types.Session, diff types.Diff, result any) *outcome {
	return &outcome{
		typ: typ,
		payload: api.MutationPayload{
			SessionID: session.ID,
			State:     session.State,
			Result:    result,
		},
		text: func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s (session %s is %s)\n", types.DescribeDiff(diff), session.ID, session.State)
			return err
		},
	}
}

func newAddNodeCmd(a *app) *cobra.Command {
	var f nodeFlags

	cmd := &cobra.Command{
		Use:   "add-node",
		Short: "Add a node to the draft",
		Long: `Add a node to the current draft.

The node can be given with flags, as a JSON or YAML payload with --data, or
from a file with --file. Flags override fields of a payload.

Examples:
  dagbuilder add-node --id fetch --type http --input '{"url": "https://example.com"}'
  dagbuilder add-node --id parse --type transform --depends-on fetch
  dagbuilder add-node --file node.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				raw, err := f.raw(cmd, cmd.InOrStdin())
				if err != nil {
					return nil, err
				}
				node, err := workflow.NodeFromMap(raw)
				if err != nil {
					return nil, err
				}
				result, err := e.builder.AddNode(ctx, a.sessionID, node)
				if err != nil {
					return nil, err
				}
				return mutationOutcome(api.TypeNodeAdd, result.Session, result.Diff, result), nil
			})
		},
	}

	f.register(cmd, true)
	return cmd
}

func newUpdateNodeCmd(a *app) *cobra.Command {
	var f nodeFlags

	cmd := &cobra.Command{
		Use:   "update-node <id>",
		Short: "Replace fields of an existing node",
		Long: `Replace the type, input or dependencies of an existing node.

Only the fields that are given change. --depends-on "" clears the
dependency list.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				raw, err := f.raw(cmd, cmd.InOrStdin())
				if err != nil {
					return nil, err
				}
				patch, err := workflow.PatchFromMap(raw)
				if err != nil {
					return nil, err
				}
				result, err := e.builder.UpdateNode(ctx, a.sessionID, args[0], patch)
				if err != nil {
					return nil, err
				}
				return mutationOutcome(api.TypeNodeUpdate, result.Session, result.Diff, result), nil
			})
		},
	}

	f.register(cmd, false)
	return cmd
}

func newRemoveNodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove-node <id>",
		Aliases: []string{"rm-node"},
		Short:   "Remove a node and strip it from other nodes' dependencies",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				result, err := e.builder.RemoveNode(ctx, a.sessionID, args[0])
				if err != nil {
					return nil, err
				}
				return mutationOutcome(api.TypeNodeRemove, result.Session, result.Diff, result), nil
			})
		},
	}
}

func newConnectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <from> <to>",
		Short: "Make <to> depend on <from>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				result, err := e.builder.Connect(ctx, a.sessionID, args[0], args[1])
				if err != nil {
					return nil, err
				}
				return mutationOutcome(api.TypeConnect, result.Session, result.Diff, result), nil
			})
		},
	}
}

func newDisconnectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <from> <to>",
		Short: "Remove the dependency of <to> on <from>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				result, err := e.builder.Disconnect(ctx, a.sessionID, args[0], args[1])
				if err != nil {
					return nil, err
				}
				return mutationOutcome(api.TypeDisconnect, result.Session, result.Diff, result), nil
			})
		},
	}
}
