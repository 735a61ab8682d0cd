package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/langdag/dagbuilder/internal/api"
	"github.com/langdag/dagbuilder/internal/workflow"
)

func newGraphCmd(a *app) *cobra.Command {
	var ascii bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the draft as a dependency graph",
		Long: `Show edges, root and leaf nodes and the topological order of the draft.

With --ascii the payload carries a human-readable rendering instead; combine
it with -o text to print the rendering alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				session, graph, err := e.builder.Graph(ctx, a.sessionID)
				if err != nil {
					return nil, err
				}

				rendering := workflow.RenderASCII(session.WorkflowDraft, graph)
				text := func(w io.Writer) error {
					_, err := io.WriteString(w, rendering)
					return err
				}
				if ascii {
					return &outcome{
						typ:     api.TypeGraphASCII,
						payload: api.ASCIIPayload{SessionID: session.ID, ASCII: rendering},
						text:    text,
					}, nil
				}
				return &outcome{
					typ:     api.TypeGraph,
					payload: api.NewGraphPayload(session, graph),
					text:    text,
				}, nil
			})
		},
	}

	cmd.Flags().BoolVar(&ascii, "ascii", false, "render the graph as text")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the draft",
		Long: `Check the draft for structural problems and record the result.

A passing DRAFT session becomes VALIDATED. A failing draft is still reported
in a success envelope with ok set to false in the payload; the command only
fails when validation could not run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				session, err := e.builder.Validate(ctx, a.sessionID)
				if err != nil {
					return nil, err
				}
				return &outcome{
					typ:     api.TypeValidate,
					payload: api.NewValidationPayload(session),
					text: func(w io.Writer) error {
						if session.Validation.OK {
							_, err := fmt.Fprintf(w, "Draft is valid, session %s is %s\n", session.ID, session.State)
							return err
						}
						_, err := io.WriteString(w, workflow.FormatErrors(session.Validation))
						return err
					},
				}, nil
			})
		},
	}
}

func newCommitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Submit the validated draft to the workflow service",
		Long: `Create the workflow on the workflow service.

Only VALIDATED sessions can be committed. On success the session becomes
COMMITTED and is no longer current. If the service cannot be reached the
session stays VALIDATED and commit can be retried.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				result, err := e.builder.Commit(ctx, a.sessionID)
				if err != nil {
					return nil, err
				}
				return &outcome{
					typ: api.TypeCommit,
					payload: api.MutationPayload{
						SessionID: result.Session.ID,
						State:     result.Session.State,
						Result:    result,
					},
					text: func(w io.Writer) error {
						_, err := fmt.Fprintf(w, "Committed workflow %s\n", result.WorkflowID)
						return err
					},
				}, nil
			})
		},
	}
}
