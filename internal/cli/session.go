package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/langdag/dagbuilder/internal/api"
	"github.com/langdag/dagbuilder/internal/builder"
	"github.com/langdag/dagbuilder/pkg/types"
)

func newStartCmd(a *app) *cobra.Command {
	var opts builder.StartOptions

	cmd := &cobra.Command{
		Use:   "start <name>",
		Short: "Start a new builder session",
		Long: `Start a new DRAFT session with an empty workflow and make it current.

A session that was current before stays stored and can still be addressed
with --session <id>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				session, err := e.builder.Start(ctx, opts)
				if err != nil {
					return nil, err
				}
				return &outcome{
					typ:     api.TypeSessionStart,
					payload: session,
					text: func(w io.Writer) error {
						_, err := fmt.Fprintf(w, "Started session %s (%s)\n", session.ID, session.WorkflowDraft.Name)
						return err
					},
				}, nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "workflow description")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "workflow tag (repeatable)")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "workflow owner")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				status, err := e.builder.Status(ctx, a.sessionID)
				if err != nil {
					return nil, err
				}
				return &outcome{
					typ:     api.TypeSessionStatus,
					payload: status,
					text:    func(w io.Writer) error { return printStatus(w, status) },
				}, nil
			})
		},
	}
}

func printStatus(w io.Writer, status *builder.StatusResult) error {
	if status.Session == nil {
		_, err := fmt.Fprintln(w, "No active session. Start one with `dagbuilder start <name>`.")
		return err
	}

	s := status.Session
	validation := "not run"
	switch {
	case s.Validation.OK:
		validation = "ok"
	case len(s.Validation.Errors) > 0:
		validation = strconv.Itoa(len(s.Validation.Errors)) + " error(s)"
	}

	table := newTable(w, "Field", "Value")
	table.Append([]string{"Session", s.ID})
	table.Append([]string{"Name", s.WorkflowDraft.Name})
	table.Append([]string{"State", string(s.State)})
	table.Append([]string{"Nodes", strconv.Itoa(len(s.WorkflowDraft.Nodes))})
	table.Append([]string{"Validation", validation})
	if s.Commit != nil {
		table.Append([]string{"Workflow", s.Commit.WorkflowID})
	}
	table.Append([]string{"Updated", s.UpdatedAt.Format("2006-01-02 15:04:05")})
	table.Render()
	return nil
}

func newAbortCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "abort",
		Short: "Abandon the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				session, err := e.builder.Abort(ctx, a.sessionID)
				if err != nil {
					return nil, err
				}
				return &outcome{
					typ:     api.TypeSessionAbort,
					payload: session,
					text: func(w io.Writer) error {
						_, err := fmt.Fprintf(w, "Aborted session %s\n", session.ID)
						return err
					},
				}, nil
			})
		},
	}
}

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List all sessions",
		Long:    `List stored sessions, newest first.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOp(cmd, func(ctx context.Context, e *env) (*outcome, error) {
				sessions, err := e.builder.List(ctx)
				if err != nil {
					return nil, err
				}
				return &outcome{
					typ:     api.TypeSessionList,
					payload: api.Summarize(sessions),
					text:    func(w io.Writer) error { return printSessions(w, sessions) },
				}, nil
			})
		},
	})
	return cmd
}

func printSessions(w io.Writer, sessions []*types.Session) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}

	table := newTable(w, "ID", "Name", "State", "Nodes", "Workflow", "Created")
	for _, s := range sessions {
		workflowID := ""
		if s.Commit != nil {
			workflowID = s.Commit.WorkflowID
		}
		table.Append([]string{
			s.ID,
			truncate(s.WorkflowDraft.Name, 30),
			strings.ToLower(string(s.State)),
			strconv.Itoa(len(s.WorkflowDraft.Nodes)),
			workflowID,
			s.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	return nil
}
