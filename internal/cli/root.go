// Package cli provides the command-line interface for dagbuilder.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/langdag/dagbuilder/internal/builder"
	"github.com/langdag/dagbuilder/internal/client"
	"github.com/langdag/dagbuilder/internal/config"
	"github.com/langdag/dagbuilder/internal/logging"
	"github.com/langdag/dagbuilder/internal/storage"
)

// Version is the CLI version.
const Version = "0.1.0"

// ErrReported means the failure envelope has already been written.
var ErrReported = errors.New("dagbuilder: command failed")

// app holds the global flags and output streams of one invocation.
type app struct {
	cfgFile   string
	verbose   bool
	output    string
	sessionID string

	out    io.Writer
	errOut io.Writer
}

// Execute runs the root command.
func Execute() error {
	return run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	err := cmd.ExecuteContext(ctx)
	if err == nil || errors.Is(err, ErrReported) {
		return err
	}
	// Usage errors from cobra itself: bad flags, wrong argument counts.
	a.fail(&builder.Error{Code: builder.CodeInvalidInput, Message: err.Error(), Hint: "see `dagbuilder --help`", Err: err})
	return ErrReported
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dagbuilder",
		Short: "dagbuilder - incremental workflow graph builder",
		Long: `dagbuilder assembles a workflow graph one command at a time.

A session holds the draft between invocations. Nodes and dependency edges
are added and removed with single mutations, the draft is validated for
structural problems (missing dependencies, cycles), and a validated draft is
committed to the workflow service.

Examples:
  dagbuilder start demo
  dagbuilder add-node --id n1 --type http
  dagbuilder add-node --id n2 --type transform --depends-on n1
  dagbuilder graph --ascii -o text
  dagbuilder validate
  dagbuilder commit`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.output {
			case "json", "yaml", "text":
				return nil
			default:
				return fmt.Errorf("unknown output format %q", a.output)
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/dagbuilder/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging on stderr")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "json", "output format: json, yaml or text")
	root.PersistentFlags().StringVar(&a.sessionID, "session", "", "address a session by id instead of the current one")

	root.AddCommand(
		newStartCmd(a),
		newStatusCmd(a),
		newAbortCmd(a),
		newSessionsCmd(a),
		newAddNodeCmd(a),
		newUpdateNodeCmd(a),
		newRemoveNodeCmd(a),
		newConnectCmd(a),
		newDisconnectCmd(a),
		newGraphCmd(a),
		newValidateCmd(a),
		newCommitCmd(a),
		newConfigCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "dagbuilder version %s\n", Version)
		},
	}
}

// env is everything an operation needs, built once per invocation.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   storage.Store
	builder *builder.Builder
}

func (e *env) Close() error {
	return e.store.Close()
}

// open loads configuration and opens the session store.
func (a *app) open(ctx context.Context) (*env, error) {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if a.verbose {
		level = "debug"
	}
	logger := logging.New(a.errOut, level, cfg.Logging.Format)

	store, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []client.Option{client.WithAPIKey(cfg.Service.APIKey)}
	if cfg.Service.Timeout > 0 {
		opts = append(opts, client.WithTimeout(cfg.Service.Timeout))
	}
	svc := client.NewClient(cfg.Service.BaseURL, opts...)

	return &env{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		builder: builder.New(store, builder.WithCreator(svc), builder.WithLogger(logger)),
	}, nil
}

// reported renders any error from fn as a failure envelope.
func (a *app) reported(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			a.fail(err)
			return ErrReported
		}
		return nil
	}
}

// outcome is what a builder command produced. text, when set, is the human
// rendering used with --output text.
type outcome struct {
	typ     string
	payload any
	text    func(w io.Writer) error
}

// runOp opens the environment, runs op and writes its envelope.
func (a *app) runOp(cmd *cobra.Command, op func(ctx context.Context, e *env) (*outcome, error)) error {
	ctx := cmd.Context()
	e, err := a.open(ctx)
	if err != nil {
		a.fail(err)
		return ErrReported
	}
	defer e.Close()

	ctx = logging.WithLogger(ctx, e.logger)
	result, err := op(ctx, e)
	if err != nil {
		e.logger.Debug("command failed", "command", cmd.Name(), "error", err)
		a.fail(err)
		return ErrReported
	}
	if err := a.emit(result); err != nil {
		fmt.Fprintf(a.errOut, "Error: failed to write output: %v\n", err)
		return ErrReported
	}
	return nil
}
