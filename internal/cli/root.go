// Package cli implements the formset command line: validating and linting
// definitions, describing collections for clients, and reconciling payloads
// into a store.
package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	formset "github.com/goliatone/go-formset"
	"github.com/goliatone/go-formset/internal/logging"
)

// Exit codes returned by ExitCode.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitInvalid = 2
	ExitAborted = 3
	ExitUsage   = 4
)

const defaultEnvFile = ".env"

// errInvalid marks definitions, documents or payloads that failed checks.
var errInvalid = errors.New("cli: invalid input")

// ExitCode maps an Execute error onto the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrAborted):
		return ExitAborted
	case errors.Is(err, errInvalid), errors.Is(err, formset.ErrNotValid):
		return ExitInvalid
	case errors.Is(err, errUsage):
		return ExitUsage
	default:
		return ExitError
	}
}

var errUsage = errors.New("cli: usage")

// app carries what every subcommand needs once the root pre-run finished.
type app struct {
	envFile   string
	allowHTTP bool
	timeout   time.Duration
	confirmer Confirmer

	cfg   Config
	log   *zap.Logger
	runID string
}

// Option customises the root command, mostly for tests.
type Option func(*app)

// WithConfirmer replaces the interactive survey prompt.
func WithConfirmer(c Confirmer) Option {
	return func(a *app) {
		if c != nil {
			a.confirmer = c
		}
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{confirmer: surveyConfirmer{}, log: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	root := &cobra.Command{
		Use:   "formset",
		Short: "Validate and reconcile nested form collections",
		Long: `formset loads YAML definitions of models, forms and form collections,
validates submitted payloads against them and reconciles valid payloads into
a record store (memory, sqlite, postgres or redis).

Environment (read after the optional .env file):
  FORMSET_DRIVER        store backend, default memory
  FORMSET_DSN           sqlite or postgres connection string
  FORMSET_LOG_LEVEL     debug, info, warn or error
  FORMSET_LOG_JSON      true for JSON logs
  REDIS_ADDR            redis address for the redis driver
  FORMSET_REDIS_PREFIX  key prefix for the redis driver

Exit Codes:
  0  - Success
  1  - General error
  2  - Invalid definition, document or payload
  3  - Aborted at a prompt
  4  - Usage error`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", defaultEnvFile, "dotenv file loaded before reading the environment")
	flags.BoolVar(&a.allowHTTP, "allow-http", false, "allow http(s) definition sources")
	flags.DurationVar(&a.timeout, "timeout", 10*time.Second, "timeout for remote definition sources")

	root.AddCommand(
		newValidateCmd(a),
		newLintCmd(a),
		newDescribeCmd(a),
		newReconcileCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(a.envFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return fmt.Errorf("cli: %w", err)
	}
	a.cfg = cfg
	a.runID = uuid.NewString()
	a.log = logger.With(zap.String("run_id", a.runID), zap.String("command", cmd.Name()))
	a.log.Debug("starting", zap.String("driver", cfg.Driver))
	return nil
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// exactArgs wraps cobra.ExactArgs so argument errors map onto ExitUsage.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %s", errUsage, err.Error())
		}
		return nil
	}
}
