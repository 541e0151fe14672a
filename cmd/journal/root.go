package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jacentio/quill/journal"
	"github.com/jacentio/quill/keys"
	"github.com/jacentio/quill/program"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errUsage marks errors caused by bad arguments.
var errUsage = errors.New("usage")

// app carries the state shared by all subcommands of one invocation.
type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger

	svc    *journal.Service
	prog   *program.Program
	closer io.Closer
}

// run executes the CLI with args and returns the process exit code.
func run(args []string, out, errOut io.Writer) int {
	a := &app{v: viper.New(), out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(context.Background())
	if a.closer != nil {
		if cerr := a.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close backend: %w", cerr)
		}
	}
	if err == nil {
		return exitSuccess
	}
	return a.report(err)
}

// report prints err and maps it to an exit code.
func (a *app) report(err error) int {
	switch {
	case errors.Is(err, errUsage), errors.Is(err, keys.ErrKeyExists):
		fmt.Fprintln(a.errOut, "error:", err)
		return exitUserError
	}
	if code := program.Code(err); code != journal.CodeInternal {
		fmt.Fprintf(a.errOut, "error %d: %s\n", code, journal.Message(code))
		return exitUserError
	}
	fmt.Fprintln(a.errOut, "error:", err)
	return exitSysError
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "journal",
		Short: "journal keeps owner-scoped journal entries",
		Long: `journal creates, updates and deletes journal entries signed by the
owner's key. Entries live in a local SQLite database or in DynamoDB.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.logger = newLogger(a.errOut, a.v.GetString(cfgKeyLogLevel))
			return nil
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default: ~/.quill/config.yaml)")
	pf.String("backend", defaultBackend, "storage backend (sqlite, dynamodb)")
	pf.String("data-dir", "", "sqlite data directory (default: ~/.quill)")
	pf.String("key", "", "owner key file (default: ~/.quill/id.key)")
	pf.Bool("json", false, "output as JSON")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("region", "", "AWS region for the dynamodb backend")
	pf.String("profile", "", "AWS shared config profile for the dynamodb backend")
	pf.String("endpoint", "", "DynamoDB endpoint override (e.g. DynamoDB Local)")
	a.bindFlags(pf)

	root.AddCommand(
		a.keygenCmd(),
		a.initCmd(),
		a.fundCmd(),
		a.balanceCmd(),
		a.createCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.getCmd(),
	)
	return root
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}
