package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-analytics-client/client"
	"github.com/jrsteele09/go-analytics-client/internal/config"
	"github.com/jrsteele09/go-analytics-client/internal/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

const sessionExpiredMessage = "session expired, please log in again"

// app carries what every command needs once the client is set up.
type app struct {
	client *client.Client
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	query   string
	store   string
	baseURL string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "analytics",
		Short:         "Command line client for the equipment analytics service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			displayAppname(cmd.OutOrStdout(), cfg.GetAppName())
			return cmd.Help()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.query, "query", "", "JMESPath expression applied to JSON output")
	flags.StringVar(&a.store, "store", "", "credential store backend: memory, file or redis")
	flags.StringVar(&a.baseURL, "base-url", "", "API base URL")

	root.AddCommand(
		a.loginCmd(),
		a.signupCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.profileCmd(),
		a.passwordCmd(),
		a.uploadCmd(),
		a.historyCmd(),
		a.analysisCmd(),
		a.compareCmd(),
		a.deleteCmd(),
		a.exportCmd(),
		a.callCmd(),
	)
	return root
}

type runFunc func(ctx context.Context, args []string) error

// run wraps a command body with client setup and teardown.
func (a *app) run(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.setup(cmd.Context()); err != nil {
			return err
		}
		defer func() {
			if closeErr := a.client.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
			a.client = nil
		}()
		return fn(cmd.Context(), args)
	}
}

func (a *app) setup(ctx context.Context) error {
	if a.store != "" {
		if err := os.Setenv("ANALYTICS_STORE", a.store); err != nil {
			return err
		}
	}
	if a.baseURL != "" {
		if err := os.Setenv("ANALYTICS_BASE_URL", a.baseURL); err != nil {
			return err
		}
	}

	cfg, err := config.New()
	if err != nil {
		return err
	}
	logging.Setup(cfg.GetLogLevel(), cfg.IsDev())

	c, err := client.New(ctx, cfg)
	if err != nil {
		return err
	}
	c.OnInvalidated(func(error) {
		fmt.Fprintln(a.errOut, sessionExpiredMessage)
	})
	a.client = c
	return nil
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, myFigure.String())
}
