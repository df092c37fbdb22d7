package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Lllllllleong/imigraflow/internal/app"
	"github.com/Lllllllleong/imigraflow/internal/config"
	"github.com/Lllllllleong/imigraflow/internal/logger"
)

// errRedirect is returned when the guards send the user back to onboarding.
var errRedirect = errors.New("no usable process, run 'imigractl onboard' first")

// opener builds the App for a command run. Tests swap it for an in-memory one.
type opener func(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app.App, error)

type cli struct {
	open       opener
	namespace  string
	configPath string
	verbose    bool

	app *app.App
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(app.New).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}
	root := &cobra.Command{
		Use:   "imigractl",
		Short: "Immigration planning assistant",
		Long: `imigractl drives the immigration assistant from the terminal.

Every command works on one storage namespace (one "device"). Start with
'imigractl onboard' to create a process, then use the dashboard, chat,
study and calculator commands against the active process.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.PersistentFlags().StringVarP(&c.namespace, "namespace", "n", "default", "storage namespace")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (defaults to environment and built-in defaults)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.onboardCmd(),
		c.dashboardCmd(),
		c.processesCmd(),
		c.stepCmd(),
		c.documentCmd(),
		c.chatCmd(),
		c.studyCmd(),
		c.calcCmd(),
		c.watchCmd(),
		c.logoutCmd(),
	)
	return root
}

func (c *cli) setup(ctx context.Context) error {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	c.app, err = c.open(ctx, cfg, log)
	return err
}

// session opens the namespace and, unless unguarded, runs the entry guards.
func (c *cli) session(ctx context.Context, guarded bool) (*app.Session, error) {
	sess, err := c.app.Session(c.namespace)
	if err != nil {
		return nil, err
	}
	if !guarded {
		return sess, nil
	}
	decision, err := sess.Guards.Enter(ctx)
	if err != nil {
		return nil, err
	}
	if decision.Redirect {
		return nil, fmt.Errorf("%w (%s)", errRedirect, decision.Reason)
	}
	return sess, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
