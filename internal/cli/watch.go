package cli

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/automation/pkg/events"
	"github.com/matzehuels/automation/pkg/observability"
)

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var (
		opts     serveOpts
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Serve a composition root and watch it re-render live",
		Long: `Watch runs the same server as serve and shows the rendered target in a
terminal UI together with every reconciliation pass. Press r to refetch
every child's backing data, q to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), opts, interval)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "refetch every child at this interval (0 disables)")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, opts serveOpts, interval time.Duration) error {
	cfg, err := opts.load(c)
	if err != nil {
		return err
	}
	a, srv, err := c.startApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	root, target := a.root, a.target
	snapshot := func(ctx context.Context) snapshotMsg {
		var msg snapshotMsg
		msg.err = root.Do(ctx, func() error {
			msg.html = target.HTML()
			msg.children = root.Len()
			return nil
		})
		return msg
	}
	refresh := func() {
		root.Post(func() { root.Events().Trigger(events.ForceUpdateAll) })
	}

	p := tea.NewProgram(
		NewWatchModel(cfg.Server.Addr, interval, snapshot, refresh),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	// The TUI owns the terminal until it exits.
	c.Logger.SetOutput(teaWriter{p: p})
	defer c.Logger.SetOutput(os.Stderr)
	observability.SetRenderHooks(watchHooks{p: p})
	defer observability.Reset()

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe(srvCtx, cfg.Server.Addr, cfg.Server.ShutdownTimeout) }()

	_, runErr := p.Run()
	stop()
	if err := <-srvErr; err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	return runErr
}
