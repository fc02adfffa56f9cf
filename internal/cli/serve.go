package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/automation/internal/config"
	"github.com/matzehuels/automation/internal/server"
)

// serveOpts holds the flags shared by serve and watch.
type serveOpts struct {
	config  string // config file path
	addr    string // listen address, overrides server.addr
	data    string // JSON items mounted before serving
	noCache bool   // bypass the response cache
}

func (o *serveOpts) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.config, "config", "c", "", "config file (default ./automation.toml if present)")
	cmd.Flags().StringVarP(&o.addr, "addr", "a", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVarP(&o.data, "data", "d", "", "JSON file with initial items")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "disable the response cache")
}

func (o *serveOpts) load(c *CLI) (config.Config, error) {
	cfg, err := loadConfig(o.config)
	if err != nil {
		return cfg, err
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	c.applyLogLevel(cfg.Log.Level)
	return cfg, cfg.Validate()
}

// applyLogLevel lowers the logger's level to the configured one. It never
// raises it, so --verbose keeps working.
func (c *CLI) applyLogLevel(level string) {
	if level == "" {
		return
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return
	}
	if lvl < c.Logger.GetLevel() {
		c.Logger.SetLevel(lvl)
	}
}

// startApp builds the app, mounts the initial items and wraps it in a server.
func (c *CLI) startApp(ctx context.Context, cfg config.Config, opts serveOpts) (*app, *server.Server, error) {
	a, err := newApp(ctx, cfg, c.Logger, opts.noCache)
	if err != nil {
		return nil, nil, err
	}
	restored, err := a.restore(ctx)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	if restored > 0 {
		c.Logger.Info("restored snapshot", "id", cfg.Snapshot.ID, "children", restored)
	}
	n, err := a.seed(opts.data)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	if n > 0 {
		c.Logger.Info("mounted initial items", "count", n, "file", opts.data)
	}
	srv := server.New(a.root, a.target, server.Options{
		Logger:    c.Logger.With("component", "server"),
		Protocols: []string{cfg.Channel.Protocol},
		Title:     appName + " · " + cfg.Render.Kind,

		Snapshots:   a.snapshots,
		SnapshotID:  cfg.Snapshot.ID,
		SnapshotTTL: cfg.Snapshot.TTL,
	})
	return a, srv, nil
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a composition root over HTTP",
		Long: `Serve hosts one composition root. Children are managed through the REST API
under /children, the rendered page is served at /, and /channel/{topic}
relays published JSON payloads to every child subscribed to that topic.`,
		Example: `  automation serve --config automation.toml
  automation serve --addr :8080 --data items.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(c)
			if err != nil {
				return err
			}
			a, srv, err := c.startApp(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			printInfo("Serving on %s", StyleLink.Render("http://"+cfg.Server.Addr))
			printKeyValue("kind", cfg.Render.Kind)
			printKeyValue("children", fmt.Sprint(a.root.Len()))
			printKeyValue("cache", cfg.Cache.Backend)
			printKeyValue("channels", cfg.Channel.URLAttr)
			if cfg.Snapshot.ID != "" {
				printKeyValue("snapshot", cfg.Snapshot.ID)
			}
			return srv.ListenAndServe(cmd.Context(), cfg.Server.Addr, cfg.Server.ShutdownTimeout)
		},
	}
	opts.addFlags(cmd)
	return cmd
}
