package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/automation/internal/config"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
	"github.com/matzehuels/automation/pkg/vtree"
)

// renderOpts holds the command-line flags shared by render and diff.
type renderOpts struct {
	config   string   // config file path
	kind     string   // child kind: list, news or custom
	template string   // template file (implies the custom kind)
	sets     []string // key=value attributes for a single item
	url      string   // backing-data URL fetched and merged before output
	tree     bool     // print the virtual tree outline
	dot      bool     // print the tree as Graphviz DOT
	svg      string   // write the tree as SVG to this path
	noCache  bool     // bypass the response cache
}

func (o *renderOpts) addRenderFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.config, "config", "c", "", "config file (default ./automation.toml if present)")
	cmd.Flags().StringVarP(&o.kind, "kind", "k", "", "child kind: list, news or custom")
	cmd.Flags().StringVarP(&o.template, "template", "t", "", "template file for the custom kind")
}

// applyTo overrides cfg with the flags and revalidates it.
func (o *renderOpts) applyTo(cfg *config.Config) error {
	if o.kind != "" {
		cfg.Render.Kind = o.kind
	}
	if o.template != "" {
		cfg.Render.Kind = config.KindCustom
		cfg.Render.TemplateFile = o.template
		cfg.Render.Template = ""
	}
	return cfg.Validate()
}

// parseSets turns key=value pairs into attributes.
func parseSets(sets []string) (model.Attributes, error) {
	attrs := model.Attributes{}
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput, "--set %q: want key=value", kv)
		}
		if err := errors.ValidateAttributeKey(k); err != nil {
			return nil, err
		}
		attrs[k] = v
	}
	return attrs, nil
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts
	cmd := &cobra.Command{
		Use:   "render [items.json]",
		Short: "Render models to markup",
		Long: `Render mounts each item of a JSON array (or a single object) as a child
and prints the resulting markup. With --url the backing document is fetched
first (http, https, file or mongo URLs) and merged onto the item.`,
		Example: `  automation render --kind news items.json
  automation render -t item.html --set title=Hello --tree
  automation render --set id=1 --url https://example.com/news/1.json --svg tree.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := ""
			if len(args) == 1 {
				data = args[0]
			}
			return runRender(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), commandLogger(cmd), data, opts)
		},
	}
	opts.addRenderFlags(cmd)
	cmd.Flags().StringArrayVarP(&opts.sets, "set", "s", nil, "attribute key=value for a single item (repeatable)")
	cmd.Flags().StringVar(&opts.url, "url", "", "fetch backing data from this URL before rendering")
	cmd.Flags().BoolVar(&opts.tree, "tree", false, "print the virtual tree outline")
	cmd.Flags().BoolVar(&opts.dot, "dot", false, "print the virtual tree as Graphviz DOT")
	cmd.Flags().StringVar(&opts.svg, "svg", "", "write the virtual tree as SVG to `file`")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the response cache")
	return cmd
}

func runRender(ctx context.Context, w, status io.Writer, logger *log.Logger, data string, opts renderOpts) error {
	cfg, err := loadConfig(opts.config)
	if err != nil {
		return err
	}
	if err := opts.applyTo(&cfg); err != nil {
		return err
	}

	var items []model.Attributes
	if data != "" {
		if items, err = readItems(data); err != nil {
			return err
		}
	}
	if len(opts.sets) > 0 || opts.url != "" {
		attrs, err := parseSets(opts.sets)
		if err != nil {
			return err
		}
		if opts.url != "" {
			attrs[cfg.Source.URLAttr] = opts.url
		}
		items = append(items, attrs)
	}
	if len(items) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "nothing to render: pass an items file, --set or --url")
	}

	a, err := newApp(ctx, cfg, logger, opts.noCache)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, attrs := range items {
		if _, err := a.root.Add(attrs); err != nil {
			return err
		}
	}

	if opts.url != "" {
		prog := newProgress(logger)
		spinner := newSpinner(ctx, status, "Fetching "+opts.url)
		spinner.Start()
		select {
		case <-a.root.Refresh():
		case <-ctx.Done():
		}
		spinner.Stop()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.root.Flush()
		prog.done("Fetched " + opts.url)
	}

	tree := a.target.Snapshot()
	switch {
	case opts.tree:
		writeTree(w, tree, 0)
	case opts.dot:
		fmt.Fprint(w, vtree.ToDOT(tree))
	default:
		fmt.Fprintln(w, a.target.HTML())
	}

	if opts.svg != "" {
		svg, err := vtree.RenderSVG(vtree.ToDOT(tree))
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "render svg")
		}
		if err := os.WriteFile(opts.svg, svg, 0o644); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", opts.svg)
		}
		printSuccess("Rendered %d nodes", tree.Count())
		printFile(opts.svg)
	}
	return nil
}

// writeTree prints an indented outline of n.
func writeTree(w io.Writer, n *vtree.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if n.IsText() {
		fmt.Fprintf(w, "%s%q\n", indent, n.Text)
		return
	}
	var b strings.Builder
	b.WriteString(indent + n.Tag)
	for _, a := range n.Attrs {
		fmt.Fprintf(&b, " %s=%q", a.Name, a.Value)
	}
	fmt.Fprintln(w, b.String())
	for _, c := range n.Children {
		writeTree(w, c, depth+1)
	}
}
