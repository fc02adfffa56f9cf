package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/automation/pkg/dom"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/vtree"
)

var opStyles = map[vtree.Op]lipgloss.Style{
	vtree.OpInsert:     lipgloss.NewStyle().Foreground(colorGreen),
	vtree.OpRemove:     lipgloss.NewStyle().Foreground(colorRed),
	vtree.OpRemoveAttr: lipgloss.NewStyle().Foreground(colorRed),
	vtree.OpReplace:    lipgloss.NewStyle().Foreground(colorYellow),
	vtree.OpSetAttr:    lipgloss.NewStyle().Foreground(colorCyan),
	vtree.OpText:       lipgloss.NewStyle().Foreground(colorCyan),
}

// diffCommand creates the diff command.
func (c *CLI) diffCommand() *cobra.Command {
	var opts renderOpts
	cmd := &cobra.Command{
		Use:   "diff OLD.json NEW.json",
		Short: "Show the patches between two attribute sets",
		Long: `Diff renders both attribute objects with the configured template and prints
the patch set that turns the first tree into the second. The patch set is
applied to a live copy of the old tree to check it reproduces the new one.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.OutOrStdout(), args[0], args[1], opts)
		},
	}
	opts.addRenderFlags(cmd)
	return cmd
}

func runDiff(w io.Writer, oldPath, newPath string, opts renderOpts) error {
	cfg, err := loadConfig(opts.config)
	if err != nil {
		return err
	}
	if err := opts.applyTo(&cfg); err != nil {
		return err
	}
	tpl, err := buildTemplate(cfg.Render)
	if err != nil {
		return err
	}
	b := vtree.NewBuilder(tpl)

	render := func(path string) (*vtree.Node, error) {
		data, err := readItems(path)
		if err != nil {
			return nil, err
		}
		if len(data) != 1 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "%s: want one JSON object, got %d", path, len(data))
		}
		return b.Render(data[0])
	}
	oldTree, err := render(oldPath)
	if err != nil {
		return err
	}
	newTree, err := render(newPath)
	if err != nil {
		return err
	}

	ps := vtree.Diff(oldTree, newTree)
	if ps.Empty() {
		fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" No changes")
		return nil
	}
	writePatches(w, ps)

	el, err := dom.Patch(dom.Create(oldTree), ps)
	if err != nil {
		return err
	}
	if !vtree.Equal(el.Snapshot(), newTree) {
		return errors.New(errors.ErrCodeInvalidPatch, "patched tree does not match the new render")
	}
	fmt.Fprintln(w, StyleDim.Render(fmt.Sprintf("%d patches, verified against a live tree", len(ps))))
	return nil
}

func writePatches(w io.Writer, ps vtree.PatchSet) {
	for _, p := range ps {
		style, ok := opStyles[p.Op]
		if !ok {
			style = StyleValue
		}
		fmt.Fprintln(w, style.Render(fmt.Sprintf("%-11s", p.Op))+" "+StyleValue.Render(p.String()[len(p.Op.String())+1:]))
	}
}
