package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rubiojr/ordframe/pkg/client"
	"github.com/rubiojr/ordframe/pkg/selection"
	"github.com/urfave/cli/v3"
)

// SelectCommand creates the select command
func SelectCommand() *cli.Command {
	return &cli.Command{
		Name:  "select",
		Usage: "Change which inscriptions a running server displays",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Server URL",
				Value: client.DefaultServer,
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Select every inscription",
			},
			&cli.BoolFlag{
				Name:  "none",
				Usage: "Clear the selection",
			},
			&cli.BoolFlag{
				Name:  "rare",
				Usage: "Select only inscriptions on rare sats",
			},
			&cli.StringSliceFlag{
				Name:  "toggle",
				Usage: "Toggle an inscription id (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show the resulting selection without saving it",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			opts := selectOptions{
				all:    c.Bool("all"),
				none:   c.Bool("none"),
				rare:   c.Bool("rare"),
				toggle: c.StringSlice("toggle"),
				dryRun: c.Bool("dry-run"),
			}
			return selectOrdinals(ctx, client.New(c.String("server")), opts)
		},
	}
}

type selectOptions struct {
	all, none, rare bool
	toggle          []string
	dryRun          bool
}

// selectOrdinals applies the bulk action first, then the toggles, then
// saves through the same controller the select page uses.
func selectOrdinals(ctx context.Context, cl *client.Client, opts selectOptions) error {
	resp, err := cl.Ordinals(ctx)
	if err != nil {
		return fmt.Errorf("loading ordinals from server: %w", err)
	}

	ctl := selection.New(resp.Metadata.Ordinals, resp.Selection.SelectedIDs, cl)
	switch {
	case opts.all:
		ctl.SelectAll()
	case opts.none:
		ctl.SelectNone()
	case opts.rare:
		ctl.SelectRare()
	}
	for _, id := range opts.toggle {
		ctl.Toggle(id)
	}

	byID := make(map[string]string, len(resp.Metadata.Ordinals))
	for _, o := range resp.Metadata.Ordinals {
		byID[o.ID] = o.Overlay().Title
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("%d of %d selected", ctl.Count(), len(resp.Metadata.Ordinals))))
	for _, id := range ctl.Selected() {
		label := byID[id]
		if label == "" {
			label = "(not in catalog)"
		}
		fmt.Printf("%s%s %s\n", selectedStyle.Render("✔ "), label, metaStyle.Render(id))
	}

	if opts.dryRun {
		return nil
	}

	res, err := ctl.Save(ctx)
	if err != nil {
		fmt.Println(errorStyle.Render(res.Message))
		if errors.Is(err, selection.ErrEmptySelection) {
			return fmt.Errorf("nothing selected")
		}
		return err
	}
	fmt.Println(summaryStyle.Render(res.Message))
	return nil
}
