package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/ordframe/pkg/config"
	"github.com/urfave/cli/v3"
)

// ListCommand creates the list command
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the inscriptions in the local catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "selected",
				Usage: "Only show inscriptions selected for display",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of inscriptions to show (0 for no limit)",
				Value: 0,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return listOrdinals(ctx, c.String("config"), c.Bool("selected"), c.Int("limit"))
		},
	}
}

func listOrdinals(ctx context.Context, configPath string, onlySelected bool, limit int) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	cat, err := st.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	sel, err := st.Selection(ctx)
	if err != nil {
		return fmt.Errorf("loading selection: %w", err)
	}

	if len(cat.Ordinals) == 0 {
		fmt.Println(noDataStyle.Render("No inscriptions yet. Run `ordframe fetch --address <address>` first."))
		return nil
	}

	selected := make(map[string]bool, len(sel.SelectedIDs))
	for _, id := range sel.SelectedIDs {
		selected[id] = true
	}

	header := fmt.Sprintf("%s: %d images of %d inscriptions, %d selected",
		cat.Address, cat.ImageCount, cat.TotalCount, len(sel.SelectedIDs))
	fmt.Println(titleStyle.Render(header))
	if cat.LastUpdated != nil {
		fmt.Println(metaStyle.Render("Last updated " + formatTime(*cat.LastUpdated)))
		fmt.Println()
	}

	shown := 0
	for _, o := range cat.Ordinals {
		if onlySelected && !selected[o.ID] {
			continue
		}
		if limit > 0 && shown >= limit {
			break
		}
		fmt.Println(formatOrdinalLine(o, selected[o.ID]))
		shown++
	}
	return nil
}
