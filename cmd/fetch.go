package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/ordframe/pkg/client"
	"github.com/rubiojr/ordframe/pkg/config"
	"github.com/urfave/cli/v3"
)

// FetchCommand creates the fetch command
func FetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch the inscriptions of an address into the local catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Usage: "Bitcoin address (defaults to the configured address)",
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "Ask a running server to fetch instead of using the local database",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return fetchOrdinals(ctx, c.String("config"), c.String("address"), c.String("server"))
		},
	}
}

func fetchOrdinals(ctx context.Context, configPath, address, server string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if address == "" {
		address = cfg.Address
	}
	if address == "" {
		return fmt.Errorf("no address given and none configured")
	}

	if server != "" {
		resp, err := client.New(server).FetchOrdinals(ctx, address)
		if err != nil {
			fmt.Println(errorStyle.Render("Fetch failed: " + err.Error()))
			return err
		}
		fmt.Println(summaryStyle.Render(resp.Message))
		return nil
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	fmt.Println(titleStyle.Render("Fetching " + address))
	res, err := newCatalogService(cfg, st, nil).FetchAddress(ctx, address)
	if err != nil {
		fmt.Println(errorStyle.Render("Fetch failed: " + err.Error()))
		return err
	}

	fmt.Println(summaryStyle.Render(fmt.Sprintf("%s (%d inscriptions in total)", res.Message(), res.TotalCount)))
	return nil
}
