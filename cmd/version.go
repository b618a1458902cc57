package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/ordframe/pkg/client"
	"github.com/rubiojr/ordframe/pkg/version"
	"github.com/urfave/cli/v3"
)

// VersionCommand creates the version command
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Also report the version of a running server",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			fmt.Println(version.BuildVersion())
			if server := c.String("server"); server != "" {
				return printServerVersion(ctx, server)
			}
			return nil
		},
	}
}

func printServerVersion(ctx context.Context, server string) error {
	health, err := client.New(server).Health(ctx)
	if err != nil {
		return fmt.Errorf("querying server: %w", err)
	}
	fmt.Printf("server %s version %s (%s)\n", server, health.Version, health.Status)
	return nil
}
