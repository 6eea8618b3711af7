package command

import (
	"fmt"

	cli "github.com/urfave/cli/v2"
)

var pushCommand = &cli.Command{
	Name:      "push",
	Usage:     "stage local images into the registry",
	ArgsUsage: "REF...",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("push needs at least one reference")
		}
		client, err := newClient(c)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Push(c.Context, c.Args().Slice()...); err != nil {
			return err
		}
		fmt.Printf("staged %d image(s)\n", c.NArg())
		return nil
	},
}
