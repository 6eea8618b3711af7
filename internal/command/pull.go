package command

import (
	"fmt"

	cli "github.com/urfave/cli/v2"
)

var pullCommand = &cli.Command{
	Name:      "pull",
	Usage:     "retrieve staged images into the local image store under their original names",
	ArgsUsage: "REF...",
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("pull needs at least one reference")
		}
		client, err := newClient(c)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Pull(c.Context, c.Args().Slice()...); err != nil {
			return err
		}
		fmt.Printf("pulled %d image(s)\n", c.NArg())
		return nil
	},
}
