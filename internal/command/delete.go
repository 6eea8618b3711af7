package command

import (
	"fmt"

	cli "github.com/urfave/cli/v2"
)

var deleteCommand = &cli.Command{
	Name:      "delete",
	Usage:     "remove a staged tag and reclaim its unreferenced blobs",
	ArgsUsage: "REF",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("delete needs exactly one reference, got %d", c.NArg())
		}
		client, err := newClient(c)
		if err != nil {
			return err
		}
		defer client.Close()

		ref := c.Args().First()
		if err := client.Delete(c.Context, ref); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", ref)
		return nil
	},
}
