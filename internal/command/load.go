package command

import (
	"fmt"

	cli "github.com/urfave/cli/v2"
)

var loadCommand = &cli.Command{
	Name:      "load",
	Usage:     "apply a delta archive to the registry and verify the image serves",
	ArgsUsage: "ARCHIVE",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("load needs exactly one archive path, got %d", c.NArg())
		}
		client, err := newClient(c)
		if err != nil {
			return err
		}
		defer client.Close()

		res, err := client.Load(c.Context, c.Args().First())
		if err != nil {
			return err
		}

		fmt.Printf("loaded %s (%s)\n", res.Ref, res.ManifestDigest)
		fmt.Printf("  %d blobs written, %d already present, via %s\n", res.Uploaded, res.Skipped, res.Transport)
		return nil
	},
}
