package command

import (
	"fmt"

	cli "github.com/urfave/cli/v2"
)

var listCommand = &cli.Command{
	Name:      "list",
	Usage:     "show a staged image's manifest digest, blobs and sizes",
	ArgsUsage: "REF",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("list needs exactly one reference, got %d", c.NArg())
		}
		client, err := newClient(c)
		if err != nil {
			return err
		}
		defer client.Close()

		l, err := client.List(c.Context, c.Args().First())
		if err != nil {
			return err
		}

		fmt.Printf("%s  %s\n", l.Ref, l.ManifestDigest)
		fmt.Printf("  media type  %s\n", l.MediaType)
		fmt.Printf("  config      %s  %s\n", l.Config.Digest, formatSize(l.Config.Size))
		for _, layer := range l.Layers {
			fmt.Printf("  layer       %s  %s\n", layer.Digest, formatSize(layer.Size))
		}
		fmt.Printf("  total       %s\n", formatSize(l.TotalSize))
		return nil
	},
}
