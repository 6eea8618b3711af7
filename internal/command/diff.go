package command

import (
	"fmt"

	cli "github.com/urfave/cli/v2"

	"github.com/meigma/regdelta"
)

var diffCommand = &cli.Command{
	Name:      "diff",
	Usage:     "package the blobs TARGET carries beyond BASE into a delta archive",
	ArgsUsage: "BASE TARGET",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "archive `PATH` (default <repository>-<tag>.tar.gz)",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return fmt.Errorf("diff needs exactly two references, got %d", c.NArg())
		}
		client, err := newClient(c)
		if err != nil {
			return err
		}
		defer client.Close()

		var opts []regdelta.DiffOption
		if out := c.String("output"); out != "" {
			opts = append(opts, regdelta.DiffWithOutput(out))
		}

		res, err := client.Diff(c.Context, c.Args().Get(0), c.Args().Get(1), opts...)
		if err != nil {
			return err
		}

		fmt.Printf("wrote %s\n", res.ArchivePath)
		fmt.Printf("  target   %s (%s)\n", res.Target, res.ManifestDigest)
		fmt.Printf("  carries  %d blobs, %s\n", res.BlobCount, formatSize(res.BlobBytes))
		fmt.Printf("  shared   %d blobs already in %s\n", res.SharedCount, res.Base)
		return nil
	},
}
