package command

import (
	"fmt"

	cli "github.com/urfave/cli/v2"

	"github.com/meigma/regdelta"
	"github.com/meigma/regdelta/upstream"
)

var seedCommand = &cli.Command{
	Name:      "seed",
	Usage:     "fetch upstream images into the staging registry",
	ArgsUsage: "REF...",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "docker-config",
			Usage: "authenticate upstream pulls with the local Docker credential store",
		},
		&cli.BoolFlag{
			Name:  "plain-http",
			Usage: "talk to upstream registries over plain HTTP",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("seed needs at least one upstream reference, e.g. docker.io/library/alpine:3.20")
		}

		upOpts := []upstream.Option{upstream.WithLogger(newLogger(c.Bool("verbose")))}
		if c.Bool("docker-config") {
			upOpts = append(upOpts, upstream.WithDockerConfig())
		} else {
			upOpts = append(upOpts, upstream.WithAnonymous())
		}
		if c.Bool("plain-http") {
			upOpts = append(upOpts, upstream.WithPlainHTTP(true))
		}

		client, err := newClient(c, regdelta.WithUpstream(upstream.New(upOpts...)))
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Seed(c.Context, c.Args().Slice()...); err != nil {
			return err
		}
		fmt.Printf("seeded %d image(s)\n", c.NArg())
		return nil
	},
}
