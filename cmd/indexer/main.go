package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/letmevibethatforyou/contentx"
	"github.com/letmevibethatforyou/contentx/algolia"
	"github.com/letmevibethatforyou/contentx/internal/site"
	"github.com/urfave/cli/v2"
)

func main() {
	// Configure JSON logging for AWS environments
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	app := &cli.App{
		Name:  "indexer",
		Usage: "Copy city blocks from the content source into an Algolia index",
		Flags: site.Flags(),
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Save every city block to the index",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of objects per save request",
						Value: algolia.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of save requests in flight",
						Value: 4,
					},
				},
				Action: syncAction,
			},
			{
				Name:      "put",
				Usage:     "Save one city block by key",
				ArgsUsage: "<key>",
				Action:    putAction,
			},
			{
				Name:      "delete",
				Usage:     "Remove objects from the index",
				ArgsUsage: "<block key>...",
				Action:    deleteAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func indexName(c *cli.Context) (string, error) {
	name := strings.TrimSpace(c.String("algolia-index"))
	if name == "" {
		return "", fmt.Errorf("algolia-index is required")
	}
	return name, nil
}

func client(c *cli.Context) (*algolia.Client, error) {
	fetchSecrets, err := site.ConfigFromCLI(c).AlgoliaSecrets(c.Context)
	if err != nil {
		return nil, err
	}
	return algolia.NewClient(fetchSecrets), nil
}

// cities reads the city list from the configured content source.
func cities(c *cli.Context) ([]contentx.Block, error) {
	ctx := c.Context
	source, err := site.ConfigFromCLI(c).Source(ctx, slog.Default())
	if err != nil {
		return nil, err
	}

	raw, err := source.Execute(ctx, contentx.CitiesQuery, contentx.Variables{})
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	if raw == nil || raw.Contents == nil {
		return nil, nil
	}
	return raw.Contents.Items, nil
}

func syncAction(c *cli.Context) error {
	ctx := c.Context
	index, err := indexName(c)
	if err != nil {
		return err
	}
	ac, err := client(c)
	if err != nil {
		return err
	}

	blocks, err := cities(c)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Starting index sync", "index", index, "blocks", len(blocks))

	n, err := algolia.IndexBlocks(ctx, ac, index, blocks, algolia.IndexOptions{
		BatchSize:   c.Int("batch-size"),
		Concurrency: c.Int("concurrency"),
	})
	if err != nil {
		return fmt.Errorf("failed to sync index %s: %w", index, err)
	}

	slog.InfoContext(ctx, "Successfully synced index", "index", index, "count", n)
	return nil
}

func putAction(c *cli.Context) error {
	ctx := c.Context
	key := strings.TrimSpace(c.Args().First())
	if key == "" {
		return fmt.Errorf("key is required")
	}
	index, err := indexName(c)
	if err != nil {
		return err
	}
	ac, err := client(c)
	if err != nil {
		return err
	}

	blocks, err := cities(c)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if b.BlockKey() != key {
			continue
		}
		slog.InfoContext(ctx, "Saving block to Algolia", "key", key, "index", index)
		return ac.SaveBlock(ctx, index, b)
	}
	return fmt.Errorf("no city block with key %s", key)
}

func deleteAction(c *cli.Context) error {
	ctx := c.Context
	ids := c.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("at least one block key is required")
	}
	index, err := indexName(c)
	if err != nil {
		return err
	}
	ac, err := client(c)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Deleting blocks from Algolia", "index", index, "count", len(ids))
	return ac.DeleteBlocks(ctx, index, ids)
}
