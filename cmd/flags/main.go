package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/letmevibethatforyou/contentx"
	"github.com/letmevibethatforyou/contentx/internal/ddb"
	"github.com/letmevibethatforyou/contentx/ranking"
	"github.com/urfave/cli/v2"
)

func main() {
	// Configure JSON logging for AWS environments
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	app := &cli.App{
		Name:  "flags",
		Usage: "Manage the search ranking flag stored in DynamoDB",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "table-name",
				Aliases:  []string{"t"},
				Usage:    "DynamoDB table holding flag records",
				EnvVars:  []string{"FLAGS_TABLE"},
				Required: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Give every visitor the same ranking",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "ranking",
						Usage: "SEMANTIC or RELEVANCE",
						Value: string(contentx.RankingSemantic),
					},
					&cli.Float64Flag{
						Name:  "semantic-weight",
						Usage: "Weight of the semantic score; ignored for RELEVANCE",
						Value: contentx.DefaultSemanticWeight,
					},
				},
				Action: setAction,
			},
			{
				Name:      "split",
				Usage:     "Split visitors between rankings",
				ArgsUsage: "<RANKING[:weight]=share>...",
				Action:    splitAction,
			},
			{
				Name:  "show",
				Usage: "Print the ranking a visitor gets",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "visitor",
						Usage: "Visitor id",
					},
				},
				Action: showAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func store(c *cli.Context) (*ranking.DynamoDB, error) {
	cfg, err := config.LoadDefaultConfig(c.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return ranking.NewDynamoDB(dynamodb.NewFromConfig(cfg), c.String("table-name")), nil
}

func setAction(c *cli.Context) error {
	ctx := c.Context
	o, err := parseOrderBy(c.String("ranking"), c.Float64("semantic-weight"))
	if err != nil {
		return err
	}
	s, err := store(c)
	if err != nil {
		return err
	}

	revision, err := s.PutOrderBy(ctx, o)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Successfully stored ranking flag", "ranking", o.Ranking, "revision", revision)
	return nil
}

func splitAction(c *cli.Context) error {
	ctx := c.Context
	if c.NArg() == 0 {
		return fmt.Errorf("at least one variation is required")
	}

	variations := make([]ddb.Variation, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		v, err := parseVariation(arg)
		if err != nil {
			return err
		}
		variations = append(variations, v)
	}

	s, err := store(c)
	if err != nil {
		return err
	}
	revision, err := s.Put(ctx, ddb.FlagRecord{Key: ranking.FlagKey, Enabled: true, Variations: variations})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Successfully stored ranking split", "variations", len(variations), "revision", revision)
	return nil
}

func showAction(c *cli.Context) error {
	s, err := store(c)
	if err != nil {
		return err
	}

	o := ranking.OrderBy(c.Context, s, c.String("visitor"), slog.Default())
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ranking: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func parseOrderBy(name string, weight float64) (contentx.OrderBy, error) {
	switch r := contentx.Ranking(strings.ToUpper(strings.TrimSpace(name))); r {
	case contentx.RankingSemantic:
		if weight < 0 || weight > 1 {
			return contentx.OrderBy{}, fmt.Errorf("semantic weight must be between 0 and 1: %v", weight)
		}
		return contentx.OrderBy{Ranking: r, SemanticWeight: &weight}, nil
	case contentx.RankingRelevance:
		return contentx.OrderBy{Ranking: r}, nil
	default:
		return contentx.OrderBy{}, fmt.Errorf("unknown ranking %q", name)
	}
}

// parseVariation reads RANKING[:weight]=share.
func parseVariation(arg string) (ddb.Variation, error) {
	arm, shareText, ok := strings.Cut(arg, "=")
	if !ok {
		return ddb.Variation{}, fmt.Errorf("variation must be in RANKING[:weight]=share format: %q", arg)
	}
	share, err := strconv.Atoi(strings.TrimSpace(shareText))
	if err != nil || share <= 0 {
		return ddb.Variation{}, fmt.Errorf("share must be a positive integer: %q", arg)
	}

	name, weightText, hasWeight := strings.Cut(arm, ":")
	weight := contentx.DefaultSemanticWeight
	if hasWeight {
		weight, err = strconv.ParseFloat(strings.TrimSpace(weightText), 64)
		if err != nil {
			return ddb.Variation{}, fmt.Errorf("invalid semantic weight in %q: %w", arg, err)
		}
	}

	o, err := parseOrderBy(name, weight)
	if err != nil {
		return ddb.Variation{}, err
	}
	v := map[string]any{"_ranking": string(o.Ranking)}
	if o.SemanticWeight != nil {
		v["_semanticWeight"] = *o.SemanticWeight
	}
	return ddb.Variation{
		Key:       strings.ToLower(arm),
		Weight:    share,
		Variables: map[string]any{ranking.VariableKey: v},
	}, nil
}
