package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/letmevibethatforyou/contentx"
	"github.com/letmevibethatforyou/contentx/graph"
	"github.com/letmevibethatforyou/contentx/internal/site"
	"github.com/letmevibethatforyou/contentx/pipeline"
	"github.com/letmevibethatforyou/contentx/render"
	"github.com/urfave/cli/v2"
)

const defaultTimeout = 10 * time.Second

func main() {
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "Request path to resolve, e.g. /en/paris or /search?query=beach; positional arg is a fallback",
		},
		&cli.StringFlag{
			Name:  "preview-token",
			Usage: "Editor token used instead of the single key",
		},
		&cli.StringFlag{
			Name:  "visitor",
			Usage: "Visitor id the ranking decision is made for",
		},
		&cli.BoolFlag{
			Name:  "html",
			Usage: "Print the rendered content instead of the plan",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout for the content query",
			Value: defaultTimeout,
		},
	}, site.Flags()...)

	app := &cli.App{
		Name:   "query",
		Usage:  "Resolve a request path into normalized content and a render plan",
		Flags:  flags,
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func runAction(c *cli.Context) error {
	ctx := c.Context

	path := strings.TrimSpace(c.String("path"))
	if path == "" && c.NArg() > 0 {
		path = strings.TrimSpace(c.Args().First())
	}
	if path == "" {
		return fmt.Errorf("path is required")
	}
	u, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}

	timeout := c.Duration("timeout")
	if timeout <= 0 {
		slog.WarnContext(ctx, "timeout must be positive; using default", "timeout", timeout, "default", defaultTimeout)
		timeout = defaultTimeout
	}

	p, err := site.ConfigFromCLI(c).Pipeline(ctx, nil, slog.Default())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	token := strings.TrimSpace(c.String("preview-token"))
	if token != "" {
		ctx = graph.WithBearerToken(ctx, token)
	}

	req := pipeline.Request{
		Params:    site.ParseRoute(u),
		InEditor:  token != "",
		VisitorID: c.String("visitor"),
	}

	slog.InfoContext(ctx, "resolving path", "path", path, "mode", req.Params.Mode().String(), "timeout", timeout)

	res := p.Resolve(ctx, req)
	if res.Err != nil {
		return fmt.Errorf("query failed: %w", res.Err)
	}

	if c.Bool("html") {
		return render.Content(os.Stdout, p.PageData(res, false))
	}
	return printResult(p, res)
}

type unitOutput struct {
	Key         string `json:"key"`
	Grid        string `json:"grid,omitempty"`
	Row         string `json:"row,omitempty"`
	Column      string `json:"column,omitempty"`
	TypeName    string `json:"typename"`
	Implemented bool   `json:"implemented"`
}

func printResult(p *pipeline.Pipeline, res pipeline.Result) error {
	units := make([]unitOutput, 0, res.Plan.Len())
	for leaf := range res.Plan.Leaves() {
		typeName := leaf.TypeName()
		units = append(units, unitOutput{
			Key:         leaf.Key,
			Grid:        leaf.Grid,
			Row:         leaf.Row,
			Column:      leaf.Column,
			TypeName:    typeName,
			Implemented: p.Dispatcher().Has(typeName),
		})
	}

	payload := struct {
		Mode       string                    `json:"mode"`
		Query      string                    `json:"query"`
		Variables  contentx.Variables        `json:"variables"`
		Title      string                    `json:"title,omitempty"`
		Empty      bool                      `json:"empty"`
		Normalized contentx.NormalizedResult `json:"normalized"`
		Plan       []unitOutput              `json:"plan"`
	}{
		Mode:       res.Mode.String(),
		Query:      res.Query.Name,
		Variables:  res.Variables,
		Title:      pipeline.Title(res.Normalized),
		Empty:      res.Normalized.Empty(),
		Normalized: res.Normalized,
		Plan:       units,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	fmt.Println(string(data))
	return nil
}
