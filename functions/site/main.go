package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"github.com/letmevibethatforyou/contentx/internal/site"
	"github.com/urfave/cli/v2"
)

// Handler serves API Gateway HTTP API requests through the site router.
type Handler struct {
	adapter *chiadapter.ChiLambdaV2
}

// NewHandler wraps the router of server.
func NewHandler(server *site.Server) *Handler {
	router := chi.NewRouter()
	router.Mount("/", server.Handler())
	return &Handler{adapter: chiadapter.NewV2(router)}
}

// HandleRequest implements the Lambda handler.
func (h *Handler) HandleRequest(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return h.adapter.ProxyWithContextV2(ctx, req)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	app := &cli.App{
		Name:   "site-function",
		Usage:  "Serve content pages from AWS Lambda",
		Flags:  site.Flags(),
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func runAction(c *cli.Context) error {
	ctx := c.Context
	cfg := site.ConfigFromCLI(c)

	server, err := cfg.Server(ctx, slog.Default())
	if err != nil {
		return err
	}
	handler := NewHandler(server)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		slog.InfoContext(ctx, "Running in Lambda environment")
		lambda.Start(handler.HandleRequest)
	} else {
		slog.InfoContext(ctx, "Function cannot run outside of AWS Lambda environment")
	}

	return nil
}
