package site

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/contentx"
	"github.com/letmevibethatforyou/contentx/algolia"
	"github.com/letmevibethatforyou/contentx/fetch"
	"github.com/letmevibethatforyou/contentx/graph"
	"github.com/letmevibethatforyou/contentx/inmemory"
	"github.com/letmevibethatforyou/contentx/pipeline"
	"github.com/letmevibethatforyou/contentx/preview"
	"github.com/letmevibethatforyou/contentx/ranking"
	"github.com/urfave/cli/v2"
)

// Config is everything needed to assemble a content pipeline and a Server.
type Config struct {
	Env string

	GraphURL       string
	GraphSingleKey string
	GraphSecretARN string

	AlgoliaIndex     string
	AlgoliaSecretARN string
	AlgoliaAppID     string
	AlgoliaAPIKey    string

	FlagsTable      string
	Fixtures        string
	Locale          string
	CacheTTL        time.Duration
	PreviewDebounce time.Duration
	SessionTTL      time.Duration

	awsConfig func() (aws.Config, error)
}

// Flags returns the command line flags ConfigFromCLI reads.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Environment name used to look up secrets in AWS Secrets Manager",
			EnvVars: []string{"ENV", "ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "graph-url",
			Usage:   "Content graph GraphQL endpoint",
			EnvVars: []string{"GRAPH_URL"},
			Value:   graph.DefaultEndpoint,
		},
		&cli.StringFlag{
			Name:    "graph-single-key",
			Usage:   "Public single key for the content graph",
			EnvVars: []string{"GRAPH_SINGLE_KEY"},
		},
		&cli.StringFlag{
			Name:    "graph-secret-arn",
			Usage:   "ARN of AWS Secrets Manager secret containing the content graph key",
			EnvVars: []string{"GRAPH_SECRET_ARN"},
		},
		&cli.StringFlag{
			Name:    "algolia-index",
			Usage:   "Algolia index that answers search queries; empty searches the content graph",
			EnvVars: []string{"ALGOLIA_INDEX"},
		},
		&cli.StringFlag{
			Name:    "algolia-secret-arn",
			Usage:   "ARN of AWS Secrets Manager secret containing Algolia credentials",
			EnvVars: []string{"ALGOLIA_SECRET_ARN"},
		},
		&cli.StringFlag{
			Name:    "algolia-app-id",
			Usage:   "Algolia application ID",
			EnvVars: []string{"ALGOLIA_APP_ID"},
		},
		&cli.StringFlag{
			Name:    "algolia-api-key",
			Usage:   "Algolia API key",
			EnvVars: []string{"ALGOLIA_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "flags-table",
			Usage:   "DynamoDB table holding the search ranking flag; empty uses the default ranking",
			EnvVars: []string{"FLAGS_TABLE"},
		},
		&cli.StringFlag{
			Name:    "fixtures",
			Usage:   "YAML fixtures file served from memory instead of the content graph",
			EnvVars: []string{"FIXTURES"},
		},
		&cli.StringFlag{
			Name:    "locale",
			Usage:   "Locale of the site",
			EnvVars: []string{"LOCALE"},
			Value:   contentx.DefaultLocale,
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "How long cached query results are served before they are refetched; 0 keeps them",
			EnvVars: []string{"CACHE_TTL"},
			Value:   time.Minute,
		},
		&cli.DurationFlag{
			Name:    "preview-debounce",
			Usage:   "Quiet period after the last content save before a preview refetches",
			EnvVars: []string{"PREVIEW_DEBOUNCE"},
			Value:   preview.DefaultDebounce,
		},
		&cli.DurationFlag{
			Name:    "session-ttl",
			Usage:   "How long a rendered preview page may take to open its socket",
			EnvVars: []string{"PREVIEW_SESSION_TTL"},
			Value:   DefaultSessionTTL,
		},
	}
}

// ConfigFromCLI reads the flags returned by Flags.
func ConfigFromCLI(c *cli.Context) Config {
	ctx := c.Context
	return Config{
		Env:              strings.TrimSpace(c.String("env")),
		GraphURL:         strings.TrimSpace(c.String("graph-url")),
		GraphSingleKey:   strings.TrimSpace(c.String("graph-single-key")),
		GraphSecretARN:   strings.TrimSpace(c.String("graph-secret-arn")),
		AlgoliaIndex:     strings.TrimSpace(c.String("algolia-index")),
		AlgoliaSecretARN: strings.TrimSpace(c.String("algolia-secret-arn")),
		AlgoliaAppID:     strings.TrimSpace(c.String("algolia-app-id")),
		AlgoliaAPIKey:    strings.TrimSpace(c.String("algolia-api-key")),
		FlagsTable:       strings.TrimSpace(c.String("flags-table")),
		Fixtures:         strings.TrimSpace(c.String("fixtures")),
		Locale:           strings.TrimSpace(c.String("locale")),
		CacheTTL:         c.Duration("cache-ttl"),
		PreviewDebounce:  c.Duration("preview-debounce"),
		SessionTTL:       c.Duration("session-ttl"),
		awsConfig: sync.OnceValues(func() (aws.Config, error) {
			return config.LoadDefaultConfig(ctx)
		}),
	}
}

func (cfg Config) aws() (aws.Config, error) {
	if cfg.awsConfig == nil {
		return config.LoadDefaultConfig(context.Background())
	}
	return cfg.awsConfig()
}

// GraphSecrets picks the content graph credential strategy: a secret ARN,
// then the environment's secret path, then a static key, then GRAPH_SINGLE_KEY.
func (cfg Config) GraphSecrets(ctx context.Context) (graph.FetchSecrets, error) {
	switch {
	case cfg.GraphSecretARN != "":
		slog.InfoContext(ctx, "using AWS Secrets Manager for graph credentials", "secret_arn", cfg.GraphSecretARN)
		awsCfg, err := cfg.aws()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load AWS config")
		}
		return graph.AWSSecretsFromARN(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.GraphSecretARN), nil
	case cfg.Env != "":
		slog.InfoContext(ctx, "using AWS Secrets Manager for graph credentials", "environment", cfg.Env)
		awsCfg, err := cfg.aws()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load AWS config")
		}
		return graph.AWSSecrets(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.Env), nil
	case cfg.GraphSingleKey != "":
		return graph.StaticSecrets(cfg.GraphSingleKey), nil
	default:
		return graph.EnvSecrets(), nil
	}
}

// AlgoliaSecrets picks the Algolia credential strategy the same way
// GraphSecrets does.
func (cfg Config) AlgoliaSecrets(ctx context.Context) (algolia.FetchSecrets, error) {
	switch {
	case cfg.AlgoliaSecretARN != "":
		slog.InfoContext(ctx, "using AWS Secrets Manager for Algolia credentials", "secret_arn", cfg.AlgoliaSecretARN)
		awsCfg, err := cfg.aws()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load AWS config")
		}
		return algolia.AWSSecretsFromARN(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.AlgoliaSecretARN), nil
	case cfg.Env != "":
		slog.InfoContext(ctx, "using AWS Secrets Manager for Algolia credentials", "environment", cfg.Env)
		awsCfg, err := cfg.aws()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load AWS config")
		}
		return algolia.AWSSecrets(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.Env), nil
	case cfg.AlgoliaAppID != "" && cfg.AlgoliaAPIKey != "":
		return algolia.StaticSecrets(cfg.AlgoliaAppID, cfg.AlgoliaAPIKey), nil
	default:
		return algolia.EnvSecrets(), nil
	}
}

// Source returns the executor that answers content queries: the fixtures
// store when Fixtures is set, the content graph otherwise.
func (cfg Config) Source(ctx context.Context, logger *slog.Logger) (contentx.Executor, error) {
	if cfg.Fixtures != "" {
		store := inmemory.New()
		if err := store.LoadFile(cfg.Fixtures); err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "serving content from fixtures", "path", cfg.Fixtures, "documents", store.Size())
		return store, nil
	}

	fetchSecrets, err := cfg.GraphSecrets(ctx)
	if err != nil {
		return nil, err
	}
	return graph.NewClient(cfg.GraphURL, fetchSecrets, graph.WithLogger(logger)), nil
}

// Executor returns Source, with search queries answered by Algolia when
// AlgoliaIndex is set.
func (cfg Config) Executor(ctx context.Context, logger *slog.Logger) (contentx.Executor, error) {
	source, err := cfg.Source(ctx, logger)
	if err != nil {
		return nil, err
	}
	if cfg.AlgoliaIndex == "" {
		return source, nil
	}

	fetchSecrets, err := cfg.AlgoliaSecrets(ctx)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "searching with Algolia", "index", cfg.AlgoliaIndex)
	return algolia.NewExecutor(algolia.NewClient(fetchSecrets), cfg.AlgoliaIndex,
		algolia.WithNext(source),
		algolia.WithLogger(logger),
	), nil
}

// Decider returns the ranking decider: the DynamoDB flag store when
// FlagsTable is set, nil otherwise.
func (cfg Config) Decider(ctx context.Context) (ranking.Decider, error) {
	if cfg.FlagsTable == "" {
		return nil, nil
	}
	awsCfg, err := cfg.aws()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	slog.InfoContext(ctx, "reading ranking flag from DynamoDB", "table", cfg.FlagsTable)
	return ranking.NewDynamoDB(dynamodb.NewFromConfig(awsCfg), cfg.FlagsTable), nil
}

// Pipeline assembles the content pipeline. Fetches are recorded in metrics
// when it is not nil.
func (cfg Config) Pipeline(ctx context.Context, metrics *Metrics, logger *slog.Logger) (*pipeline.Pipeline, error) {
	exec, err := cfg.Executor(ctx, logger)
	if err != nil {
		return nil, err
	}
	decider, err := cfg.Decider(ctx)
	if err != nil {
		return nil, err
	}

	fetchOpts := []fetch.Option{
		fetch.WithCache(fetch.NewCache(cfg.CacheTTL)),
		fetch.WithLogger(logger),
		fetch.WithPrivate(graph.HasBearerToken),
	}
	if metrics != nil {
		fetchOpts = append(fetchOpts, fetch.WithObserver(metrics.ObserveFetch))
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if decider != nil {
		opts = append(opts, pipeline.WithDecider(decider))
	}
	if cfg.Locale != "" {
		opts = append(opts, pipeline.WithLocale(cfg.Locale))
	}
	return pipeline.New(fetch.New(exec, fetchOpts...), opts...), nil
}

// Server assembles a Server over a new pipeline.
func (cfg Config) Server(ctx context.Context, logger *slog.Logger) (*Server, error) {
	metrics := NewMetrics("contentx")
	p, err := cfg.Pipeline(ctx, metrics, logger)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithMetrics(metrics), WithLogger(logger)}
	if cfg.PreviewDebounce > 0 {
		opts = append(opts, WithPreviewOptions(preview.WithDebounce(cfg.PreviewDebounce)))
	}
	if cfg.SessionTTL > 0 {
		opts = append(opts, WithSessionTTL(cfg.SessionTTL))
	}
	return New(p, opts...), nil
}
