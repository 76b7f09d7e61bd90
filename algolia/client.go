// Package algolia serves content search from an Algolia index and keeps
// that index filled with content blocks.
package algolia

import (
	"context"
	"sync"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"
	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/contentx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client is a lazily connected Algolia client. Credentials are fetched on
// first use.
type Client struct {
	getClient func() (*search.Client, error)
	tracer    trace.Tracer
}

// NewClient creates a Client.
func NewClient(fetchSecrets FetchSecrets) *Client {
	getClient := sync.OnceValues(func() (*search.Client, error) {
		secrets, err := fetchSecrets()
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch secrets")
		}
		if secrets.AppID == "" {
			return nil, errors.New("AppID is empty")
		}
		if secrets.WriteApiKey == "" {
			return nil, errors.New("WriteApiKey is empty")
		}
		return search.NewClient(secrets.AppID, secrets.WriteApiKey), nil
	})

	return &Client{
		getClient: getClient,
		tracer:    otel.Tracer("contentx-algolia"),
	}
}

// withIndex runs fn against indexName inside a span named op.
func (c *Client) withIndex(ctx context.Context, op, indexName string, fn func(ctx context.Context, span trace.Span, index *search.Index) error, attrs ...attribute.KeyValue) error {
	ctx, span := c.tracer.Start(ctx, "algolia."+op,
		trace.WithAttributes(append(attrs, attribute.String("algolia.index_name", indexName))...),
	)
	defer span.End()

	client, err := c.getClient()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Algolia client")
		return err
	}

	if err := fn(ctx, span, client.InitIndex(indexName)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		return errors.Wrapf(err, "algolia %s on index %s", op, indexName)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// SaveBlock stores b in indexName under its block key.
func (c *Client) SaveBlock(ctx context.Context, indexName string, b contentx.Block) error {
	object, err := ObjectFromBlock(b)
	if err != nil {
		return err
	}
	return c.withIndex(ctx, "save_block", indexName, func(ctx context.Context, _ trace.Span, index *search.Index) error {
		_, err := index.SaveObject(object, ctx)
		return err
	}, attribute.String("algolia.object_id", object.ID()), attribute.String("content.type", b.TypeName()))
}

// SaveObjects stores objects in indexName in one request.
func (c *Client) SaveObjects(ctx context.Context, indexName string, objects []Object) error {
	if len(objects) == 0 {
		return nil
	}
	return c.withIndex(ctx, "save_objects", indexName, func(ctx context.Context, _ trace.Span, index *search.Index) error {
		_, err := index.SaveObjects(objects, ctx)
		return err
	}, attribute.Int("algolia.object_count", len(objects)))
}

// DeleteBlocks removes the objects stored under the given block keys.
func (c *Client) DeleteBlocks(ctx context.Context, indexName string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.withIndex(ctx, "delete_blocks", indexName, func(ctx context.Context, _ trace.Span, index *search.Index) error {
		_, err := index.DeleteObjects(keys, ctx)
		return err
	}, attribute.StringSlice("algolia.object_ids", keys))
}

// Search runs query against indexName and returns the hits.
func (c *Client) Search(ctx context.Context, indexName, query string, params ...interface{}) ([]Object, error) {
	var hits []Object
	err := c.withIndex(ctx, "search", indexName, func(ctx context.Context, span trace.Span, index *search.Index) error {
		res, err := index.Search(query, append(params, ctx)...)
		if err != nil {
			return err
		}
		hits = make([]Object, 0, len(res.Hits))
		for _, h := range res.Hits {
			hits = append(hits, h)
		}
		span.SetAttributes(attribute.Int("algolia.hit_count", len(hits)))
		return nil
	}, attribute.String("algolia.query", query))
	return hits, err
}
