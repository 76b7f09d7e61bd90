package algolia

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/contentx"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of objects sent per save request.
const DefaultBatchSize = 500

// BatchSaver saves objects in batches. Client implements it.
type BatchSaver interface {
	SaveObjects(ctx context.Context, indexName string, objects []Object) error
}

// IndexOptions controls IndexBlocks.
type IndexOptions struct {
	BatchSize   int
	Concurrency int
	Logger      *slog.Logger
}

// IndexBlocks converts blocks into objects and saves them to indexName in
// concurrent batches. Blocks without a key are skipped. It returns the
// number of objects saved.
func IndexBlocks(ctx context.Context, saver BatchSaver, indexName string, blocks []contentx.Block, opts IndexOptions) (int, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	objects := make([]Object, 0, len(blocks))
	for _, b := range blocks {
		object, err := ObjectFromBlock(b)
		if err != nil {
			opts.Logger.WarnContext(ctx, "skipping block", "type", b.TypeName(), "error", err)
			continue
		}
		objects = append(objects, object)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for start := 0; start < len(objects); start += opts.BatchSize {
		batch := objects[start:min(start+opts.BatchSize, len(objects))]
		g.Go(func() error {
			if err := saver.SaveObjects(gctx, indexName, batch); err != nil {
				return errors.Wrapf(err, "failed to save batch starting at %d", start)
			}
			opts.Logger.InfoContext(gctx, "saved batch", "index", indexName, "offset", start, "count", len(batch))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(objects), nil
}
