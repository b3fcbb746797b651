package engine

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"xdao.co/pixzle/compliance"
)

// Options controls engine behavior. The zero value is usable: permissive
// restores, GOMAXPROCS workers, slog.Default logging.
type Options struct {
	Logger  *slog.Logger
	Workers int

	// RecordFragmentCIDs stores each fragment's CID in the manifest.
	RecordFragmentCIDs bool

	// Mode selects fail-soft (Permissive) or fail-closed (Strict) restores.
	Mode compliance.ComplianceMode

	// ManifestID and Now override the generated manifest id and timestamp.
	ManifestID string
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

func (o Options) strict() bool { return o.Mode == compliance.Strict }

// forEach runs fn for every index in [0, n) on at most workers goroutines.
// The first error cancels the shared context and is returned; fn must only
// write to its own index.
func forEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i)
		})
	}
	return g.Wait()
}
