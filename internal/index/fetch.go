package index

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Fetch resolves ids to records with get, running at most
// Env.FetchConcurrency reads at once. Order follows ids. Ids whose record is
// missing are stale index entries: they are dropped and logged with source,
// the index key they came from.
func Fetch[T any](ctx context.Context, env *Env, source string, ids []string, get func(ctx context.Context, id string) (*T, error)) ([]*T, error) {
	found := make([]*T, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(env.fetchLimit())
	for i, id := range ids {
		g.Go(func() error {
			rec, err := get(gctx, id)
			if err != nil {
				return err
			}
			found[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(ids))
	for i, rec := range found {
		if rec == nil {
			env.Log.Warn(ctx, "stale index entry", "key", source, "id", ids[i])
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
