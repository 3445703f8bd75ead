// Package staging uploads draft assets to the object store and removes them
// again. Removal is idempotent: an object that is already gone counts as removed.
package staging

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/debemdeboas/memories/internal/metrics"
	"github.com/debemdeboas/memories/internal/model"
	"github.com/debemdeboas/memories/internal/objectstore"
)

var stagingLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	stagingLogger = l
}

// Result is the outcome of one delete inside a batch.
type Result struct {
	RemoteID string
	Err      error
}

type Client struct {
	store objectstore.Store

	parallelism    int
	removeAttempts int
	newBackOff     func() backoff.BackOff
}

type Option func(*Client)

// WithParallelism caps the number of concurrent deletes in UnstageMany.
func WithParallelism(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithRemoveAttempts sets how many times Remove tries before giving up.
func WithRemoveAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.removeAttempts = n
		}
	}
}

func NewClient(store objectstore.Store, opts ...Option) *Client {
	c := &Client{
		store:          store,
		parallelism:    4,
		removeAttempts: 3,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			bo.MaxInterval = 2 * time.Second
			return bo
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stage uploads one asset. The caller appends the returned asset to its draft.
func (c *Client) Stage(ctx context.Context, u objectstore.Upload) (model.StagedAsset, error) {
	obj, err := c.store.Upload(ctx, u)
	if err != nil {
		metrics.StagedAssetsTotal.WithLabelValues("error").Inc()
		return model.StagedAsset{}, &UploadError{Name: u.Name, Err: err}
	}

	metrics.StagedAssetsTotal.WithLabelValues("ok").Inc()
	stagingLogger.Debug().Str("remote_id", obj.RemoteID).Str("name", u.Name).Msg("Asset staged")

	return model.StagedAsset{RemoteID: obj.RemoteID, URL: obj.URL}, nil
}

// Unstage deletes one staged asset. Deleting an asset that no longer exists succeeds.
func (c *Client) Unstage(ctx context.Context, remoteID string) error {
	err := c.store.Delete(ctx, remoteID, objectstore.DeleteOptions{InvalidateCache: true})
	switch {
	case err == nil:
		metrics.UnstagedAssetsTotal.WithLabelValues("ok").Inc()
		return nil
	case errors.Is(err, objectstore.ErrNotFound):
		metrics.UnstagedAssetsTotal.WithLabelValues("missing").Inc()
		stagingLogger.Debug().Str("remote_id", remoteID).Msg("Asset already gone")
		return nil
	default:
		metrics.UnstagedAssetsTotal.WithLabelValues("error").Inc()
		return &DeleteError{RemoteID: remoteID, Err: err}
	}
}

// UnstageMany fans out one delete per id. Results keep the input order and a
// failure never stops the rest of the batch.
func (c *Client) UnstageMany(ctx context.Context, remoteIDs []string) []Result {
	results := make([]Result, len(remoteIDs))

	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for i, id := range remoteIDs {
		g.Go(func() error {
			results[i] = Result{RemoteID: id, Err: c.Unstage(ctx, id)}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Remove is the user-initiated single removal. It retries Unstage with
// exponential backoff and returns the last DeleteError when every attempt fails.
func (c *Client) Remove(ctx context.Context, remoteID string) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(c.newBackOff(), uint64(c.removeAttempts-1)),
		ctx,
	)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := c.Unstage(ctx, remoteID)
		if err != nil {
			stagingLogger.Warn().
				Err(err).
				Str("remote_id", remoteID).
				Int("attempt", attempt).
				Msg("Asset removal failed")
		}
		return err
	}, bo)
	if err == nil {
		return nil
	}

	var delErr *DeleteError
	if errors.As(err, &delErr) {
		return delErr
	}
	return &DeleteError{RemoteID: remoteID, Err: err}
}
