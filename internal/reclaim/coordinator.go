// Package reclaim deletes the staged assets of abandoned drafts. It never
// reports failures to its callers: whoever abandoned the draft is gone.
package reclaim

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/memories/internal/draft"
	"github.com/debemdeboas/memories/internal/metrics"
	"github.com/debemdeboas/memories/internal/staging"
)

var reclaimLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	reclaimLogger = l
}

type Unstager interface {
	UnstageMany(ctx context.Context, remoteIDs []string) []staging.Result
}

// Reclaimable is a draft that can hand over its staged assets once.
type Reclaimable interface {
	ID() draft.ID
	TakeReclaimable() []string
}

type Coordinator struct {
	staging Unstager

	waitBound       time.Duration
	dispatchTimeout time.Duration

	wg sync.WaitGroup
}

// NewCoordinator builds a coordinator. waitBound caps how long Await holds a
// user on the discard action; dispatchTimeout caps every background batch.
func NewCoordinator(s Unstager, waitBound, dispatchTimeout time.Duration) *Coordinator {
	return &Coordinator{
		staging:         s,
		waitBound:       waitBound,
		dispatchTimeout: dispatchTimeout,
	}
}

// Reclaim issues one delete batch for every asset the draft still stages. It
// is a no-op for a bound draft, an empty draft, or a draft already reclaimed,
// which makes concurrent and repeated calls safe.
func (c *Coordinator) Reclaim(ctx context.Context, r Reclaimable) {
	ids := r.TakeReclaimable()
	if len(ids) == 0 {
		reclaimLogger.Debug().Str("draft_id", string(r.ID())).Msg("Nothing to reclaim")
		return
	}
	c.sweep(ctx, r.ID(), ids)
}

// Await reclaims in the background and waits for the batch at most waitBound.
// It reports whether the batch finished in time; the batch keeps running
// either way.
func (c *Coordinator) Await(r Reclaimable) bool {
	h, ok := take(r)
	if !ok {
		return true
	}

	done := make(chan struct{})
	c.goDetached(func(ctx context.Context) {
		defer close(done)
		c.Reclaim(ctx, h)
	})

	timer := time.NewTimer(c.waitBound)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		reclaimLogger.Warn().
			Str("draft_id", string(r.ID())).
			Dur("wait_bound", c.waitBound).
			Msg("Reclaim still running, releasing the user")
		return false
	}
}

// Dispatch is the last-gasp path: the assets are taken from the draft now and
// deleted in the background. Nothing observes the outcome.
func (c *Coordinator) Dispatch(r Reclaimable) {
	h, ok := take(r)
	if !ok {
		return
	}
	c.goDetached(func(ctx context.Context) {
		c.Reclaim(ctx, h)
	})
}

// Release deletes ids that were detached from a draft and are referenced by
// nothing, in the background.
func (c *Coordinator) Release(id draft.ID, remoteIDs []string) {
	if len(remoteIDs) == 0 {
		return
	}
	h := &handoff{id: id, ids: remoteIDs}
	c.goDetached(func(ctx context.Context) {
		c.Reclaim(ctx, h)
	})
}

// handoff carries ids already taken from a draft into a background Reclaim.
type handoff struct {
	id  draft.ID
	ids []string
}

func (h *handoff) ID() draft.ID { return h.id }

func (h *handoff) TakeReclaimable() []string {
	ids := h.ids
	h.ids = nil
	return ids
}

func take(r Reclaimable) (*handoff, bool) {
	ids := r.TakeReclaimable()
	if len(ids) == 0 {
		return nil, false
	}
	return &handoff{id: r.ID(), ids: ids}, true
}

// Wait blocks until every background batch has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) goDetached(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.dispatchTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (c *Coordinator) sweep(ctx context.Context, id draft.ID, remoteIDs []string) {
	metrics.ReclaimBatchesTotal.Inc()

	failed := 0
	for _, res := range c.staging.UnstageMany(ctx, remoteIDs) {
		if res.Err != nil {
			failed++
			reclaimLogger.Warn().
				Err(res.Err).
				Str("draft_id", string(id)).
				Str("remote_id", res.RemoteID).
				Msg("Failed to reclaim asset")
		}
	}

	reclaimLogger.Info().
		Str("draft_id", string(id)).
		Int("assets", len(remoteIDs)).
		Int("failed", failed).
		Msg("Reclaimed draft assets")
}
