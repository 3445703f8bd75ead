// Package bind turns a draft into a persisted memory record. A successful
// bind is the only point where staged assets stop being reclaimable.
package bind

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/memories/internal/draft"
	"github.com/debemdeboas/memories/internal/metrics"
	"github.com/debemdeboas/memories/internal/model"
	"github.com/debemdeboas/memories/internal/reclaim"
)

var bindLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	bindLogger = l
}

// ErrFinalizeInFlight is returned when a second finalize arrives for a draft
// whose first finalize has not returned yet.
var ErrFinalizeInFlight = errors.New("finalize already in progress")

type RecordStore interface {
	CreateMemory(ctx context.Context, m model.NewMemory) (*model.Memory, error)
}

// RecordStoreError wraps a failed create-record call. The draft stays
// editable and its assets stay staged, so the user can retry.
type RecordStoreError struct {
	Err error
}

func (e *RecordStoreError) Error() string {
	return fmt.Sprintf("failed to save memory: %v", e.Err)
}

func (e *RecordStoreError) Unwrap() error {
	return e.Err
}

// Reclaimer is the part of the reclaim coordinator bind needs.
type Reclaimer interface {
	Dispatch(r reclaim.Reclaimable)
	Release(id draft.ID, remoteIDs []string)
}

type Coordinator struct {
	records   RecordStore
	reclaimer Reclaimer

	inFlight sync.Map // draft.ID -> *sync.Mutex
}

func NewCoordinator(records RecordStore, reclaimer Reclaimer) *Coordinator {
	return &Coordinator{records: records, reclaimer: reclaimer}
}

// Finalize validates the draft and creates the memory record with the staged
// asset URLs in draft order. Validation failures return a
// *draft.ValidationError before any network call.
//
// On success the draft is bound and unconfirmed removals are released. On a
// record store failure the draft returns to editable, unless it was abandoned
// meanwhile, in which case its assets are reclaimed at once.
func (c *Coordinator) Finalize(ctx context.Context, d *draft.State, owner model.UserID) (*model.Memory, error) {
	lock := c.lockFor(d.ID())
	if !lock.TryLock() {
		metrics.FinalizeTotal.WithLabelValues("in_flight").Inc()
		return nil, ErrFinalizeInFlight
	}
	defer lock.Unlock()

	log := bindLogger.With().Str("draft_id", string(d.ID())).Logger()

	snap, err := d.BeginBind()
	if errors.Is(err, draft.ErrBindInFlight) {
		metrics.FinalizeTotal.WithLabelValues("in_flight").Inc()
		return nil, ErrFinalizeInFlight
	}
	if err != nil {
		return nil, err
	}

	req, err := snap.Fields.NewMemory(owner, snap.PhotoURLs())
	if err != nil {
		d.EndBind(false)
		metrics.FinalizeTotal.WithLabelValues("validation").Inc()
		log.Debug().Err(err).Msg("Finalize rejected by validation")
		return nil, err
	}

	mem, err := c.records.CreateMemory(ctx, req)
	if err != nil {
		metrics.FinalizeTotal.WithLabelValues("record_store").Inc()
		log.Error().Err(err).Int("assets", len(snap.Assets)).Msg("Failed to create memory")
		if d.EndBind(false) {
			log.Info().Msg("Draft abandoned during finalize, reclaiming")
			c.reclaimer.Dispatch(d)
		}
		return nil, &RecordStoreError{Err: err}
	}

	d.EndBind(true)
	c.reclaimer.Release(d.ID(), d.TakeDetached())

	metrics.FinalizeTotal.WithLabelValues("ok").Inc()
	log.Info().Str("memory_id", string(mem.ID)).Int("assets", len(snap.Assets)).Msg("Memory created")
	return mem, nil
}

// Forget drops the per-draft finalize lock once the draft session is gone.
func (c *Coordinator) Forget(id draft.ID) {
	c.inFlight.Delete(id)
}

func (c *Coordinator) lockFor(id draft.ID) *sync.Mutex {
	v, _ := c.inFlight.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}
