// Package workflow runs the two-step memory creation workflow: one session
// per open draft, driven by surface events, ending in a bind or a reclaim.
package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/memories/internal/abandon"
	"github.com/debemdeboas/memories/internal/bind"
	"github.com/debemdeboas/memories/internal/cache"
	"github.com/debemdeboas/memories/internal/draft"
	"github.com/debemdeboas/memories/internal/metrics"
	"github.com/debemdeboas/memories/internal/model"
	"github.com/debemdeboas/memories/internal/objectstore"
	"github.com/debemdeboas/memories/internal/reclaim"
	"github.com/debemdeboas/memories/internal/staging"
	"github.com/debemdeboas/memories/internal/surface"
)

var workflowLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	workflowLogger = l
}

var (
	ErrDraftNotFound = errors.New("draft not found")
	ErrNotOwner      = errors.New("draft belongs to another user")
)

type Options struct {
	MaxAssets int
	IdleTTL   time.Duration
	// ListingPath is where the surface is sent after a bind or a discard.
	ListingPath string
}

type Service struct {
	sessions *cache.Cache[draft.ID, *Session]

	staging *staging.Client
	reclaim *reclaim.Coordinator
	bind    *bind.Coordinator
	hub     *surface.Hub

	opts Options
	now  func() time.Time
}

func NewService(s *staging.Client, rc *reclaim.Coordinator, bc *bind.Coordinator, hub *surface.Hub, opts Options) *Service {
	return &Service{
		sessions: cache.NewCache[draft.ID, *Session](),
		staging:  s,
		reclaim:  rc,
		bind:     bc,
		hub:      hub,
		opts:     opts,
		now:      time.Now,
	}
}

// Session is one open draft with its abandonment detector.
type Session struct {
	svc *Service

	Draft    *draft.State
	detector *abandon.Detector
	surface  *surface.Surface
	owner    model.UserID

	lastSeen atomic.Int64
	log      zerolog.Logger
}

// Open starts a draft for owner and arms its detector.
func (svc *Service) Open(owner model.UserID) *Session {
	id := draft.NewID()
	s := &Session{
		svc:     svc,
		Draft:   draft.New(id, svc.opts.MaxAssets),
		surface: svc.hub.For(id),
		owner:   owner,
		log:     workflowLogger.With().Str("draft_id", string(id)).Logger(),
	}
	s.detector = abandon.New(s.Draft, s.surface, s.onAbandon)
	s.touch()

	svc.sessions.Set(id, s)
	metrics.OpenDrafts.Inc()
	s.detector.Arm()

	s.log.Info().Str("owner", string(owner)).Msg("Draft opened")
	return s
}

// Get returns the owner's open draft and marks it as active.
func (svc *Service) Get(id draft.ID, owner model.UserID) (*Session, error) {
	s, ok := svc.sessions.Get(id)
	if !ok {
		return nil, ErrDraftNotFound
	}
	if s.owner != owner {
		return nil, ErrNotOwner
	}
	s.touch()
	return s, nil
}

func (svc *Service) Len() int {
	return svc.sessions.Len()
}

func (svc *Service) teardown(id draft.ID) {
	if _, ok := svc.sessions.Take(id); ok {
		metrics.OpenDrafts.Dec()
	}
	svc.bind.Forget(id)
}

func (s *Session) ID() draft.ID {
	return s.Draft.ID()
}

func (s *Session) Owner() model.UserID {
	return s.owner
}

// Guarded reports whether leave attempts still go through the detector.
func (s *Session) Guarded() bool {
	return s.detector.Armed()
}

func (s *Session) touch() {
	s.lastSeen.Store(s.svc.now().UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// SetStep handles stepChanged. Moving to the assets step validates the fields.
func (s *Session) SetStep(step draft.Step) error {
	if step == draft.StepFields {
		s.Draft.Retreat()
		return nil
	}
	err := s.Draft.Advance()
	s.report(err)
	return err
}

func (s *Session) SetField(name, value string) error {
	return s.Draft.SetField(name, value)
}

func (s *Session) SetLocation(loc model.Location) error {
	return s.Draft.SetLocation(loc)
}

// Upload stages one asset and appends it to the draft. An asset the draft
// refuses after the upload finished is deleted right away.
func (s *Session) Upload(ctx context.Context, u objectstore.Upload) (model.StagedAsset, error) {
	if s.svc.opts.MaxAssets > 0 && len(s.Draft.Assets()) >= s.svc.opts.MaxAssets {
		return model.StagedAsset{}, draft.ErrTooManyAssets
	}

	asset, err := s.svc.staging.Stage(ctx, u)
	if err != nil {
		s.log.Warn().Err(err).Str("name", u.Name).Msg("Upload failed")
		s.report(err)
		return model.StagedAsset{}, err
	}

	if err := s.Draft.AddAsset(asset); err != nil {
		s.log.Info().Err(err).Str("remote_id", asset.RemoteID).Msg("Draft refused staged asset, deleting it")
		s.svc.reclaim.Release(s.ID(), []string{asset.RemoteID})
		return model.StagedAsset{}, err
	}
	return asset, nil
}

// RemoveAsset drops the asset from the draft before its delete settles. A
// delete that keeps failing leaves the id detached for the next reclaim.
func (s *Session) RemoveAsset(ctx context.Context, remoteID string) error {
	if _, err := s.Draft.RemoveAsset(remoteID); err != nil {
		return err
	}

	if err := s.svc.staging.Remove(ctx, remoteID); err != nil {
		s.log.Warn().Err(err).Str("remote_id", remoteID).Msg("Asset removal failed, left for reclaim")
		s.report(err)
		return err
	}
	s.Draft.ConfirmRemoved(remoteID)
	return nil
}

func (s *Session) Reorder(from, to int) error {
	return s.Draft.Reorder(from, to)
}

func (s *Session) RequestDiscard() abandon.Decision {
	return s.follow(s.detector.RequestDiscard())
}

func (s *Session) ConfirmDiscard() bool {
	return s.detector.ConfirmDiscard()
}

func (s *Session) CancelDiscard() {
	s.detector.CancelDiscard()
}

func (s *Session) NavigationAttempted() abandon.Decision {
	return s.follow(s.detector.NavigationAttempted())
}

// follow applies a Retreat to the draft, so the next leave attempt meets the
// fields step guard.
func (s *Session) follow(d abandon.Decision) abandon.Decision {
	if d.Action == abandon.Retreat {
		s.Draft.Retreat()
	}
	return d
}

func (s *Session) PageUnloading() bool {
	return s.detector.PageUnloading()
}

// Finalize binds the draft. On success the session ends and the surface is
// sent to the listing; on failure the draft stays as it was.
func (s *Session) Finalize(ctx context.Context) (*model.Memory, error) {
	mem, err := s.svc.bind.Finalize(ctx, s.Draft, s.owner)
	if err != nil {
		s.report(err)
		return nil, err
	}

	s.detector.Disarm()
	s.svc.teardown(s.ID())
	s.surface.NavigateTo(s.svc.opts.ListingPath)
	return mem, nil
}

func (s *Session) report(err error) {
	if err != nil {
		s.surface.ReportError(err)
	}
}

// onAbandon runs once per draft. A user still on the page waits a bounded
// time for the reclaim; otherwise it is dispatched in the background.
func (s *Session) onAbandon(sig abandon.Signal) {
	metrics.AbandonTotal.WithLabelValues(string(sig.Source)).Inc()
	s.log.Info().Str("source", string(sig.Source)).Msg("Draft abandoned")

	switch sig.Source {
	case abandon.SourceExplicit, abandon.SourceNavigation:
		if !s.svc.reclaim.Await(s.Draft) {
			s.log.Warn().Msg("Navigating before reclaim finished")
		}
		s.svc.teardown(s.ID())
		s.surface.NavigateTo(s.svc.opts.ListingPath)
	default:
		s.svc.reclaim.Dispatch(s.Draft)
		s.svc.teardown(s.ID())
	}
}
