// Package draft holds the in-memory state of one in-progress memory creation
// workflow: the wizard step, the form fields and the ordered staged assets.
package draft

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/debemdeboas/memories/internal/model"
)

var (
	// ErrInert is returned for mutations on a draft that was bound or reclaimed.
	ErrInert = errors.New("draft is no longer editable")
	// ErrBindInFlight is returned for mutations while a finalize is pending.
	ErrBindInFlight = errors.New("draft is being finalized")

	ErrAssetNotFound   = errors.New("asset not found in draft")
	ErrDuplicateAsset  = errors.New("asset already in draft")
	ErrTooManyAssets   = errors.New("draft holds the maximum number of assets")
	ErrIndexOutOfRange = errors.New("asset index out of range")
)

type ID string

func NewID() ID {
	return ID(uuid.New().String())
}

type Step int

const (
	StepFields Step = iota + 1
	StepAssets
)

func (s Step) String() string {
	switch s {
	case StepFields:
		return "fields"
	case StepAssets:
		return "assets"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	step, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = step
	return nil
}

func ParseStep(v string) (Step, error) {
	switch v {
	case "fields", "1":
		return StepFields, nil
	case "assets", "2":
		return StepAssets, nil
	}
	return 0, fmt.Errorf("unknown step %q", v)
}

// Snapshot is a consistent copy of the draft.
type Snapshot struct {
	ID     ID                  `json:"id"`
	Step   Step                `json:"step"`
	Fields Fields              `json:"fields"`
	Assets []model.StagedAsset `json:"assets"`
	Bound  bool                `json:"bound"`
}

// PhotoURLs returns the asset URLs in display order.
func (s Snapshot) PhotoURLs() []string {
	urls := make([]string, len(s.Assets))
	for i, a := range s.Assets {
		urls[i] = a.URL
	}
	return urls
}

// State is owned by one workflow session. It is safe for concurrent use
// because a beacon and a discard request for the same draft may race.
//
// Every staged asset is in exactly one of three places: the ordered assets
// sequence, the detached set (removed locally, remote delete unconfirmed), or
// already handed off to reclaim or bind.
type State struct {
	mu sync.Mutex

	id        ID
	step      Step
	fields    Fields
	assets    []model.StagedAsset
	detached  []string
	maxAssets int

	bound          bool
	binding        bool
	reclaimed      bool
	abandonPending bool
}

// New creates an empty draft on the first step. maxAssets <= 0 means unlimited.
func New(id ID, maxAssets int) *State {
	return &State{
		id:        id,
		step:      StepFields,
		maxAssets: maxAssets,
	}
}

func (d *State) ID() ID {
	return d.id
}

func (d *State) Step() Step {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.step
}

func (d *State) Fields() Fields {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fields
}

func (d *State) Assets() []model.StagedAsset {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.assets)
}

func (d *State) Bound() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bound
}

func (d *State) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *State) snapshotLocked() Snapshot {
	return Snapshot{
		ID:     d.id,
		Step:   d.step,
		Fields: d.fields,
		Assets: slices.Clone(d.assets),
		Bound:  d.bound,
	}
}

func (d *State) mutableLocked() error {
	if d.bound || d.reclaimed {
		return ErrInert
	}
	if d.binding {
		return ErrBindInFlight
	}
	return nil
}

// HasUnsavedContent reports whether leaving would lose anything: a non-empty
// field or at least one staged asset.
func (d *State) HasUnsavedContent() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.fields.empty() || len(d.assets) > 0
}

func (d *State) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fields.Validate()
}

func (d *State) SetField(name, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.mutableLocked(); err != nil {
		return err
	}
	return d.fields.set(name, value)
}

// SetLocation replaces the address and its resolved coordinates at once.
func (d *State) SetLocation(loc model.Location) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.mutableLocked(); err != nil {
		return err
	}
	d.fields.Location = loc
	return nil
}

// Advance moves from the fields step to the assets step. It is rejected with
// a ValidationError while the fields are invalid.
func (d *State) Advance() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.mutableLocked(); err != nil {
		return err
	}
	if d.step == StepAssets {
		return nil
	}
	if err := d.fields.Validate(); err != nil {
		return err
	}
	d.step = StepAssets
	return nil
}

func (d *State) Retreat() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.step = StepFields
}

func (d *State) AddAsset(a model.StagedAsset) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.mutableLocked(); err != nil {
		return err
	}
	if d.indexLocked(a.RemoteID) >= 0 {
		return ErrDuplicateAsset
	}
	if d.maxAssets > 0 && len(d.assets) >= d.maxAssets {
		return ErrTooManyAssets
	}
	d.assets = append(d.assets, a)
	return nil
}

// RemoveAsset drops the asset from the sequence immediately, before its remote
// delete settles, and keeps its id detached until ConfirmRemoved.
func (d *State) RemoveAsset(remoteID string) (model.StagedAsset, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.mutableLocked(); err != nil {
		return model.StagedAsset{}, err
	}
	i := d.indexLocked(remoteID)
	if i < 0 {
		return model.StagedAsset{}, ErrAssetNotFound
	}
	a := d.assets[i]
	d.assets = slices.Delete(d.assets, i, i+1)
	d.detached = append(d.detached, remoteID)
	return a, nil
}

// ConfirmRemoved forgets a detached id once its remote delete succeeded.
func (d *State) ConfirmRemoved(remoteID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := slices.Index(d.detached, remoteID); i >= 0 {
		d.detached = slices.Delete(d.detached, i, i+1)
	}
}

// Reorder moves the asset at from to index to. Remote storage is untouched.
func (d *State) Reorder(from, to int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.mutableLocked(); err != nil {
		return err
	}
	n := len(d.assets)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}
	a := d.assets[from]
	d.assets = slices.Delete(d.assets, from, from+1)
	d.assets = slices.Insert(d.assets, to, a)
	return nil
}

// MarkBound is terminal: ownership of the staged assets moved to a record and
// nothing may reclaim them any more.
func (d *State) MarkBound() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bound = true
	d.binding = false
	d.abandonPending = false
}

// TakeReclaimable hands every still-staged and detached id to the caller
// exactly once. It returns nil when the draft is bound, already reclaimed, or
// being finalized; in the last case the abandonment is remembered and
// resolved by EndBind.
func (d *State) TakeReclaimable() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bound || d.reclaimed {
		return nil
	}
	if d.binding {
		d.abandonPending = true
		return nil
	}

	d.reclaimed = true
	ids := make([]string, 0, len(d.assets)+len(d.detached))
	for _, a := range d.assets {
		ids = append(ids, a.RemoteID)
	}
	ids = append(ids, d.detached...)
	d.assets = nil
	d.detached = nil
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// BeginBind freezes the draft for a finalize attempt and returns what to bind.
func (d *State) BeginBind() (Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.mutableLocked(); err != nil {
		return Snapshot{}, err
	}
	d.binding = true
	return d.snapshotLocked(), nil
}

// EndBind closes a finalize attempt. On success the draft becomes bound. On
// failure it is editable again and reclaimNow reports that an abandonment
// arrived meanwhile and must be reclaimed now.
func (d *State) EndBind(ok bool) (reclaimNow bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.binding = false
	if ok {
		d.bound = true
		d.abandonPending = false
		return false
	}
	reclaimNow = d.abandonPending
	d.abandonPending = false
	return reclaimNow
}

// TakeDetached returns and forgets the ids whose removal was never confirmed.
// They are referenced by nothing, so a bound draft may still delete them.
func (d *State) TakeDetached() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := d.detached
	d.detached = nil
	return ids
}

func (d *State) indexLocked(remoteID string) int {
	return slices.IndexFunc(d.assets, func(a model.StagedAsset) bool {
		return a.RemoteID == remoteID
	})
}
