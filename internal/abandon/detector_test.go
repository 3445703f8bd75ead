package abandon

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/memories/internal/draft"
	"github.com/debemdeboas/memories/internal/model"
)

type countingPrompter struct {
	n atomic.Int32
}

func (p *countingPrompter) ShowDiscardPrompt() { p.n.Add(1) }

type recorder struct {
	mu      sync.Mutex
	signals []Signal
}

func (r *recorder) record(s Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

func (r *recorder) sources() []Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Source, len(r.signals))
	for i, s := range r.signals {
		out[i] = s.Source
	}
	return out
}

func setup(t *testing.T, withContent bool) (*draft.State, *Detector, *countingPrompter, *recorder) {
	t.Helper()
	d := draft.New(draft.NewID(), 0)
	if withContent {
		require.NoError(t, d.AddAsset(model.StagedAsset{RemoteID: "a", URL: "u"}))
	}
	p := &countingPrompter{}
	r := &recorder{}
	det := New(d, p, r.record)
	det.Arm()
	return d, det, p, r
}

func TestRequestDiscard(t *testing.T) {
	t.Run("content on first step prompts", func(t *testing.T) {
		_, det, p, r := setup(t, true)

		dec := det.RequestDiscard()
		assert.Equal(t, Decision{Action: Cancel, Prompt: true}, dec)
		assert.EqualValues(t, 1, p.n.Load())
		assert.Empty(t, r.sources(), "a prompt is not an abandonment yet")

		require.True(t, det.ConfirmDiscard())
		assert.Equal(t, []Source{SourceExplicit}, r.sources())
		assert.False(t, det.Armed())
	})

	t.Run("no content leaves without prompt", func(t *testing.T) {
		_, det, p, r := setup(t, false)

		dec := det.RequestDiscard()
		assert.Equal(t, Proceed, dec.Action)
		assert.Zero(t, p.n.Load())
		assert.Equal(t, []Source{SourceExplicit}, r.sources())
	})

	t.Run("cancelled prompt keeps the detector armed", func(t *testing.T) {
		_, det, _, r := setup(t, true)

		det.RequestDiscard()
		det.CancelDiscard()
		assert.True(t, det.Armed())
		assert.Empty(t, r.sources())
	})
}

func TestNavigationAttempted(t *testing.T) {
	t.Run("content cancels and re-pushes", func(t *testing.T) {
		_, det, p, r := setup(t, true)

		dec := det.NavigationAttempted()
		assert.Equal(t, Decision{Action: Cancel, Prompt: true, RePush: true}, dec)
		assert.EqualValues(t, 1, p.n.Load())

		require.True(t, det.ConfirmDiscard())
		assert.Equal(t, []Source{SourceNavigation}, r.sources())
	})

	t.Run("no content proceeds", func(t *testing.T) {
		_, det, _, r := setup(t, false)

		dec := det.NavigationAttempted()
		assert.Equal(t, Decision{Action: Proceed}, dec)
		assert.Equal(t, []Source{SourceNavigation}, r.sources())
	})

	t.Run("assets step retreats", func(t *testing.T) {
		d, det, p, r := setup(t, true)
		for name, v := range map[string]string{
			draft.FieldTitle: "t", draft.FieldDescription: "d", draft.FieldLocation: "l",
			draft.FieldStartDate: "2024-01-01", draft.FieldEndDate: "2024-01-01",
		} {
			require.NoError(t, d.SetField(name, v))
		}
		require.NoError(t, d.Advance())

		dec := det.NavigationAttempted()
		assert.Equal(t, Decision{Action: Retreat, RePush: true}, dec)
		assert.Zero(t, p.n.Load())
		assert.Empty(t, r.sources())
	})

	t.Run("disarmed detector lets navigation through", func(t *testing.T) {
		_, det, p, r := setup(t, true)
		det.Disarm()

		assert.Equal(t, Decision{Action: Proceed}, det.NavigationAttempted())
		assert.Zero(t, p.n.Load())
		assert.Empty(t, r.sources())
	})
}

func TestFiresAtMostOnce(t *testing.T) {
	_, det, _, r := setup(t, true)

	det.RequestDiscard()
	assert.True(t, det.ConfirmDiscard())
	assert.False(t, det.PageUnloading())
	assert.False(t, det.Expire())
	assert.False(t, det.ConfirmDiscard())
	assert.Equal(t, Decision{Action: Proceed}, det.NavigationAttempted())

	assert.Equal(t, []Source{SourceExplicit}, r.sources())

	det.Arm()
	assert.False(t, det.Armed(), "a fired detector cannot be re-armed")
}

func TestConcurrentSignalsFireOnce(t *testing.T) {
	_, det, _, r := setup(t, true)
	det.RequestDiscard()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				det.PageUnloading()
			} else {
				det.ConfirmDiscard()
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.sources(), 1)
	assert.False(t, det.Armed())
}

func TestUnloadWithoutArmIsIgnored(t *testing.T) {
	d := draft.New(draft.NewID(), 0)
	r := &recorder{}
	det := New(d, &countingPrompter{}, r.record)

	assert.False(t, det.PageUnloading())
	assert.Empty(t, r.sources())
}

func TestConfirmDiscardNeedsPrompt(t *testing.T) {
	t.Run("never prompted", func(t *testing.T) {
		_, det, _, r := setup(t, true)

		assert.False(t, det.ConfirmDiscard())
		assert.Empty(t, r.sources())
		assert.True(t, det.Armed())
	})

	t.Run("prompt cancelled", func(t *testing.T) {
		_, det, _, r := setup(t, true)

		det.RequestDiscard()
		det.CancelDiscard()
		assert.False(t, det.ConfirmDiscard())
		assert.Empty(t, r.sources())
	})

	t.Run("assets step never prompts", func(t *testing.T) {
		d, det, p, r := setup(t, true)
		for name, v := range map[string]string{
			draft.FieldTitle: "t", draft.FieldDescription: "d", draft.FieldLocation: "l",
			draft.FieldStartDate: "2024-01-01", draft.FieldEndDate: "2024-01-01",
		} {
			require.NoError(t, d.SetField(name, v))
		}
		require.NoError(t, d.Advance())

		assert.Equal(t, Retreat, det.RequestDiscard().Action)
		assert.False(t, det.ConfirmDiscard())
		assert.Zero(t, p.n.Load())
		assert.Empty(t, r.sources())
	})
}

func TestActionText(t *testing.T) {
	for _, a := range []Action{Proceed, Cancel, Retreat} {
		b, err := a.MarshalText()
		require.NoError(t, err)

		var got Action
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, a, got)
	}

	b, err := Retreat.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "retreat", string(b))

	var a Action
	assert.Error(t, a.UnmarshalText([]byte("sideways")))
}

func TestDecisionJSON(t *testing.T) {
	in := Decision{Action: Cancel, Prompt: true, RePush: true}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"cancel","prompt":true,"rePush":true}`, string(b))

	var out Decision
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}
