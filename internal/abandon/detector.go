// Package abandon turns every way a user can leave an unfinished draft into a
// single abandonment event per draft.
package abandon

import (
	"fmt"
	"sync"
	"time"

	"github.com/debemdeboas/memories/internal/draft"
)

type Source string

const (
	SourceExplicit   Source = "explicit"
	SourceNavigation Source = "navigation"
	SourceUnload     Source = "unload"
	SourceExpired    Source = "expired"
)

type Signal struct {
	Source Source
	At     time.Time
}

// Draft is the part of the draft state the detector reads.
type Draft interface {
	HasUnsavedContent() bool
	Step() draft.Step
}

type Prompter interface {
	ShowDiscardPrompt()
}

type Action int

const (
	// Proceed lets the user leave.
	Proceed Action = iota
	// Cancel keeps the user on the page and shows the discard prompt.
	Cancel
	// Retreat sends the user from the assets step back to the fields step.
	Retreat
)

func (a Action) String() string {
	switch a {
	case Proceed:
		return "proceed"
	case Cancel:
		return "cancel"
	case Retreat:
		return "retreat"
	}
	return "unknown"
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	switch string(b) {
	case "proceed":
		*a = Proceed
	case "cancel":
		*a = Cancel
	case "retreat":
		*a = Retreat
	default:
		return fmt.Errorf("unknown action %q", b)
	}
	return nil
}

// Decision tells the surface what to do with a leave attempt. RePush asks it
// to push a synthetic history entry that neutralizes the back action.
type Decision struct {
	Action Action `json:"action"`
	Prompt bool   `json:"prompt"`
	RePush bool   `json:"rePush"`
}

// Detector fires OnAbandon at most once. The first fire disarms it, so a
// second signal for the same draft (a beacon after a confirmed discard, say)
// is a no-op.
type Detector struct {
	mu sync.Mutex

	draft     Draft
	prompter  Prompter
	onAbandon func(Signal)

	armed bool
	fired bool
	// promptSource is the signal that raised the discard prompt currently
	// shown, empty when none is.
	promptSource Source
}

func New(d Draft, p Prompter, onAbandon func(Signal)) *Detector {
	return &Detector{
		draft:     d,
		prompter:  p,
		onAbandon: onAbandon,
	}
}

// Arm starts listening. A detector that already fired stays disarmed.
func (det *Detector) Arm() {
	det.mu.Lock()
	defer det.mu.Unlock()
	if !det.fired {
		det.armed = true
	}
}

func (det *Detector) Disarm() {
	det.mu.Lock()
	defer det.mu.Unlock()
	det.armed = false
	det.promptSource = ""
}

func (det *Detector) Armed() bool {
	det.mu.Lock()
	defer det.mu.Unlock()
	return det.armed
}

// RequestDiscard handles the in-page leave button.
func (det *Detector) RequestDiscard() Decision {
	return det.leave(SourceExplicit)
}

// NavigationAttempted handles a browser back action, before it takes effect.
func (det *Detector) NavigationAttempted() Decision {
	return det.leave(SourceNavigation)
}

func (det *Detector) leave(src Source) Decision {
	det.mu.Lock()
	if !det.armed {
		det.mu.Unlock()
		return Decision{Action: Proceed}
	}
	// The assets step leaves through the fields step and its guard.
	if det.draft.Step() == draft.StepAssets {
		det.mu.Unlock()
		return Decision{Action: Retreat, RePush: src == SourceNavigation}
	}
	if det.draft.HasUnsavedContent() {
		det.promptSource = src
		det.mu.Unlock()
		det.prompter.ShowDiscardPrompt()
		return Decision{Action: Cancel, Prompt: true, RePush: src == SourceNavigation}
	}
	det.mu.Unlock()

	// Nothing to lose: leaving is still an abandonment, reclaim finds nothing.
	det.fire(src)
	return Decision{Action: Proceed}
}

// ConfirmDiscard fires the abandonment the user agreed to. The source is the
// signal that raised the prompt; without a prompt on screen it does nothing.
func (det *Detector) ConfirmDiscard() bool {
	det.mu.Lock()
	src := det.promptSource
	det.promptSource = ""
	det.mu.Unlock()

	if src == "" {
		return false
	}

	return det.fire(src)
}

func (det *Detector) CancelDiscard() {
	det.mu.Lock()
	defer det.mu.Unlock()
	det.promptSource = ""
}

// PageUnloading handles a tab close or refresh. No user interaction is
// possible, so it fires immediately.
func (det *Detector) PageUnloading() bool {
	return det.fire(SourceUnload)
}

// Expire fires for drafts left idle past their lifetime.
func (det *Detector) Expire() bool {
	return det.fire(SourceExpired)
}

func (det *Detector) fire(src Source) bool {
	det.mu.Lock()
	if !det.armed || det.fired {
		det.mu.Unlock()
		return false
	}
	det.fired = true
	det.armed = false
	det.promptSource = ""
	det.mu.Unlock()

	det.onAbandon(Signal{Source: src, At: time.Now()})
	return true
}
