package workflow

import (
	"context"
	"time"
)

// Run expires idle drafts every interval until ctx ends. Expiry covers tabs
// that went away without an unload signal.
func (svc *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := svc.Sweep(); n > 0 {
				workflowLogger.Info().Int("expired", n).Msg("Expired idle drafts")
			}
		}
	}
}

// Sweep expires every draft idle longer than the configured TTL and returns
// how many it expired.
func (svc *Service) Sweep() int {
	if svc.opts.IdleTTL <= 0 {
		return 0
	}
	now := svc.now()
	expired := 0
	for id, s := range svc.sessions.Snapshot() {
		if s.idleSince(now) < svc.opts.IdleTTL {
			continue
		}
		if s.detector.Expire() {
			expired++
		} else {
			// Disarmed sessions have nothing left to reclaim.
			svc.teardown(id)
		}
	}
	return expired
}

// Close expires every open draft, since drafts do not survive a restart, and
// waits for the background reclaims.
func (svc *Service) Close() {
	for id, s := range svc.sessions.Snapshot() {
		if !s.detector.Expire() {
			svc.teardown(id)
		}
	}
	svc.reclaim.Wait()
}
