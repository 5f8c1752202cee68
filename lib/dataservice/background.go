package dataservice

import (
	"context"
	"time"
)

// --------------------------------------------------------------------------
// Background resync
// --------------------------------------------------------------------------

// Start launches the background resync. Every sync interval a full load runs
// while the page is visible, and when the page becomes visible again a stale
// snapshot is reloaded. A rehydrated snapshot that is already stale is
// refreshed right away. Calling Start more than once has no effect.
//
// Thread-safety: Start and Close may be called from any goroutine.
func (s *Service) Start(ctx context.Context) {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)

	s.mu.RLock()
	stale := s.rehydrated && !s.snap.Fresh(s.clock.Now(), s.syncInterval)
	s.mu.RUnlock()
	if stale {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.backgroundLoad(ctx, "stale snapshot")
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.resyncLoop(ctx)
	}()
}

// Close stops the background resync and waits for it to finish.
func (s *Service) Close() {
	s.bgMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.bgMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Service) resyncLoop(ctx context.Context) {
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	changes := s.visibility.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.visibility.Visible() {
				s.backgroundLoad(ctx, "periodic resync")
			}
		case visible, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if !visible {
				continue
			}
			s.mu.RLock()
			fresh := s.snap.Fresh(s.clock.Now(), s.syncInterval)
			s.mu.RUnlock()
			if !fresh {
				s.backgroundLoad(ctx, "visible again")
			}
		}
	}
}

func (s *Service) backgroundLoad(ctx context.Context, reason string) {
	Logger.Debugf("background load: %s", reason)
	if _, err := s.LoadAppData(ctx, true); err != nil && ctx.Err() == nil {
		Logger.Warningf("background load (%s) failed: %v", reason, err)
	}
}
