// Package scheduler decides, per page session, whether and when to run a
// scan. Each session moves through Idle -> Pending -> Scanning -> Idle; a new
// trigger supersedes a pending one, and entry into Scanning is gated by a
// per-session cooldown.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/badge"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/config"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/extractor"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/matcher"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/registry"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/session"
)

// Scheduler coordinates the scan pipeline for every session.
type Scheduler struct {
	settings *config.Store
	registry *registry.Cache
	pages    extractor.PageExtractor
	sessions *session.Store
	badge    badge.Badge

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) (cancel func())
	// scanDone, when set, is invoked after every scheduled scan attempt
	// with whether the pipeline actually executed. Used by tests.
	scanDone func(sessionID string, executed bool)
}

// New creates a Scheduler.
func New(settings *config.Store, reg *registry.Cache, pages extractor.PageExtractor, sessions *session.Store, bdg badge.Badge) *Scheduler {
	return &Scheduler{
		settings: settings,
		registry: reg,
		pages:    pages,
		sessions: sessions,
		badge:    bdg,
		now:      time.Now,
		afterFunc: func(d time.Duration, f func()) func() {
			t := time.AfterFunc(d, f)
			return func() { t.Stop() }
		},
	}
}

// Trigger handles a page-lifecycle event (activation, load-complete) for a
// session. When scanning is enabled it schedules a scan after the configured
// delay, cancelling any scan already pending for the session: the last
// trigger wins. Cancelling a pending scan never interrupts one that is
// already executing; superseded results are discarded by generation instead.
func (s *Scheduler) Trigger(ctx context.Context, sessionID, pageURL string) {
	cfg := s.settings.Snapshot()
	if !cfg.BadgeEnabled {
		return
	}

	gen := s.sessions.BumpGeneration(sessionID)
	// The scan may fire after the triggering event's context is done;
	// detach it so the pipeline is bounded by its own fetch timeouts only.
	scanCtx := context.WithoutCancel(ctx)
	cancel := s.afterFunc(cfg.ScanDelay(), func() {
		s.run(scanCtx, sessionID, pageURL, gen)
	})
	s.sessions.SetPending(sessionID, cancel)
	log.Debug().Str("session", sessionID).Dur("delay", cfg.ScanDelay()).Msg("Scan scheduled")
}

// run is the Pending -> Scanning transition. It re-checks that this scan has
// not been superseded, applies the cooldown gate, executes the pipeline, and
// publishes the result.
func (s *Scheduler) run(ctx context.Context, sessionID, pageURL string, gen uint64) {
	executed := false
	defer func() {
		if s.scanDone != nil {
			s.scanDone(sessionID, executed)
		}
	}()

	s.sessions.ClearPending(sessionID)
	if s.sessions.Generation(sessionID) != gen {
		return
	}

	cfg := s.settings.Snapshot()
	if !cfg.BadgeEnabled {
		return
	}
	if last, ok := s.sessions.LastScanAt(sessionID); ok && s.now().Sub(last) < cfg.Cooldown() {
		log.Debug().Str("session", sessionID).Time("lastScan", last).Msg("Scan skipped, cooldown active")
		return
	}

	var (
		result  extractor.Result
		sellers []registry.SellerRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.pages.Extract(gctx, sessionID, pageURL)
		if err != nil {
			log.Debug().Err(err).Str("session", sessionID).Msg("Extraction failed")
			return nil
		}
		result = r
		return nil
	})
	g.Go(func() error {
		snap := s.registry.GetCached(gctx)
		if s.registry.IsStale(snap, cfg.CacheTTL()) {
			if refreshed, err := s.registry.Refresh(gctx, false); err == nil {
				snap.Sellers = refreshed
			}
		}
		sellers = snap.Sellers
		return nil
	})
	_ = g.Wait()

	finishedAt := s.now()
	if s.sessions.Generation(sessionID) != gen {
		// The session navigated away or was cleared mid-scan; the
		// result no longer describes the live document.
		log.Debug().Str("session", sessionID).Msg("Discarding superseded scan result")
		return
	}

	executed = true
	s.sessions.MarkScanned(sessionID, finishedAt)

	if !result.OK {
		s.sessions.SetCount(sessionID, 0)
		s.setBadge(ctx, sessionID, 0)
		return
	}

	count := matcher.Match(result.IDs, sellers)
	s.sessions.SetCount(sessionID, count)
	s.setBadge(ctx, sessionID, count)
	log.Info().Str("session", sessionID).Int("matches", count).Msg("Scan complete")
}

func (s *Scheduler) setBadge(ctx context.Context, sessionID string, count int) {
	if err := s.badge.SetText(ctx, sessionID, badge.Text(count)); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("Failed to update badge text")
		return
	}
	if err := s.badge.SetColor(ctx, sessionID, badge.Color(count)); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("Failed to update badge color")
	}
}
