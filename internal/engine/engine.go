// Package engine wires the checker together and answers the inbound
// requests of the host environment: registry cache queries, settings
// patches, externally reported counts, and page-lifecycle events.
package engine

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/badge"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/config"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/kvstore"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/registry"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/scheduler"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/session"
)

// SettingsKey is the key-value store key the merged settings record is
// persisted under.
const SettingsKey = "settings"

// Engine routes requests and lifecycle events to the scan components.
type Engine struct {
	settings  *config.Store
	kv        kvstore.Store
	registry  *registry.Cache
	sessions  *session.Store
	scheduler *scheduler.Scheduler
	badge     badge.Badge
}

// New creates an Engine over the given components.
func New(settings *config.Store, kv kvstore.Store, reg *registry.Cache, sessions *session.Store, sched *scheduler.Scheduler, bdg badge.Badge) *Engine {
	return &Engine{
		settings:  settings,
		kv:        kv,
		registry:  reg,
		sessions:  sessions,
		scheduler: sched,
		badge:     bdg,
	}
}

// RefreshResult is the response of RefreshRegistry.
type RefreshResult struct {
	OK      bool                    `json:"ok"`
	Sellers []registry.SellerRecord `json:"sellers,omitempty"`
}

// GetRegistryCache returns the cached registry snapshot immediately. When
// the snapshot is stale a refresh is started in the background as a side
// effect.
func (e *Engine) GetRegistryCache(ctx context.Context) registry.Snapshot {
	snap := e.registry.GetCached(ctx)
	if e.registry.IsStale(snap, e.settings.Snapshot().CacheTTL()) {
		bg := context.WithoutCancel(ctx)
		go func() {
			if _, err := e.registry.Refresh(bg, false); err != nil {
				log.Debug().Err(err).Msg("Background registry refresh failed")
			}
		}()
	}
	return snap
}

// RefreshRegistry refreshes the seller registry, bypassing the TTL when
// force is set. Failures are absorbed into an ok=false result.
func (e *Engine) RefreshRegistry(ctx context.Context, force bool) RefreshResult {
	sellers, err := e.registry.Refresh(ctx, force)
	if err != nil {
		return RefreshResult{OK: false}
	}
	return RefreshResult{OK: true, Sellers: sellers}
}

// SettingsUpdated applies a partial settings patch, persists the merged
// record, and, when badge display was just disabled, clears all session
// counts and blanks their badges.
func (e *Engine) SettingsUpdated(ctx context.Context, patch config.Patch) error {
	old, merged := e.settings.Apply(patch)

	raw, err := json.Marshal(merged)
	if err == nil {
		err = e.kv.Set(ctx, map[string][]byte{SettingsKey: raw})
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to persist merged settings")
	}

	if old.BadgeEnabled && !merged.BadgeEnabled {
		for _, id := range e.sessions.ClearAll() {
			if badgeErr := e.badge.SetText(ctx, id, ""); badgeErr != nil {
				log.Debug().Err(badgeErr).Str("session", id).Msg("Failed to blank badge")
			}
		}
	}
	return err
}

// ReportExternalScanCount accepts a count computed by an external
// collaborator (such as a content-side scanner), bypassing the scan
// pipeline. The count still feeds the cooldown gate.
func (e *Engine) ReportExternalScanCount(ctx context.Context, sessionID string, count int) {
	if count < 0 {
		count = 0
	}
	e.sessions.SetCount(sessionID, count)
	e.sessions.MarkScanned(sessionID, time.Now())

	if !e.settings.Snapshot().BadgeEnabled {
		return
	}
	if err := e.badge.SetText(ctx, sessionID, badge.Text(count)); err != nil {
		log.Debug().Err(err).Str("session", sessionID).Msg("Failed to update badge text")
		return
	}
	if err := e.badge.SetColor(ctx, sessionID, badge.Color(count)); err != nil {
		log.Debug().Err(err).Str("session", sessionID).Msg("Failed to update badge color")
	}
}

// SessionActivated handles a tab activation event.
func (e *Engine) SessionActivated(ctx context.Context, sessionID, pageURL string) {
	e.scheduler.Trigger(ctx, sessionID, pageURL)
}

// NavigationStarted clears the session's state and badge: the previous
// document's count no longer applies.
func (e *Engine) NavigationStarted(ctx context.Context, sessionID string) {
	e.sessions.Clear(sessionID)
	if err := e.badge.SetText(ctx, sessionID, ""); err != nil {
		log.Debug().Err(err).Str("session", sessionID).Msg("Failed to blank badge")
	}
}

// NavigationComplete handles a navigation-complete event by scheduling a
// scan.
func (e *Engine) NavigationComplete(ctx context.Context, sessionID, pageURL string) {
	e.scheduler.Trigger(ctx, sessionID, pageURL)
}

// SessionRemoved drops all state for a closed session, cancelling any
// pending scan.
func (e *Engine) SessionRemoved(sessionID string) {
	e.sessions.Clear(sessionID)
}

// LoadPersistedSettings merges the settings record persisted in the
// key-value store into the current snapshot. Absent or corrupt records are
// ignored.
func (e *Engine) LoadPersistedSettings(ctx context.Context) {
	values, err := e.kv.Get(ctx, SettingsKey)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read persisted settings")
		return
	}
	raw, ok := values[SettingsKey]
	if !ok {
		return
	}
	var patch config.Patch
	if err := json.Unmarshal(raw, &patch); err != nil {
		log.Warn().Err(err).Msg("Persisted settings record is corrupt, ignoring")
		return
	}
	e.settings.Apply(patch)
}

// Run blocks, applying settings records written to the store by other
// processes, until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	changes, err := e.kv.Subscribe(ctx, SettingsKey)
	if err != nil {
		return err
	}
	log.Info().Msg("Engine running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-changes:
			if !ok {
				return nil
			}
			if key == SettingsKey {
				e.LoadPersistedSettings(ctx)
			}
		}
	}
}
