// Package registry maintains the locally cached authoritative seller
// registry: a sellers.json document fetched from a configurable URL and kept
// in the external key-value store with a TTL.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/config"
	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/kvstore"
)

// CacheKey is the key-value store key the registry snapshot is persisted
// under.
const CacheKey = "registry_cache"

// ErrParse indicates a registry response body that is not valid JSON.
var ErrParse = errors.New("registry response is not valid JSON")

// SellerRecord is one entry of the sellers.json registry. Only seller_id is
// required; the other fields are kept for display purposes.
type SellerRecord struct {
	SellerID   string `json:"seller_id"`
	Name       string `json:"name,omitempty"`
	Domain     string `json:"domain,omitempty"`
	SellerType string `json:"seller_type,omitempty"`
}

// Snapshot is the cached registry state. An empty Sellers slice with
// FetchedAt zero represents "never fetched", which is valid.
type Snapshot struct {
	Sellers   []SellerRecord `json:"sellers"`
	FetchedAt int64          `json:"fetchedAt"` // epoch milliseconds
}

// Fetcher abstracts the retrying HTTP client used to download the registry.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Cache wraps the external key-value store with registry load, staleness and
// refresh logic.
type Cache struct {
	store    kvstore.Store
	fetcher  Fetcher
	settings *config.Store
	now      func() time.Time
}

// NewCache creates a registry cache on top of the given store and fetcher.
func NewCache(store kvstore.Store, fetcher Fetcher, settings *config.Store) *Cache {
	return &Cache{
		store:    store,
		fetcher:  fetcher,
		settings: settings,
		now:      time.Now,
	}
}

// GetCached returns the last stored snapshot. It never fails: a store error
// or absent key yields an empty snapshot with FetchedAt zero.
func (c *Cache) GetCached(ctx context.Context) Snapshot {
	values, err := c.store.Get(ctx, CacheKey)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read registry cache from store")
		return Snapshot{Sellers: []SellerRecord{}}
	}
	raw, ok := values[CacheKey]
	if !ok {
		return Snapshot{Sellers: []SellerRecord{}}
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Warn().Err(err).Msg("Stored registry cache is corrupt, treating as empty")
		return Snapshot{Sellers: []SellerRecord{}}
	}
	if snap.Sellers == nil {
		snap.Sellers = []SellerRecord{}
	}
	return snap
}

// IsStale reports whether a snapshot is older than ttl. An empty seller list
// is always stale.
func (c *Cache) IsStale(snap Snapshot, ttl time.Duration) bool {
	if len(snap.Sellers) == 0 {
		return true
	}
	fetchedAt := time.UnixMilli(snap.FetchedAt)
	return c.now().Sub(fetchedAt) > ttl
}

// Refresh downloads the registry and stores a fresh snapshot. When force is
// false and the current snapshot is still within its TTL, the stored sellers
// are returned without a network call. On any network or parse failure the
// previously stored cache is left untouched and the error is returned;
// refresh is never destructive.
func (c *Cache) Refresh(ctx context.Context, force bool) ([]SellerRecord, error) {
	cfg := c.settings.Snapshot()
	prev := c.GetCached(ctx)
	if !force && !c.IsStale(prev, cfg.CacheTTL()) {
		return prev.Sellers, nil
	}

	body, err := c.fetcher.Fetch(ctx, cfg.RegistryURL)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.RegistryURL).Msg("Registry fetch failed, keeping cached data")
		return nil, err
	}

	sellers, err := parseSellers(body)
	if err != nil {
		log.Warn().Err(err).Msg("Registry parse failed, keeping cached data")
		return nil, err
	}

	fetchedAt := c.now().UnixMilli()
	if fetchedAt < prev.FetchedAt {
		fetchedAt = prev.FetchedAt
	}
	snap := Snapshot{Sellers: sellers, FetchedAt: fetchedAt}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode registry snapshot: %w", err)
	}
	if err := c.store.Set(ctx, map[string][]byte{CacheKey: raw}); err != nil {
		log.Warn().Err(err).Msg("Failed to persist registry snapshot")
		return nil, err
	}

	log.Info().Int("sellers", len(sellers)).Msg("Registry refreshed")
	return sellers, nil
}

// parseSellers extracts the sellers list from a sellers.json body. A body
// that is not JSON at all is a parse error; a valid JSON document whose
// sellers field is absent or of the wrong shape yields an empty list.
func parseSellers(body []byte) ([]SellerRecord, error) {
	var payload struct {
		Sellers []SellerRecord `json:"sellers"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		var probe map[string]json.RawMessage
		if probeErr := json.Unmarshal(body, &probe); probeErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		// Valid JSON with a malformed sellers field degrades to empty.
		payload.Sellers = nil
	}

	sellers := make([]SellerRecord, 0, len(payload.Sellers))
	for _, s := range payload.Sellers {
		if s.SellerID == "" {
			continue
		}
		sellers = append(sellers, s)
	}
	return sellers, nil
}
