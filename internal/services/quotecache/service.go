package quotecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rmfonseca/fiiboard/internal/common"
	"github.com/rmfonseca/fiiboard/internal/interfaces"
	"github.com/rmfonseca/fiiboard/internal/models"
)

// DefaultNamespace prefixes every cache key. One key per calendar day:
// <namespace>_<YYYY-MM-DD>.
const DefaultNamespace = "fii_quotes_cache"

// Service implements QuoteCacheService on top of a KeyedStore.
type Service struct {
	store         interfaces.KeyedStore
	logger        *common.Logger
	namespace     string
	retentionDays int
	now           func() time.Time // injectable clock for testing
}

// Option configures the service.
type Option func(*Service)

// WithNamespace sets the key namespace, allowing independent caches (e.g.
// per test) over the same store.
func WithNamespace(ns string) Option {
	return func(s *Service) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// WithRetentionDays sets how many days of entries survive pruning.
func WithRetentionDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new quote cache service.
func NewService(store interfaces.KeyedStore, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		store:         store,
		logger:        logger,
		namespace:     DefaultNamespace,
		retentionDays: common.DefaultRetentionDays,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KeyFor derives the storage key from the calendar date of t in São Paulo
// time. Two calls on the same calendar day always produce the same key.
func (s *Service) KeyFor(t time.Time) string {
	return fmt.Sprintf("%s_%s", s.namespace, t.In(saoPauloLocation).Format(models.DateKeyLayout))
}

// isValid reports whether the entry is still trustworthy at the given
// instant. Two tiers: a 24h hard ceiling always applies; during the B3
// session entries additionally go stale after one hour. After-hours settled
// data does not move, so only the hard bound applies then.
func isValid(entry *models.CacheEntry, now time.Time) bool {
	if entry == nil || entry.Timestamp.IsZero() || entry.Quotes == nil {
		return false
	}
	if !common.IsFreshAt(entry.Timestamp, now, common.FreshnessHardCeiling) {
		return false
	}
	if IsTradingHours(now) && !common.IsFreshAt(entry.Timestamp, now, common.FreshnessTradingHours) {
		return false
	}
	return true
}

// Load returns today's entry, or nil when there is no trustworthy data.
// Stale or corrupt entries are deleted so the next write starts clean.
// Callers must treat a nil entry as "go refetch", never as an empty portfolio.
func (s *Service) Load(ctx context.Context) (*models.CacheEntry, error) {
	key := s.KeyFor(s.now())

	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Corrupt cache entry discarded")
		s.deleteQuiet(ctx, key)
		return nil, nil
	}

	if !isValid(&entry, s.now()) {
		s.logger.Debug().Str("key", key).Msg("Stale cache entry discarded")
		s.deleteQuiet(ctx, key)
		return nil, nil
	}

	return &entry, nil
}

// Save wraps quotes in a fresh entry tagged with the current timestamp and
// trading-hours flag, writes it at today's key, then prunes old entries.
// A full overwrite of the day's entry: last writer wins.
func (s *Service) Save(ctx context.Context, quotes map[string]models.Quote) error {
	now := s.now()
	// The entry's embedded date must agree with the São Paulo calendar date
	// in the key, whatever timezone the clock reports in.
	entry := models.NewCacheEntry(quotes, now.In(saoPauloLocation), IsTradingHours(now))

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize cache entry: %w", err)
	}

	key := s.KeyFor(now)
	if err := s.store.Set(ctx, key, string(data)); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		return fmt.Errorf("cache write failed: %w", err)
	}

	s.logger.Debug().Str("key", key).Int("quotes", entry.Count).Msg("Cache entry saved")

	// Retention pruning rides on every save. A prune failure does not undo
	// the successful write, so it is reported but not returned.
	if _, err := s.PruneOld(ctx, s.retentionDays); err != nil {
		s.logger.Warn().Err(err).Msg("Post-save prune failed")
	}

	return nil
}

// Merge unions newQuotes into today's entry, new values overwriting old for
// the same ticker, then saves the union.
func (s *Service) Merge(ctx context.Context, newQuotes map[string]models.Quote) error {
	entry, err := s.Load(ctx)
	if err != nil {
		return err
	}

	merged := map[string]models.Quote{}
	if entry != nil {
		for ticker, q := range entry.Quotes {
			merged[ticker] = q
		}
	}
	for ticker, q := range newQuotes {
		merged[ticker] = q
	}

	return s.Save(ctx, merged)
}

// GetForTickers partitions the requested tickers into quotes found in
// today's entry and tickers that are missing, preserving request order in
// the missing list. No cache writes happen here.
func (s *Service) GetForTickers(ctx context.Context, tickers []string) (*models.TickerLookup, error) {
	entry, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	lookup := &models.TickerLookup{
		Found:   map[string]models.Quote{},
		Missing: []string{},
	}
	for _, ticker := range tickers {
		if entry != nil {
			if q, ok := entry.Quotes[ticker]; ok {
				lookup.Found[ticker] = q
				continue
			}
		}
		lookup.Missing = append(lookup.Missing, ticker)
	}
	return lookup, nil
}

// PruneOld deletes every entry whose embedded date is strictly older than
// now minus retentionDays. Returns the number of entries removed.
func (s *Service) PruneOld(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = s.retentionDays
	}

	keys, err := s.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate cache keys: %w", err)
	}

	local := s.now().In(saoPauloLocation)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, saoPauloLocation).
		AddDate(0, 0, -retentionDays)

	removed := 0
	prefix := s.namespace + "_"
	for _, key := range keys {
		date, ok := s.dateOf(key, prefix)
		if !ok {
			continue
		}
		if date.Before(cutoff) {
			s.deleteQuiet(ctx, key)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Int("retention_days", retentionDays).Msg("Pruned old cache entries")
	}
	return removed, nil
}

// ClearAll deletes every entry under this cache's namespace and returns the
// count removed.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate cache keys: %w", err)
	}

	removed := 0
	prefix := s.namespace + "_"
	for _, key := range keys {
		if _, ok := s.dateOf(key, prefix); !ok {
			continue
		}
		s.deleteQuiet(ctx, key)
		removed++
	}

	s.logger.Info().Int("removed", removed).Msg("Cache cleared")
	return removed, nil
}

// Stats reports the current state of today's entry without mutating it —
// stale and corrupt entries are described, not deleted.
func (s *Service) Stats(ctx context.Context) (*models.CacheStats, error) {
	now := s.now()
	stats := &models.CacheStats{
		TradingHours: IsTradingHours(now),
	}

	raw, err := s.store.Get(ctx, s.KeyFor(now))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	stats.Exists = true
	stats.SizeBytes = len(raw)

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return stats, nil // present but unreadable: exists, not valid
	}

	age := entry.Age(now)
	stats.Count = entry.Count
	stats.AgeMinutes = age.Minutes()
	stats.AgeHours = age.Hours()
	stats.Valid = isValid(&entry, now)
	stats.LastUpdate = entry.Timestamp.In(saoPauloLocation).Format("02/01/2006 15:04")

	return stats, nil
}

// ForceRefresh deletes today's entry unconditionally, then invokes the
// fetcher. It does not save the result; callers Save or Merge afterward.
// If the fetch fails the cache is already empty rather than stale, and the
// error propagates.
func (s *Service) ForceRefresh(ctx context.Context, fetcher interfaces.QuoteFetcher, tickers []string) ([]models.Quote, error) {
	key := s.KeyFor(s.now())
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete entry before refresh")
	}

	s.logger.Info().Int("tickers", len(tickers)).Msg("Forcing quote refresh")

	quotes, err := fetcher.FetchQuotes(ctx, tickers)
	if err != nil {
		return nil, fmt.Errorf("quote fetch failed: %w", err)
	}
	return quotes, nil
}

// dateOf extracts the embedded calendar date from a cache key. Keys outside
// this namespace, or with an unparseable date, are left alone.
func (s *Service) dateOf(key, prefix string) (time.Time, bool) {
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return time.Time{}, false
	}
	date, err := time.ParseInLocation(models.DateKeyLayout, key[len(prefix):], saoPauloLocation)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

func (s *Service) deleteQuiet(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache delete failed")
	}
}

// Ensure Service implements QuoteCacheService
var _ interfaces.QuoteCacheService = (*Service)(nil)
