package quotecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rmfonseca/fiiboard/internal/common"
	"github.com/rmfonseca/fiiboard/internal/interfaces"
	"github.com/rmfonseca/fiiboard/internal/models"
)

// --- Mocks ---

type mockStore struct {
	data    map[string]string
	getErr  error
	setErr  error
	keysErr error
	deleted []string
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string]string{}}
}

func (m *mockStore) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	val, ok := m.data[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return val, nil
}

func (m *mockStore) Set(_ context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mockStore) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockStore) Keys(_ context.Context) ([]string, error) {
	if m.keysErr != nil {
		return nil, m.keysErr
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *mockStore) Close() error { return nil }

type mockFetcher struct {
	quotes []models.Quote
	err    error
	called bool
}

func (m *mockFetcher) FetchQuotes(_ context.Context, _ []string) ([]models.Quote, error) {
	m.called = true
	return m.quotes, m.err
}

// --- Helpers ---

// wednesdayAfterHours is Wed 20:00 in São Paulo, outside the B3 session.
func wednesdayAfterHours() time.Time {
	return time.Date(2026, 3, 11, 20, 0, 0, 0, saoPauloLocation)
}

// wednesdaySession is Wed 14:00 in São Paulo, inside the B3 session.
func wednesdaySession() time.Time {
	return time.Date(2026, 3, 11, 14, 0, 0, 0, saoPauloLocation)
}

func newTestService(store *mockStore, now time.Time) *Service {
	return NewService(store, common.NewSilentLogger(), WithClock(func() time.Time { return now }))
}

func sampleQuotes() map[string]models.Quote {
	return map[string]models.Quote{
		"HGLG11": {Ticker: "HGLG11", Price: 160.50, DividendYield: 8.2, Sector: "Logística"},
		"XPML11": {Ticker: "XPML11", Price: 110.00, DividendYield: 9.1, Sector: "Shoppings"},
	}
}

// --- KeyFor ---

func TestKeyForDependsOnlyOnDate(t *testing.T) {
	svc := newTestService(newMockStore(), wednesdaySession())

	morning := time.Date(2026, 3, 11, 0, 1, 0, 0, saoPauloLocation)
	night := time.Date(2026, 3, 11, 23, 59, 0, 0, saoPauloLocation)

	if svc.KeyFor(morning) != svc.KeyFor(night) {
		t.Errorf("same calendar day should yield same key: %q vs %q",
			svc.KeyFor(morning), svc.KeyFor(night))
	}
	if got, want := svc.KeyFor(morning), "fii_quotes_cache_2026-03-11"; got != want {
		t.Errorf("KeyFor = %q, want %q", got, want)
	}

	nextDay := time.Date(2026, 3, 12, 0, 1, 0, 0, saoPauloLocation)
	if svc.KeyFor(morning) == svc.KeyFor(nextDay) {
		t.Error("different calendar days must yield different keys")
	}
}

func TestKeyForCustomNamespace(t *testing.T) {
	svc := NewService(newMockStore(), common.NewSilentLogger(), WithNamespace("test_ns"))
	key := svc.KeyFor(time.Date(2026, 3, 11, 12, 0, 0, 0, saoPauloLocation))
	if key != "test_ns_2026-03-11" {
		t.Errorf("KeyFor = %q, want test_ns_2026-03-11", key)
	}
}

// --- isValid ---

func TestIsValidTwoTierTTL(t *testing.T) {
	savedAt := wednesdayAfterHours() // Wed 20:00, after hours

	entry := models.NewCacheEntry(sampleQuotes(), savedAt, false)

	tests := []struct {
		name  string
		now   time.Time
		valid bool
	}{
		{"just written", savedAt, true},
		{"23h59m later, after hours", savedAt.Add(23*time.Hour + 59*time.Minute), true}, // Thu 19:59
		{"24h01m later", savedAt.Add(24*time.Hour + 1*time.Minute), false},              // hard ceiling
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValid(entry, tt.now); got != tt.valid {
				t.Errorf("isValid at %v = %v, want %v", tt.now, got, tt.valid)
			}
		})
	}
}

func TestIsValidTradingHoursTightensTTL(t *testing.T) {
	savedAt := time.Date(2026, 3, 11, 10, 0, 0, 0, saoPauloLocation) // Wed 10:00, session open
	entry := models.NewCacheEntry(sampleQuotes(), savedAt, true)

	// 59 minutes old during the session: still fresh
	if !isValid(entry, savedAt.Add(59*time.Minute)) {
		t.Error("59-minute-old entry should be valid during trading hours")
	}

	// 61 minutes old during the session: stale despite being within 24h
	if isValid(entry, savedAt.Add(61*time.Minute)) {
		t.Error("61-minute-old entry should be invalid during trading hours")
	}

	// Same age evaluated after the session closed: only the hard bound applies
	if !isValid(entry, time.Date(2026, 3, 11, 20, 0, 0, 0, saoPauloLocation)) {
		t.Error("10-hour-old entry should be valid after hours (within 24h)")
	}
}

func TestIsValidMalformedEntry(t *testing.T) {
	now := wednesdayAfterHours()

	if isValid(nil, now) {
		t.Error("nil entry must be invalid")
	}
	if isValid(&models.CacheEntry{Quotes: map[string]models.Quote{}}, now) {
		t.Error("entry with zero timestamp must be invalid")
	}
	if isValid(&models.CacheEntry{Timestamp: now}, now) {
		t.Error("entry with nil quotes map must be invalid")
	}
}

// --- Save / Load ---

func TestSaveThenLoad(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()
	svc := newTestService(store, now)
	ctx := context.Background()

	if err := svc.Save(ctx, sampleQuotes()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entry, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry, got nil")
	}
	if entry.Count != 2 {
		t.Errorf("Count = %d, want 2", entry.Count)
	}
	if entry.TradingHours {
		t.Error("entry saved at 20:00 should not be flagged as trading hours")
	}
	if entry.Date != "2026-03-11" {
		t.Errorf("Date = %q, want 2026-03-11", entry.Date)
	}
}

func TestSaveTagsTradingHours(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, wednesdaySession())

	if err := svc.Save(context.Background(), sampleQuotes()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw := store.data["fii_quotes_cache_2026-03-11"]
	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		t.Fatalf("unmarshal stored entry: %v", err)
	}
	if !entry.TradingHours {
		t.Error("entry saved at 14:00 on a Wednesday should be flagged as trading hours")
	}
}

func TestSaveDateAgreesWithKeyOnUTCClock(t *testing.T) {
	store := newMockStore()
	// 01:00 UTC is still the previous evening in São Paulo.
	svc := newTestService(store, time.Date(2026, 3, 12, 1, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if err := svc.Save(ctx, sampleQuotes()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, ok := store.data["fii_quotes_cache_2026-03-11"]
	if !ok {
		keys, _ := store.Keys(ctx)
		t.Fatalf("expected key fii_quotes_cache_2026-03-11, have %v", keys)
	}
	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		t.Fatalf("unmarshal stored entry: %v", err)
	}
	if entry.Date != "2026-03-11" {
		t.Errorf("Date = %q, want 2026-03-11 to match the partition key", entry.Date)
	}
}

func TestLoadEmptyCache(t *testing.T) {
	svc := newTestService(newMockStore(), wednesdayAfterHours())

	entry, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if entry != nil {
		t.Error("empty cache should load as nil, not an error")
	}
}

func TestLoadDeletesStaleEntry(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()

	// Written 25 hours ago: beyond the hard ceiling
	old := models.NewCacheEntry(sampleQuotes(), now.Add(-25*time.Hour), false)
	data, _ := json.Marshal(old)
	store.data["fii_quotes_cache_2026-03-11"] = string(data)

	svc := newTestService(store, now)
	entry, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if entry != nil {
		t.Error("stale entry should load as nil")
	}
	if _, ok := store.data["fii_quotes_cache_2026-03-11"]; ok {
		t.Error("stale entry should have been deleted")
	}
}

func TestLoadDeletesCorruptEntry(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()
	store.data["fii_quotes_cache_2026-03-11"] = "{not json"

	svc := newTestService(store, now)
	entry, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("corrupt entry should be a miss, got error: %v", err)
	}
	if entry != nil {
		t.Error("corrupt entry should load as nil")
	}
	if _, ok := store.data["fii_quotes_cache_2026-03-11"]; ok {
		t.Error("corrupt entry should have been deleted")
	}
}

func TestLoadStorageErrorIsDistinguishable(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("disk on fire")

	svc := newTestService(store, wednesdayAfterHours())
	_, err := svc.Load(context.Background())
	if err == nil {
		t.Fatal("backend failure must surface as an error, not a silent miss")
	}
}

// --- Merge ---

func TestMergeAccumulates(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()
	svc := newTestService(store, now)
	ctx := context.Background()

	if err := svc.Merge(ctx, map[string]models.Quote{"HGLG11": {Ticker: "HGLG11", Price: 160.50}}); err != nil {
		t.Fatalf("first Merge: %v", err)
	}
	if err := svc.Merge(ctx, map[string]models.Quote{"XPML11": {Ticker: "XPML11", Price: 110.00}}); err != nil {
		t.Fatalf("second Merge: %v", err)
	}

	entry, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if entry == nil || entry.Count != 2 {
		t.Fatalf("expected 2 merged quotes, got %+v", entry)
	}
	if entry.Quotes["HGLG11"].Price != 160.50 || entry.Quotes["XPML11"].Price != 110.00 {
		t.Errorf("merged quotes wrong: %+v", entry.Quotes)
	}
}

func TestMergeOverwritesOnCollision(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, wednesdayAfterHours())
	ctx := context.Background()

	if err := svc.Save(ctx, map[string]models.Quote{"HGLG11": {Ticker: "HGLG11", Price: 160.50}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := svc.Merge(ctx, map[string]models.Quote{"HGLG11": {Ticker: "HGLG11", Price: 162.00}}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	entry, _ := svc.Load(ctx)
	if entry.Quotes["HGLG11"].Price != 162.00 {
		t.Errorf("merge should be right-biased, got %.2f", entry.Quotes["HGLG11"].Price)
	}
}

// --- GetForTickers ---

func TestGetForTickersPartition(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, wednesdayAfterHours())
	ctx := context.Background()

	if err := svc.Save(ctx, sampleQuotes()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	lookup, err := svc.GetForTickers(ctx, []string{"HGLG11", "KNRI11", "XPML11", "VISC11"})
	if err != nil {
		t.Fatalf("GetForTickers: %v", err)
	}
	if len(lookup.Found) != 2 {
		t.Errorf("found = %d, want 2", len(lookup.Found))
	}
	if len(lookup.Missing) != 2 || lookup.Missing[0] != "KNRI11" || lookup.Missing[1] != "VISC11" {
		t.Errorf("missing = %v, want [KNRI11 VISC11] in request order", lookup.Missing)
	}
}

func TestGetForTickersEmptyCache(t *testing.T) {
	svc := newTestService(newMockStore(), wednesdayAfterHours())

	lookup, err := svc.GetForTickers(context.Background(), []string{"HGLG11"})
	if err != nil {
		t.Fatalf("GetForTickers: %v", err)
	}
	if len(lookup.Found) != 0 {
		t.Error("nothing should be found in an empty cache")
	}
	if len(lookup.Missing) != 1 {
		t.Errorf("missing = %v, want all requested tickers", lookup.Missing)
	}
}

// --- PruneOld / ClearAll ---

func entryJSONFor(t *testing.T, ts time.Time) string {
	t.Helper()
	data, err := json.Marshal(models.NewCacheEntry(sampleQuotes(), ts, false))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestPruneOldRetention(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()
	svc := newTestService(store, now)
	ctx := context.Background()

	eightDaysAgo := now.AddDate(0, 0, -8)
	sixDaysAgo := now.AddDate(0, 0, -6)
	store.data[svc.KeyFor(eightDaysAgo)] = entryJSONFor(t, eightDaysAgo)
	store.data[svc.KeyFor(sixDaysAgo)] = entryJSONFor(t, sixDaysAgo)

	removed, err := svc.PruneOld(ctx, 7)
	if err != nil {
		t.Fatalf("PruneOld: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := store.data[svc.KeyFor(eightDaysAgo)]; ok {
		t.Error("entry dated 8 days ago should have been pruned")
	}
	if _, ok := store.data[svc.KeyFor(sixDaysAgo)]; !ok {
		t.Error("entry dated 6 days ago should have been kept")
	}
}

func TestPruneOldNonPositiveFallsBackToConfigured(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()
	svc := NewService(store, common.NewSilentLogger(),
		WithClock(func() time.Time { return now }),
		WithRetentionDays(3),
	)
	ctx := context.Background()

	fourDaysAgo := now.AddDate(0, 0, -4)
	twoDaysAgo := now.AddDate(0, 0, -2)
	store.data[svc.KeyFor(fourDaysAgo)] = entryJSONFor(t, fourDaysAgo)
	store.data[svc.KeyFor(twoDaysAgo)] = entryJSONFor(t, twoDaysAgo)

	removed, err := svc.PruneOld(ctx, 0)
	if err != nil {
		t.Fatalf("PruneOld: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1 under the configured 3-day retention", removed)
	}
	if _, ok := store.data[svc.KeyFor(twoDaysAgo)]; !ok {
		t.Error("entry inside the configured retention should have been kept")
	}
}

func TestPruneOldIgnoresForeignKeys(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()
	svc := newTestService(store, now)

	store.data["other_app_2020-01-01"] = "{}"
	store.data["fii_quotes_cache_garbage"] = "{}"

	removed, err := svc.PruneOld(context.Background(), 7)
	if err != nil {
		t.Fatalf("PruneOld: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if len(store.data) != 2 {
		t.Error("foreign and unparseable keys must be left alone")
	}
}

func TestSaveTriggersPrune(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()
	svc := newTestService(store, now)

	tenDaysAgo := now.AddDate(0, 0, -10)
	store.data[svc.KeyFor(tenDaysAgo)] = entryJSONFor(t, tenDaysAgo)

	if err := svc.Save(context.Background(), sampleQuotes()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := store.data[svc.KeyFor(tenDaysAgo)]; ok {
		t.Error("save should prune entries outside the retention window")
	}
	if _, ok := store.data[svc.KeyFor(now)]; !ok {
		t.Error("today's entry should exist after save")
	}
}

func TestClearAll(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()
	svc := newTestService(store, now)

	store.data[svc.KeyFor(now)] = entryJSONFor(t, now)
	store.data[svc.KeyFor(now.AddDate(0, 0, -1))] = entryJSONFor(t, now.AddDate(0, 0, -1))
	store.data["other_app_2026-03-11"] = "{}"

	removed, err := svc.ClearAll(context.Background())
	if err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok := store.data["other_app_2026-03-11"]; !ok {
		t.Error("keys outside the namespace must survive ClearAll")
	}
}

// --- Stats ---

func TestStatsEmptyCache(t *testing.T) {
	svc := newTestService(newMockStore(), wednesdaySession())

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Exists {
		t.Error("Exists should be false for an empty cache")
	}
	if !stats.TradingHours {
		t.Error("TradingHours should reflect the current session")
	}
}

func TestStatsFreshEntry(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()
	svc := newTestService(store, now)
	ctx := context.Background()

	if err := svc.Save(ctx, sampleQuotes()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if !stats.Exists || !stats.Valid {
		t.Errorf("fresh entry should be Exists and Valid: %+v", stats)
	}
	if stats.Count != 2 {
		t.Errorf("Count = %d, want 2", stats.Count)
	}
	if stats.SizeBytes == 0 {
		t.Error("SizeBytes should be non-zero")
	}
	if stats.LastUpdate == "" {
		t.Error("LastUpdate should be set")
	}
}

func TestStatsDoesNotMutate(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()

	// Stale entry: Stats must describe it, not delete it
	old := models.NewCacheEntry(sampleQuotes(), now.Add(-25*time.Hour), false)
	data, _ := json.Marshal(old)
	store.data["fii_quotes_cache_2026-03-11"] = string(data)

	svc := newTestService(store, now)
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if !stats.Exists {
		t.Error("stale entry still exists")
	}
	if stats.Valid {
		t.Error("25-hour-old entry should not be valid")
	}
	if _, ok := store.data["fii_quotes_cache_2026-03-11"]; !ok {
		t.Error("Stats must never delete entries")
	}
}

// --- ForceRefresh ---

func TestForceRefreshDeletesThenFetches(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()
	svc := newTestService(store, now)
	ctx := context.Background()

	store.data[svc.KeyFor(now)] = entryJSONFor(t, now)

	fetcher := &mockFetcher{quotes: []models.Quote{{Ticker: "HGLG11", Price: 161.00}}}
	quotes, err := svc.ForceRefresh(ctx, fetcher, []string{"HGLG11"})
	if err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if !fetcher.called {
		t.Fatal("fetcher should have been invoked")
	}
	if len(quotes) != 1 || quotes[0].Ticker != "HGLG11" {
		t.Errorf("quotes = %+v", quotes)
	}
	if _, ok := store.data[svc.KeyFor(now)]; ok {
		t.Error("today's entry must be deleted before fetching")
	}

	// ForceRefresh does not save; the cache stays empty until the caller does
	entry, _ := svc.Load(ctx)
	if entry != nil {
		t.Error("ForceRefresh must not write the fetched quotes itself")
	}
}

func TestForceRefreshFetchErrorPropagates(t *testing.T) {
	store := newMockStore()
	now := wednesdayAfterHours()
	svc := newTestService(store, now)
	ctx := context.Background()

	store.data[svc.KeyFor(now)] = entryJSONFor(t, now)

	fetchErr := fmt.Errorf("api unavailable")
	fetcher := &mockFetcher{err: fetchErr}

	_, err := svc.ForceRefresh(ctx, fetcher, []string{"HGLG11"})
	if err == nil {
		t.Fatal("fetch failure must propagate")
	}
	if !errors.Is(err, fetchErr) {
		t.Errorf("error should wrap the fetch failure: %v", err)
	}

	// The deletion already happened: cache is empty, not stale
	if _, ok := store.data[svc.KeyFor(now)]; ok {
		t.Error("today's entry must be gone even when the fetch fails")
	}
}
