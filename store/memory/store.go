// Package memory provides an in-memory implementation of the fence
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/application"
	"github.com/appfence/fence/audit"
	"github.com/appfence/fence/policy"
	"github.com/appfence/fence/store"
)

// Compile-time interface checks.
var (
	_ application.Store = (*Store)(nil)
	_ policy.Store      = (*Store)(nil)
	_ audit.Store       = (*Store)(nil)
	_ store.Store       = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all fence entities.
type Store struct {
	mu sync.RWMutex

	apps     map[string]*application.Record // primary -> record
	policies map[string]*policy.Record      // policyKey(primary, permKey)
	audits   []*audit.Entry                 // append order, oldest first

	// now is swappable in tests to pin expiry boundaries.
	now func() time.Time
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apps:     make(map[string]*application.Record),
		policies: make(map[string]*policy.Record),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Application Store
// ──────────────────────────────────────────────────

func (s *Store) RegisterApplication(_ context.Context, app appid.AppID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(app, now)
	return nil
}

// registerLocked upserts the application record. Caller holds mu.
func (s *Store) registerLocked(app appid.AppID, now time.Time) {
	if existing, ok := s.apps[app.Primary]; ok {
		existing.LastSeen = now
		existing.App.BinaryHash = app.BinaryHash
		return
	}
	s.apps[app.Primary] = &application.Record{
		App:       app,
		FirstSeen: now,
		LastSeen:  now,
	}
}

func (s *Store) GetApplication(_ context.Context, primary string) (*application.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.apps[primary]
	if !ok {
		return nil, nil
	}
	return copyApplication(rec), nil
}

func (s *Store) ListApplications(_ context.Context) ([]*application.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*application.Record, 0, len(s.apps))
	for _, rec := range s.apps {
		result = append(result, copyApplication(rec))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FirstSeen.Before(result[j].FirstSeen)
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// Policy Store
// ──────────────────────────────────────────────────

func (s *Store) GetPolicy(_ context.Context, primary, permKey string) (*policy.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.policies[policyKey(primary, permKey)]
	if !ok || rec.Expired(s.now()) {
		return nil, nil
	}
	return copyPolicy(rec), nil
}

func (s *Store) GetAppPolicies(_ context.Context, primary string) ([]*policy.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var result []*policy.Record
	for _, rec := range s.policies {
		if rec.App.Primary != primary || rec.Expired(now) {
			continue
		}
		result = append(result, copyPolicy(rec))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Permission.Key() < result[j].Permission.Key()
	})
	return result, nil
}

func (s *Store) StorePolicy(_ context.Context, rec *policy.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storePolicyLocked(rec)
	return nil
}

func (s *Store) StorePolicies(_ context.Context, app appid.AppID, recs []*policy.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(app, s.now())
	for _, rec := range recs {
		s.storePolicyLocked(rec)
	}
	return nil
}

// storePolicyLocked upserts one policy record. Caller holds mu.
func (s *Store) storePolicyLocked(rec *policy.Record) {
	now := s.now()
	s.registerLocked(rec.App, now)
	stored := copyPolicy(rec)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	s.policies[policyKey(rec.App.Primary, rec.Permission.Key())] = stored
}

func (s *Store) DeletePolicy(_ context.Context, primary, permKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, policyKey(primary, permKey))
	return nil
}

func (s *Store) CleanupExpiredPolicies(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for k, rec := range s.policies {
		if rec.Expired(now) {
			delete(s.policies, k)
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) AppendAudit(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := copyAudit(e)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.registerLocked(stored.App, stored.CreatedAt)
	s.audits = append(s.audits, stored)
	return nil
}

func (s *Store) ListAuditEntries(_ context.Context, limit int) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAuditsLocked(limit, func(*audit.Entry) bool { return true }), nil
}

func (s *Store) ListAuditEntriesForApp(_ context.Context, primary string, limit int) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAuditsLocked(limit, func(e *audit.Entry) bool { return e.App.Primary == primary }), nil
}

// listAuditsLocked walks the append-ordered log backwards so results come
// out newest first. Caller holds mu.
func (s *Store) listAuditsLocked(limit int, match func(*audit.Entry) bool) []*audit.Entry {
	var result []*audit.Entry
	for i := len(s.audits) - 1; i >= 0; i-- {
		if !match(s.audits[i]) {
			continue
		}
		result = append(result, copyAudit(s.audits[i]))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

func (s *Store) CountAuditEntries(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.audits)), nil
}

func (s *Store) PurgeAuditEntries(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.audits[:0]
	var count int64
	for _, e := range s.audits {
		if e.CreatedAt.Before(before) {
			count++
			continue
		}
		kept = append(kept, e)
	}
	s.audits = kept
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func policyKey(primary, permKey string) string {
	return primary + "\x00" + permKey
}

func copyApplication(rec *application.Record) *application.Record {
	c := *rec
	return &c
}

func copyPolicy(rec *policy.Record) *policy.Record {
	c := *rec
	if rec.ExpiresAt != nil {
		t := *rec.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

func copyAudit(e *audit.Entry) *audit.Entry {
	c := *e
	if e.Decision != nil {
		d := *e.Decision
		c.Decision = &d
	}
	return &c
}
