package fence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/application"
	"github.com/appfence/fence/audit"
	"github.com/appfence/fence/decision"
	"github.com/appfence/fence/id"
	"github.com/appfence/fence/perm"
	"github.com/appfence/fence/plugin"
	"github.com/appfence/fence/policy"
	"github.com/appfence/fence/store"
)

// ─────────────────────────────────────────────────────────────────────
// Broker
// ─────────────────────────────────────────────────────────────────────

// Broker is the permission broker. It owns the policy engine, the
// auditor, and the table of requests pending a user prompt.
type Broker struct {
	store      store.Store
	logger     *slog.Logger
	config     Config
	verifier   Verifier
	authorizer Authorizer
	plugins    *plugin.Registry
	now        func() time.Time

	engine  *PolicyEngine
	auditor *Auditor
	pending *pendingTable

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewBroker creates a Broker with the given options. A store is
// required.
func NewBroker(opts ...Option) (*Broker, error) {
	b := &Broker{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.store == nil {
		return nil, errors.New("fence: store is required (use WithStore)")
	}
	b.config = b.config.normalized()
	if b.verifier == nil {
		b.verifier = allowAllVerifier{}
	}

	b.engine = &PolicyEngine{store: b.store, logger: b.logger, config: b.config, now: b.now}
	b.auditor = &Auditor{store: b.store, logger: b.logger, now: b.now}
	b.pending = newPendingTable(b.config.PendingTTL, b.config.MaxPending, b.now)
	b.stop = make(chan struct{})

	return b, nil
}

// Start runs an immediate sweep of expired policies and begins the
// periodic cleanup loop. It returns after the initial sweep.
func (b *Broker) Start(ctx context.Context) error {
	n, err := b.engine.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("startup cleanup: %w", err)
	}
	if n > 0 {
		b.logger.Info("expired policies removed at startup", slog.Int64("count", n))
	}

	b.wg.Add(1)
	go b.cleanupLoop()
	return nil
}

// Stop halts the cleanup loop and notifies shutdown-aware plugins.
// Safe to call more than once.
func (b *Broker) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() { close(b.stop) })
	b.wg.Wait()
	if b.plugins != nil {
		b.plugins.EmitShutdown(ctx)
	}
	return nil
}

func (b *Broker) cleanupLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := b.engine.CleanupExpired(ctx)
			cancel()
			if err != nil {
				b.logger.Error("policy cleanup failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				b.logger.Debug("expired policies removed", slog.Int64("count", n))
			}
		}
	}
}

// ─────────────────────────────────────────────────────────────────────
// Permission checks
// ─────────────────────────────────────────────────────────────────────

// RequestPermission resolves one application's permission request.
//
// A cached policy decides immediately. With no policy, a non-sensitive
// permission is denied by default, while a sensitive one parks the
// request and returns a prompt token for the UI. Every resolved check
// is audited; a prompt-required result is not, since nothing was
// decided yet.
func (b *Broker) RequestPermission(ctx context.Context, req *CheckRequest) (*CheckResult, error) {
	// 1. Validate the request.
	if req == nil || req.App.Primary == "" {
		return nil, fmt.Errorf("%w: missing application identity", ErrInvalidArgument)
	}
	if err := req.Permission.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	// 2. Verify the caller before any policy logic runs. A spoofed
	// caller gets no audit row; the request never happened.
	if err := b.verifier.VerifyCaller(ctx, req.PID, req.UID); err != nil {
		b.logger.Warn("caller verification failed",
			slog.String("app", req.App.Primary),
			slog.Uint64("pid", uint64(req.PID)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}

	if b.plugins != nil {
		b.plugins.EmitBeforeRequest(ctx, req)
	}

	// 3. Consult cached policy.
	rec, err := b.engine.CachedDecision(ctx, req.App, req.Permission)
	if err != nil {
		// Fail closed. Record the denial best-effort; the storage
		// error is what the caller needs to see.
		b.auditDeniedBestEffort(ctx, req, false)
		return nil, err
	}
	if rec != nil {
		d := rec.Decision
		result := &CheckResult{Granted: d.Granted(), Cached: true}
		if err := b.auditor.LogPermissionCheck(ctx, req, &d, result.Granted, false); err != nil {
			return nil, err
		}
		if b.plugins != nil {
			b.plugins.EmitAfterRequest(ctx, req, result)
		}
		return result, nil
	}

	// 4. No policy. Non-sensitive permissions never prompt; deny by
	// default and record it.
	if !b.engine.IsSensitive(req.Permission) {
		result := &CheckResult{}
		if err := b.auditor.LogPermissionCheck(ctx, req, nil, false, false); err != nil {
			return nil, err
		}
		if b.plugins != nil {
			b.plugins.EmitAfterRequest(ctx, req, result)
		}
		return result, nil
	}

	// 5. Sensitive and undecided: park the request and signal the
	// prompt UI.
	reqID := id.NewRequestID()
	b.pending.put(reqID.String(), req)
	if b.plugins != nil {
		b.plugins.EmitPromptRequested(ctx, reqID, req)
	}
	b.logger.Info("prompt requested",
		slog.String("request_id", reqID.String()),
		slog.String("app", req.App.Primary),
		slog.String("permission", req.Permission.Key()))

	return &CheckResult{PromptRequired: true, RequestID: reqID.String()}, nil
}

// SubmitDecision resolves a pending prompt with the user's decision.
// Each request token resolves at most once. Persistent decisions are
// stored as policy before the audit row is written, so a storage
// failure cannot grant unrecorded access.
func (b *Broker) SubmitDecision(ctx context.Context, requestID string, d decision.Decision) (*CheckResult, error) {
	// 1. Validate the decision.
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	// 2. Claim the pending request. Malformed, unknown, expired, and
	// already-resolved tokens are indistinguishable to the caller.
	rid, err := id.ParseRequestID(requestID)
	if err != nil {
		return nil, ErrRequestNotFound
	}
	req, ok := b.pending.take(rid.String())
	if !ok {
		return nil, ErrRequestNotFound
	}

	// 3. Persist the decision first when it outlives this request.
	if d.Persistent() {
		rec, err := b.engine.StoreDecision(ctx, req.App, req.Permission, d)
		if err != nil {
			b.auditDeniedBestEffort(ctx, req, true)
			return nil, err
		}
		if b.plugins != nil {
			b.plugins.EmitDecisionStored(ctx, rec)
		}
	}

	// 4. Audit the resolved check.
	granted := d.Granted()
	result := &CheckResult{Granted: granted}
	if err := b.auditor.LogPermissionCheck(ctx, req, &d, granted, true); err != nil {
		return nil, err
	}
	if b.plugins != nil {
		b.plugins.EmitAfterRequest(ctx, req, result)
	}
	return result, nil
}

// auditDeniedBestEffort records a denial after an internal failure. The
// original error is what callers see; a second failure here only logs.
func (b *Broker) auditDeniedBestEffort(ctx context.Context, req *CheckRequest, prompted bool) {
	if err := b.auditor.LogPermissionCheck(ctx, req, nil, false, prompted); err != nil {
		b.logger.Error("best-effort denial audit failed",
			slog.String("app", req.App.Primary),
			slog.String("error", err.Error()))
	}
}

// ─────────────────────────────────────────────────────────────────────
// Policy management
// ─────────────────────────────────────────────────────────────────────

// AppPolicy returns the live policy records for an application.
func (b *Broker) AppPolicy(ctx context.Context, app appid.AppID) ([]*policy.Record, error) {
	if app.Primary == "" {
		return nil, fmt.Errorf("%w: missing application identity", ErrInvalidArgument)
	}
	if b.authorizer != nil {
		if err := b.authorizer.AuthorizePolicyUpdate(ctx, app.Primary); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}
	return b.engine.AppPolicy(ctx, app)
}

// UpdateAppPolicy applies a batch of persistent decisions for an
// application atomically, typically from a settings UI.
func (b *Broker) UpdateAppPolicy(ctx context.Context, app appid.AppID, decisions []PermissionDecision) error {
	if app.Primary == "" {
		return fmt.Errorf("%w: missing application identity", ErrInvalidArgument)
	}
	if b.authorizer != nil {
		if err := b.authorizer.AuthorizePolicyUpdate(ctx, app.Primary); err != nil {
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}
	if err := b.engine.UpdateAppPolicy(ctx, app, decisions); err != nil {
		return err
	}
	if b.plugins != nil && len(decisions) > 0 {
		recs, err := b.engine.AppPolicy(ctx, app)
		if err == nil {
			b.plugins.EmitPolicyUpdated(ctx, app, recs)
		}
	}
	b.logger.Info("application policy updated",
		slog.String("app", app.Primary),
		slog.Int("decisions", len(decisions)))
	return nil
}

// DeletePolicy removes one policy record for an application.
func (b *Broker) DeletePolicy(ctx context.Context, app appid.AppID, p perm.Permission) error {
	if app.Primary == "" {
		return fmt.Errorf("%w: missing application identity", ErrInvalidArgument)
	}
	if b.authorizer != nil {
		if err := b.authorizer.AuthorizePolicyUpdate(ctx, app.Primary); err != nil {
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}
	return b.engine.DeletePolicy(ctx, app, p)
}

// ─────────────────────────────────────────────────────────────────────
// Introspection
// ─────────────────────────────────────────────────────────────────────

// AuditLog returns the newest audit entries, most recent first.
func (b *Broker) AuditLog(ctx context.Context, limit int) ([]*audit.Entry, error) {
	return b.auditor.RecentEntries(ctx, limit)
}

// AuditLogForApp returns the newest audit entries for one application.
func (b *Broker) AuditLogForApp(ctx context.Context, primary string, limit int) ([]*audit.Entry, error) {
	return b.auditor.EntriesForApp(ctx, primary, limit)
}

// Applications lists every application the broker has seen, oldest
// first.
func (b *Broker) Applications(ctx context.Context) ([]*application.Record, error) {
	return b.store.ListApplications(ctx)
}

// Application returns the record for one application, or nil when it
// was never seen.
func (b *Broker) Application(ctx context.Context, primary string) (*application.Record, error) {
	return b.store.GetApplication(ctx, primary)
}

// PendingCount reports how many requests are waiting on a prompt.
func (b *Broker) PendingCount() int { return b.pending.len() }

// Engine exposes the policy engine for embedding callers.
func (b *Broker) Engine() *PolicyEngine { return b.engine }

// Auditor exposes the auditor for embedding callers.
func (b *Broker) Auditor() *Auditor { return b.auditor }

// Store exposes the underlying composite store.
func (b *Broker) Store() store.Store { return b.store }

// Ping checks connectivity to the underlying store.
func (b *Broker) Ping(ctx context.Context) error { return b.store.Ping(ctx) }
