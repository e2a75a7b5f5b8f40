package fence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/appfence/fence/appid"
	"github.com/appfence/fence/decision"
	"github.com/appfence/fence/perm"
	"github.com/appfence/fence/policy"
	"github.com/appfence/fence/store/memory"
)

// testClock sits ahead of the wall clock so allow_for records written
// against it stay live when read back through the store's own clock.
var testClock = time.Now().UTC().Truncate(time.Second).Add(time.Hour)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(cfg Config) *PolicyEngine {
	return &PolicyEngine{
		store:  memory.New(),
		logger: discardLogger(),
		config: cfg.normalized(),
		now:    func() time.Time { return testClock },
	}
}

func TestIsSensitive(t *testing.T) {
	e := newTestEngine(Config{})

	cases := []struct {
		p    perm.Permission
		want bool
	}{
		{perm.Network(perm.NetNone), false},
		{perm.Network(perm.NetLan), true},
		{perm.Network(perm.NetInternet), true},
		{perm.Device(perm.DeviceMicrophone), true},
		{perm.Device(perm.DeviceCamera), true},
		{perm.Device(perm.DeviceScreen), true},
		{perm.Device(perm.DeviceUSB), false},
		{perm.Clipboard(), true},
		{perm.Autostart(), true},
		{perm.BackgroundExecution(), false},
		{perm.Filesystem("/home/user/docs", perm.ModeReadOnly), false},
	}
	for _, c := range cases {
		if got := e.IsSensitive(c.p); got != c.want {
			t.Fatalf("IsSensitive(%v) = %v, want %v", c.p, got, c.want)
		}
	}
}

func TestIsSensitiveFilesystemPrefixes(t *testing.T) {
	e := newTestEngine(Config{SensitivePathPrefixes: []string{"/home/user/.ssh", "/etc"}})

	cases := []struct {
		path string
		want bool
	}{
		{"/home/user/.ssh/id_ed25519", true},
		{"/home/user/.ssh", true},
		{"/etc/shadow", true},
		{"/home/user/docs/report.txt", false},
		{"/tmp/scratch", false},
		// Sibling paths sharing a string prefix are not inside the
		// subtree.
		{"/etcetera", false},
		{"/home/user/.sshare/key", false},
	}
	for _, c := range cases {
		p := perm.Filesystem(c.path, perm.ModeReadOnly)
		if got := e.IsSensitive(p); got != c.want {
			t.Fatalf("IsSensitive(fs %q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestStoreDecisionRejectsOneShot(t *testing.T) {
	e := newTestEngine(Config{})
	app := appid.FromPackage("org.example.app")

	for _, d := range []decision.Decision{decision.AllowOnce, decision.DenyOnce} {
		if _, err := e.StoreDecision(context.Background(), app, perm.Clipboard(), d); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("StoreDecision(%v) err = %v, want ErrInvalidArgument", d, err)
		}
	}
}

func TestStoreDecisionSetsExpiry(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(Config{})
	app := appid.FromPackage("org.example.app")
	p := perm.Device(perm.DeviceCamera)

	rec, err := e.StoreDecision(ctx, app, p, decision.AllowFor(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if rec.ExpiresAt == nil {
		t.Fatal("ExpiresAt not set for allow_for")
	}
	if want := testClock.Add(time.Hour); !rec.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", rec.ExpiresAt, want)
	}

	perma, err := e.StoreDecision(ctx, app, perm.Clipboard(), decision.AllowAlways)
	if err != nil {
		t.Fatal(err)
	}
	if perma.ExpiresAt != nil {
		t.Fatalf("ExpiresAt = %v for allow_always, want nil", perma.ExpiresAt)
	}
}

func TestCachedDecisionAbsent(t *testing.T) {
	e := newTestEngine(Config{})
	rec, err := e.CachedDecision(context.Background(), appid.FromPackage("org.none"), perm.Clipboard())
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatalf("rec = %+v, want nil", rec)
	}
}

func TestShouldPrompt(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(Config{})
	app := appid.FromPackage("org.example.app")

	// Sensitive and undecided: prompt.
	prompt, err := e.ShouldPrompt(ctx, app, perm.Device(perm.DeviceCamera))
	if err != nil {
		t.Fatal(err)
	}
	if !prompt {
		t.Fatal("undecided camera access should prompt")
	}

	// Non-sensitive: never prompt.
	prompt, err = e.ShouldPrompt(ctx, app, perm.BackgroundExecution())
	if err != nil {
		t.Fatal(err)
	}
	if prompt {
		t.Fatal("background execution should not prompt")
	}

	// Decided: no prompt even for sensitive permissions.
	if _, err := e.StoreDecision(ctx, app, perm.Device(perm.DeviceCamera), decision.DenyAlways); err != nil {
		t.Fatal(err)
	}
	prompt, err = e.ShouldPrompt(ctx, app, perm.Device(perm.DeviceCamera))
	if err != nil {
		t.Fatal(err)
	}
	if prompt {
		t.Fatal("decided permission should not prompt")
	}
}

// corruptPolicyStore wraps the memory store and reports one permission
// key as corrupt.
type corruptPolicyStore struct {
	*memory.Store
	corruptKey string
}

func (s *corruptPolicyStore) GetPolicy(ctx context.Context, primary, permKey string) (*policy.Record, error) {
	if permKey == s.corruptKey {
		return nil, fmt.Errorf("policy %s/%s: %w: bad decision encoding", primary, permKey, policy.ErrCorrupt)
	}
	return s.Store.GetPolicy(ctx, primary, permKey)
}

func TestCachedDecisionCorruptRecordTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	p := perm.Device(perm.DeviceCamera)
	e := &PolicyEngine{
		store:  &corruptPolicyStore{Store: memory.New(), corruptKey: p.Key()},
		logger: discardLogger(),
		config: DefaultConfig(),
		now:    func() time.Time { return testClock },
	}
	app := appid.FromPackage("org.example.app")

	rec, err := e.CachedDecision(ctx, app, p)
	if err != nil {
		t.Fatalf("corrupt record surfaced as error: %v", err)
	}
	if rec != nil {
		t.Fatalf("rec = %+v, want nil", rec)
	}

	// A corrupt row therefore prompts like an absent one.
	prompt, err := e.ShouldPrompt(ctx, app, p)
	if err != nil {
		t.Fatal(err)
	}
	if !prompt {
		t.Fatal("corrupt record should fall back to prompting")
	}
}

func TestUpdateAppPolicyValidates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(Config{})
	app := appid.FromPackage("org.example.app")

	bad := []PermissionDecision{
		{Permission: perm.Permission{Kind: "bogus"}, Decision: decision.AllowAlways},
	}
	if err := e.UpdateAppPolicy(ctx, app, bad); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}

	oneShot := []PermissionDecision{
		{Permission: perm.Clipboard(), Decision: decision.AllowOnce},
	}
	if err := e.UpdateAppPolicy(ctx, app, oneShot); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}

	// Nothing was stored along the way.
	recs, err := e.AppPolicy(ctx, app)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("policies = %d, want 0", len(recs))
	}
}

func TestUpdateAppPolicyBatch(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(Config{})
	app := appid.FromPackage("org.example.app")

	decisions := []PermissionDecision{
		{Permission: perm.Network(perm.NetInternet), Decision: decision.AllowAlways},
		{Permission: perm.Device(perm.DeviceCamera), Decision: decision.DenyAlways},
		{Permission: perm.Clipboard(), Decision: decision.AllowFor(30 * time.Minute)},
	}
	if err := e.UpdateAppPolicy(ctx, app, decisions); err != nil {
		t.Fatal(err)
	}

	recs, err := e.AppPolicy(ctx, app)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("policies = %d, want 3", len(recs))
	}
	for _, rec := range recs {
		if rec.Permission.Kind == perm.KindClipboard {
			if rec.ExpiresAt == nil || !rec.ExpiresAt.Equal(testClock.Add(30*time.Minute)) {
				t.Fatalf("clipboard ExpiresAt = %v", rec.ExpiresAt)
			}
		}
	}
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(Config{})
	app := appid.FromPackage("org.example.app")

	if _, err := e.StoreDecision(ctx, app, perm.Clipboard(), decision.AllowFor(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.StoreDecision(ctx, app, perm.Autostart(), decision.AllowAlways); err != nil {
		t.Fatal(err)
	}

	// Move the clock past the expiry and sweep.
	e.now = func() time.Time { return testClock.Add(2 * time.Minute) }
	n, err := e.CleanupExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("cleaned %d, want 1", n)
	}
}
